// Package forward copies bus events to external systems.
//
//   - MQTT: every event is published as JSON on the bridge's event topic.
//   - Influx: every event becomes a point in InfluxDB.
//
// Each sink is a bus listener with its own queue and worker goroutine, so
// a slow broker or database never blocks the event loop. Events arriving
// while a queue is full are dropped and logged.
package forward
