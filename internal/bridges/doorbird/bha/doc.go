// Package bha is a small client for the DoorBird LAN API ("bha-api").
//
// It covers what the bridge consumes and nothing more:
//
//   - readiness and info queries (/bha-api/info.cgi)
//   - the push event monitor (/bha-api/monitor.cgi)
//   - relay and IR light commands
//   - stream and image URLs handed to consumers
//
// Requests authenticate with HTTP basic auth, so credentials never appear
// in request URLs or in errors. The URL getters do embed credentials,
// because that is how DoorBird streams are consumed; never log them.
//
// Monitor events are delivered to a MonitorHandler on the client's own
// goroutine.
package bha
