// Package api implements the HTTP API and WebSocket event stream of the
// DoorBird bridge.
//
// This package provides:
//   - REST endpoints for config entries, entities and the logbook
//   - WebSocket hub relaying bus events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server reads from the host manager, the entity registry and the
// logbook. It never touches integration state directly: station snapshots
// are taken through the integration, which reads them on the event loop.
// Bus events reach WebSocket clients through an async listener so the loop
// never waits on a slow client.
//
// # Security
//
// There is no authentication; bind the server to a trusted network.
// Responses never include device passwords. Event payloads streamed over
// the WebSocket carry the device URLs exactly as they appear on the bus.
package api
