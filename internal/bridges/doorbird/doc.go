// Package doorbird integrates DoorBird door stations with the host.
//
// # Architecture
//
//	┌──────────────┐  bha-api   ┌──────────────┐  Loop.Submit  ┌──────────────┐
//	│ Door station │───────────►│  bha.Client  │──────────────►│  event loop  │──► Bus
//	│  (LAN API)   │  monitor   │  (goroutine) │               │ (this state) │
//	└──────────────┘            └──────────────┘               └──────────────┘
//
// For each config entry the integration:
//
//   - validates credentials with a ready + info handshake, off the loop;
//   - stores {session, info} in its state, owned by the loop;
//   - forwards setup to the camera and button platforms;
//   - starts the device monitor, turning each push into a
//     doorbird_<event> bus event that carries a timestamp and media URLs;
//   - reloads the entry when the monitor fails.
//
// # Failure classes
//
// A 401 from the device is permanent (host.ErrSetupFailed). Other HTTP
// errors, transport errors and a not-ready device are retryable
// (host.ErrSetupRetry).
//
// # Thread Safety
//
// State is only touched inside Loop tasks. Monitor callbacks never touch it
// directly; they submit a task and return.
package doorbird
