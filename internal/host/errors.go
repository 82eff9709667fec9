package host

import "errors"

// Setup outcomes. Integrations wrap these so the Manager can classify a
// failed setup.
var (
	// ErrSetupRetry marks a transient failure. The entry moves to
	// setup_retry and setup is attempted again with backoff.
	ErrSetupRetry = errors.New("setup failed, will retry")

	// ErrSetupFailed marks a permanent failure. The entry moves to
	// setup_error and is not retried automatically.
	ErrSetupFailed = errors.New("setup failed")
)

var (
	// ErrLoopStopped is returned by Call once the loop has exited.
	ErrLoopStopped = errors.New("event loop stopped")

	// ErrEntryNotFound is returned for an unknown config entry id.
	ErrEntryNotFound = errors.New("config entry not found")

	// ErrEntryExists is returned when a unique id is already taken.
	ErrEntryExists = errors.New("config entry already exists")

	// ErrUnknownDomain is returned when no integration handles an entry.
	ErrUnknownDomain = errors.New("no integration registered for domain")

	// ErrUnloadFailed is returned when an integration could not unload an
	// entry completely.
	ErrUnloadFailed = errors.New("config entry unload failed")

	// ErrManagerClosed is returned after Shutdown.
	ErrManagerClosed = errors.New("config entry manager closed")

	// ErrEntityNotFound is returned for an unknown entity id.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists is returned when an entity id is already registered.
	ErrEntityExists = errors.New("entity already registered")

	// ErrNotPressable is returned when pressing an entity without a press action.
	ErrNotPressable = errors.New("entity cannot be pressed")

	// ErrPressFailed wraps the error of a press action.
	ErrPressFailed = errors.New("press failed")
)
