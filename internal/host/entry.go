package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EntryState is the lifecycle state of a config entry.
type EntryState string

// Config entry states.
const (
	StateNotLoaded    EntryState = "not_loaded"
	StateLoaded       EntryState = "loaded"
	StateSetupError   EntryState = "setup_error"
	StateSetupRetry   EntryState = "setup_retry"
	StateFailedUnload EntryState = "failed_unload"
)

// Entry sources.
const (
	SourceImport = "import"
	SourceUser   = "user"
)

// ConfigEntry is one configured instance of an integration.
//
// Data is the integration's own JSON configuration. It may contain
// credentials and is never serialised to API clients.
type ConfigEntry struct {
	ID        string          `json:"id"`
	Domain    string          `json:"domain"`
	Title     string          `json:"title"`
	UniqueID  string          `json:"unique_id,omitempty"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EntryStatus is a point-in-time view of an entry and its state.
type EntryStatus struct {
	ConfigEntry
	State  EntryState `json:"state"`
	Reason string     `json:"reason,omitempty"`
}

// Integration sets up and tears down config entries of one domain.
//
// Both methods are called off the loop and may block.
type Integration interface {
	Domain() string

	// SetupEntry brings an entry up. Errors wrapping ErrSetupRetry are
	// retried with backoff, errors wrapping ErrSetupFailed are not, and any
	// other error is treated as ErrSetupFailed.
	SetupEntry(ctx context.Context, entry *ConfigEntry) error

	// UnloadEntry tears an entry down. It reports false when something
	// could not be unloaded. Unloading an entry that is not set up
	// succeeds.
	UnloadEntry(ctx context.Context, entry *ConfigEntry) (bool, error)
}

// Platform is one kind of entity an integration forwards setup to.
type Platform interface {
	Name() string
	SetupEntry(ctx context.Context, entry *ConfigEntry) error
	UnloadEntry(ctx context.Context, entry *ConfigEntry) (bool, error)
}

// ForwardSetup sets up platforms in order. If one fails, those already set
// up are unloaded again and the error is returned.
func ForwardSetup(ctx context.Context, entry *ConfigEntry, platforms ...Platform) error {
	for i, p := range platforms {
		if err := p.SetupEntry(ctx, entry); err != nil {
			if _, unloadErr := ForwardUnload(ctx, entry, platforms[:i]...); unloadErr != nil {
				err = errors.Join(err, unloadErr)
			}
			return fmt.Errorf("setting up %s platform: %w", p.Name(), err)
		}
	}
	return nil
}

// ForwardUnload unloads every platform and reports whether all succeeded.
// Every platform is attempted even after a failure.
func ForwardUnload(ctx context.Context, entry *ConfigEntry, platforms ...Platform) (bool, error) {
	ok := true
	var errs []error
	for i := len(platforms) - 1; i >= 0; i-- {
		p := platforms[i]
		unloaded, err := p.UnloadEntry(ctx, entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("unloading %s platform: %w", p.Name(), err))
		}
		if !unloaded || err != nil {
			ok = false
		}
	}
	return ok, errors.Join(errs...)
}
