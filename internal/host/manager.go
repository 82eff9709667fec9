package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultRetryBase is the first setup retry delay.
	defaultRetryBase = 5 * time.Second

	// maxRetryExponent caps the backoff at retryBase * 2^4.
	maxRetryExponent = 4
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Store persists config entries. Required.
	Store EntryStore

	// Logger is optional.
	Logger Logger

	// RetryBase is the first retry delay after a retryable setup failure.
	// Zero uses 5s. The delay doubles on each attempt up to 16x.
	RetryBase time.Duration
}

// entryRecord is the runtime side of a config entry.
// state, reason, attempts and retry are guarded by Manager.mu.
type entryRecord struct {
	// op serialises setup and unload of this entry.
	op sync.Mutex

	entry    *ConfigEntry
	state    EntryState
	reason   string
	attempts int
	retry    *time.Timer
}

// Manager drives the config entry lifecycle.
//
// Setup and unload of one entry are serialised. Different entries are set
// up concurrently. Retries after ErrSetupRetry run on worker goroutines.
//
// Thread Safety: All methods are safe for concurrent use. None of them may
// be called from a Loop task, because integrations use Loop.Call.
type Manager struct {
	store     EntryStore
	logger    Logger
	retryBase time.Duration

	mu           sync.Mutex
	integrations map[string]Integration
	records      map[string]*entryRecord
	order        []string
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. Register integrations, then call Load.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	retryBase := opts.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:        opts.Store,
		logger:       orNop(opts.Logger),
		retryBase:    retryBase,
		integrations: make(map[string]Integration),
		records:      make(map[string]*entryRecord),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Register adds the integration handling entries of its domain.
func (m *Manager) Register(integration Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	domain := integration.Domain()
	if _, exists := m.integrations[domain]; exists {
		return fmt.Errorf("integration %q already registered", domain)
	}
	m.integrations[domain] = integration
	return nil
}

// Load reads stored entries. Entries already known are left untouched.
func (m *Manager) Load(ctx context.Context) error {
	entries, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading config entries: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if _, exists := m.records[e.ID]; exists {
			continue
		}
		m.addRecordLocked(e)
	}
	return nil
}

func (m *Manager) addRecordLocked(e *ConfigEntry) *entryRecord {
	rec := &entryRecord{entry: e, state: StateNotLoaded}
	m.records[e.ID] = rec
	m.order = append(m.order, e.ID)
	return rec
}

// Import creates an entry for configuration coming from the config file,
// keyed by uniqueID. An existing entry with the same unique id is updated
// in place when its title or data changed, and reloaded if it was loaded.
// The bool reports whether a new entry was created.
func (m *Manager) Import(ctx context.Context, domain, title, uniqueID string, data []byte) (EntryStatus, bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return EntryStatus{}, false, ErrManagerClosed
	}
	rec := m.findLocked(domain, uniqueID)
	m.mu.Unlock()

	if rec == nil {
		return m.create(ctx, domain, title, uniqueID, data)
	}

	rec.op.Lock()
	m.mu.Lock()
	current := *rec.entry
	m.mu.Unlock()

	if current.Title == title && bytes.Equal(current.Data, data) {
		rec.op.Unlock()
		return m.status(rec), false, nil
	}

	updated := current
	updated.Title = title
	updated.Data = append([]byte(nil), data...)
	updated.UpdatedAt = time.Now().UTC()
	if err := m.store.Update(ctx, &updated); err != nil {
		rec.op.Unlock()
		return EntryStatus{}, false, err
	}

	m.mu.Lock()
	rec.entry = &updated
	loaded := rec.state == StateLoaded
	m.mu.Unlock()
	rec.op.Unlock()

	m.logger.Info("config entry updated from import", "entry_id", updated.ID, "domain", domain)
	if loaded {
		m.ScheduleReload(updated.ID)
	}
	return m.status(rec), false, nil
}

func (m *Manager) create(ctx context.Context, domain, title, uniqueID string, data []byte) (EntryStatus, bool, error) {
	now := time.Now().UTC().Truncate(time.Second)
	entry := &ConfigEntry{
		ID:        uuid.NewString(),
		Domain:    domain,
		Title:     title,
		UniqueID:  uniqueID,
		Source:    SourceImport,
		Data:      append([]byte(nil), data...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, entry); err != nil {
		return EntryStatus{}, false, err
	}

	m.mu.Lock()
	rec := m.addRecordLocked(entry)
	m.mu.Unlock()

	m.logger.Info("config entry imported", "entry_id", entry.ID, "domain", domain, "title", title)
	return m.status(rec), true, nil
}

func (m *Manager) findLocked(domain, uniqueID string) *entryRecord {
	if uniqueID == "" {
		return nil
	}
	for _, rec := range m.records {
		if rec.entry.Domain == domain && rec.entry.UniqueID == uniqueID {
			return rec
		}
	}
	return nil
}

// Entries returns the status of every entry in load order.
func (m *Manager) Entries() []EntryStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EntryStatus, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.statusLocked(m.records[id]))
	}
	return out
}

// Entry returns the status of one entry.
func (m *Manager) Entry(id string) (EntryStatus, error) {
	rec, err := m.record(id)
	if err != nil {
		return EntryStatus{}, err
	}
	return m.status(rec), nil
}

func (m *Manager) record(id string) (*entryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return rec, nil
}

func (m *Manager) status(rec *entryRecord) EntryStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked(rec)
}

func (m *Manager) statusLocked(rec *entryRecord) EntryStatus {
	return EntryStatus{ConfigEntry: *rec.entry, State: rec.state, Reason: rec.reason}
}

// SetupAll starts setup of every not-loaded entry concurrently and waits
// for the first attempt of each to finish, or for ctx to be done.
func (m *Manager) SetupAll(ctx context.Context) {
	m.mu.Lock()
	var ids []string
	for _, id := range m.order {
		if m.records[id].state == StateNotLoaded {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	var batch sync.WaitGroup
	for _, id := range ids {
		batch.Add(1)
		started := m.goWorker(func(workerCtx context.Context) {
			defer batch.Done()
			m.Setup(workerCtx, id) //nolint:errcheck // outcome is recorded in the entry state
		})
		if !started {
			batch.Done()
		}
	}

	done := make(chan struct{})
	go func() {
		batch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Setup sets up one entry and returns the integration's error. An entry
// that is already loaded is left alone.
func (m *Manager) Setup(ctx context.Context, id string) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}
	rec.op.Lock()
	defer rec.op.Unlock()
	return m.setupLocked(ctx, rec)
}

// setupLocked runs a setup attempt. The caller holds rec.op.
func (m *Manager) setupLocked(ctx context.Context, rec *entryRecord) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if rec.state == StateLoaded {
		m.mu.Unlock()
		return nil
	}
	m.stopRetryLocked(rec)
	entry := *rec.entry
	integration, ok := m.integrations[entry.Domain]
	m.mu.Unlock()

	var err error
	if ok {
		err = integration.SetupEntry(ctx, &entry)
	} else {
		err = fmt.Errorf("%w: %s", ErrUnknownDomain, entry.Domain)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logArgs := []any{"entry_id", entry.ID, "domain", entry.Domain, "title", entry.Title}
	switch {
	case err == nil:
		rec.state, rec.reason, rec.attempts = StateLoaded, "", 0
		m.logger.Info("config entry loaded", logArgs...)

	case errors.Is(err, ErrSetupRetry):
		rec.state, rec.reason = StateSetupRetry, err.Error()
		if m.closed {
			break
		}
		delay := m.retryDelay(rec.attempts)
		rec.attempts++
		id := entry.ID
		rec.retry = time.AfterFunc(delay, func() { m.goRetry(id) })
		m.logger.Warn("config entry not ready, will retry",
			append(logArgs, "retry_in", delay.String(), "attempt", rec.attempts, "error", err.Error())...)

	default:
		rec.state, rec.reason = StateSetupError, err.Error()
		m.logger.Error("config entry setup failed", append(logArgs, "error", err.Error())...)
	}
	return err
}

func (m *Manager) retryDelay(attempts int) time.Duration {
	return m.retryBase << min(attempts, maxRetryExponent)
}

func (m *Manager) stopRetryLocked(rec *entryRecord) {
	if rec.retry != nil {
		rec.retry.Stop()
		rec.retry = nil
	}
}

// goRetry runs a scheduled retry unless the entry left setup_retry meanwhile.
func (m *Manager) goRetry(id string) {
	m.goWorker(func(ctx context.Context) {
		rec, err := m.record(id)
		if err != nil {
			return
		}
		rec.op.Lock()
		defer rec.op.Unlock()

		m.mu.Lock()
		pending := rec.state == StateSetupRetry
		m.mu.Unlock()
		if pending {
			m.setupLocked(ctx, rec) //nolint:errcheck // outcome is recorded in the entry state
		}
	})
}

// goWorker runs fn on a tracked goroutine. It reports false after Shutdown.
func (m *Manager) goWorker(fn func(ctx context.Context)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
	return true
}

// Unload tears an entry down. It reports false when the integration could
// not unload everything, leaving the entry in failed_unload.
func (m *Manager) Unload(ctx context.Context, id string) (bool, error) {
	rec, err := m.record(id)
	if err != nil {
		return false, err
	}
	rec.op.Lock()
	defer rec.op.Unlock()
	return m.unloadLocked(ctx, rec)
}

// unloadLocked unloads an entry. The caller holds rec.op.
func (m *Manager) unloadLocked(ctx context.Context, rec *entryRecord) (bool, error) {
	m.mu.Lock()
	m.stopRetryLocked(rec)
	state := rec.state
	entry := *rec.entry
	integration, ok := m.integrations[entry.Domain]
	switch state {
	case StateNotLoaded:
		m.mu.Unlock()
		return true, nil
	case StateSetupError, StateSetupRetry:
		rec.state, rec.reason, rec.attempts = StateNotLoaded, "", 0
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDomain, entry.Domain)
	}

	unloaded, err := integration.UnloadEntry(ctx, &entry)
	if err == nil && !unloaded {
		err = fmt.Errorf("%w: %s", ErrUnloadFailed, entry.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		rec.state, rec.reason = StateFailedUnload, err.Error()
		m.logger.Error("config entry unload failed",
			"entry_id", entry.ID, "domain", entry.Domain, "error", err.Error())
		return false, err
	}
	rec.state, rec.reason, rec.attempts = StateNotLoaded, "", 0
	m.logger.Info("config entry unloaded", "entry_id", entry.ID, "domain", entry.Domain)
	return true, nil
}

// Reload unloads an entry and sets it up again.
func (m *Manager) Reload(ctx context.Context, id string) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}
	rec.op.Lock()
	defer rec.op.Unlock()

	if _, err := m.unloadLocked(ctx, rec); err != nil {
		return err
	}
	return m.setupLocked(ctx, rec)
}

// ScheduleReload reloads an entry on a worker goroutine and returns
// immediately. It is safe to call from a Loop task.
func (m *Manager) ScheduleReload(id string) {
	m.goWorker(func(ctx context.Context) {
		if err := m.Reload(ctx, id); err != nil {
			m.logger.Debug("scheduled reload did not complete", "entry_id", id, "error", err.Error())
		}
	})
}

// Remove unloads an entry and deletes it from the store.
func (m *Manager) Remove(ctx context.Context, id string) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}
	rec.op.Lock()
	defer rec.op.Unlock()

	if _, err := m.unloadLocked(ctx, rec); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.records, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.logger.Info("config entry removed", "entry_id", id)
	return nil
}

// Shutdown stops retries, waits for workers and unloads every loaded
// entry, newest first. Later calls do nothing.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, rec := range m.records {
		m.stopRetryLocked(rec)
	}
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		rec, err := m.record(ids[i])
		if err != nil {
			continue
		}
		rec.op.Lock()
		if _, err := m.unloadLocked(ctx, rec); err != nil {
			errs = append(errs, err)
		}
		rec.op.Unlock()
	}
	return errors.Join(errs...)
}
