package logbook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
)

// Description is the human readable form of one event.
type Description struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
}

// Describer renders an event. It runs on the loop, so it may read state
// owned by the loop, and must not block or modify anything.
type Describer func(host.Event) Description

// Entry is a described record.
type Entry struct {
	When      time.Time `json:"when"`
	EventType string    `json:"event_type"`
	EntryID   string    `json:"entry_id,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Description
}

// Page is a page of logbook entries, most recent first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

type registration struct {
	domain    string
	describer Describer
}

// Logbook lists recorded events through registered describers.
//
// Thread Safety: All methods are safe for concurrent use.
type Logbook struct {
	repo Repository
	loop *host.Loop

	mu         sync.RWMutex
	describers map[string]registration
}

// New creates a logbook reading from repo. Describers run on loop.
func New(repo Repository, loop *host.Loop) *Logbook {
	return &Logbook{
		repo:       repo,
		loop:       loop,
		describers: make(map[string]registration),
	}
}

// Register installs the describer for an event type raised by domain.
func (l *Logbook) Register(domain, eventType string, describer Describer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.describers[eventType] = registration{domain: domain, describer: describer}
}

// Describes reports whether a describer is registered for eventType.
func (l *Logbook) Describes(eventType string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.describers[eventType]
	return ok
}

// List returns described entries matching filter.
func (l *Logbook) List(ctx context.Context, filter Filter) (*Page, error) {
	records, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	describers := make(map[string]registration, len(l.describers))
	for k, v := range l.describers {
		describers[k] = v
	}
	l.mu.RUnlock()

	entries := make([]Entry, len(records.Records))
	err = l.loop.Call(ctx, func() {
		for i, rec := range records.Records {
			entries[i] = describe(describers, rec)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("describing logbook entries: %w", err)
	}

	return &Page{
		Entries: entries,
		Total:   records.Total,
		Limit:   records.Limit,
		Offset:  records.Offset,
	}, nil
}

func describe(describers map[string]registration, rec Record) Entry {
	entry := Entry{When: rec.TimeFired, EventType: rec.EventType, EntryID: rec.EntryID}

	reg, ok := describers[rec.EventType]
	if !ok {
		entry.Description = Description{Name: rec.EventType, Message: "fired"}
		return entry
	}

	entry.Domain = reg.domain
	entry.Description = reg.describer(host.Event{
		ID:        rec.ID,
		Type:      rec.EventType,
		EntryID:   rec.EntryID,
		Data:      rec.Data,
		TimeFired: rec.TimeFired,
	})
	return entry
}
