// Package logbook records fired bus events and renders them as human
// readable entries through per-event describers.
package logbook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one stored event.
type Record struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	EntryID   string         `json:"entry_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	TimeFired time.Time      `json:"time_fired"`
}

// Filter controls which records to return.
type Filter struct {
	EventType string // optional: exact event type
	EntryID   string // optional: config entry that raised the event
	Limit     int    // default 50, max 500
	Offset    int    // pagination offset
}

// RecordsPage is a page of records, most recent first.
type RecordsPage struct {
	Records []Record
	Total   int
	Limit   int
	Offset  int
}

// Repository stores and queries event records.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	List(ctx context.Context, filter Filter) (*RecordsPage, error)
}

// SQLiteRepository keeps records in the events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a record. ID and TimeFired are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.TimeFired.IsZero() {
		record.TimeFired = time.Now().UTC()
	}

	var dataJSON *string
	if record.Data != nil {
		b, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		s := string(b)
		dataJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, entry_id, data, time_fired)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.EventType, nullableString(record.EntryID), dataJSON,
		record.TimeFired.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns records matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*RecordsPage, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.EntryID != "" {
		conditions = append(conditions, "entry_id = ?")
		args = append(args, filter.EntryID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, event_type, entry_id, data, time_fired FROM events %s ORDER BY time_fired DESC, id LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var entryID, dataJSON sql.NullString
		var fired string

		if err := rows.Scan(&rec.ID, &rec.EventType, &entryID, &dataJSON, &fired); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if entryID.Valid {
			rec.EntryID = entryID.String
		}
		if dataJSON.Valid && dataJSON.String != "" {
			var data map[string]any
			if json.Unmarshal([]byte(dataJSON.String), &data) == nil {
				rec.Data = data
			}
		}
		t, err := time.Parse(timeLayout, fired)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", fired, err)
		}
		rec.TimeFired = t

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return &RecordsPage{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
