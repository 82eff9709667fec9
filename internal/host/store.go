package host

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EntryStore persists config entries.
type EntryStore interface {
	List(ctx context.Context) ([]*ConfigEntry, error)
	Create(ctx context.Context, entry *ConfigEntry) error
	Update(ctx context.Context, entry *ConfigEntry) error
	Delete(ctx context.Context, id string) error
}

// SQLiteEntryStore keeps config entries in the config_entries table.
type SQLiteEntryStore struct {
	db *sql.DB
}

// NewSQLiteEntryStore creates a store on an open, migrated database.
func NewSQLiteEntryStore(db *sql.DB) *SQLiteEntryStore {
	return &SQLiteEntryStore{db: db}
}

// List returns every entry, oldest first.
func (s *SQLiteEntryStore) List(ctx context.Context) ([]*ConfigEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, title, unique_id, source, data, created_at, updated_at
		 FROM config_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying config entries: %w", err)
	}
	defer rows.Close()

	var entries []*ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		var uniqueID sql.NullString
		var data, createdAt, updatedAt string

		if err := rows.Scan(&e.ID, &e.Domain, &e.Title, &uniqueID, &e.Source,
			&data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning config entry: %w", err)
		}
		if uniqueID.Valid {
			e.UniqueID = uniqueID.String
		}
		e.Data = []byte(data)
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of entry %s: %w", e.ID, err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at of entry %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry.
func (s *SQLiteEntryStore) Create(ctx context.Context, e *ConfigEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_entries (id, domain, title, unique_id, source, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Domain, e.Title, nullableString(e.UniqueID), e.Source, string(e.Data),
		e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrEntryExists, e.Domain, e.UniqueID)
		}
		return fmt.Errorf("inserting config entry: %w", err)
	}
	return nil
}

// Update rewrites the title and data of an entry.
func (s *SQLiteEntryStore) Update(ctx context.Context, e *ConfigEntry) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE config_entries SET title = ?, data = ?, updated_at = ? WHERE id = ?`,
		e.Title, string(e.Data), e.UpdatedAt.UTC().Format(time.RFC3339), e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating config entry: %w", err)
	}
	return expectOneRow(result, e.ID)
}

// Delete removes an entry.
func (s *SQLiteEntryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM config_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting config entry: %w", err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
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

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ EntryStore = (*SQLiteEntryStore)(nil)
