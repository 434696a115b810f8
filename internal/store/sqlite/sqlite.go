// Package sqlite implements the store.Store interface backed by an embedded
// SQLite database file. It is the zero-dependency-deployment backend; the
// postgres package offers the same contract over a server database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/patdx/fly-watch/internal/model"
	"github.com/patdx/fly-watch/internal/store"
)

// SQLiteStore implements store.Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// A single writer keeps the per-machine upsert+watermark commit atomic.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS machines (
	id TEXT PRIMARY KEY,
	app_name TEXT NOT NULL,
	name TEXT NOT NULL,
	last_state TEXT NOT NULL,
	last_updated INTEGER NOT NULL,
	region TEXT,
	instance_id TEXT,
	last_processed_event_timestamp INTEGER
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	machine_id TEXT NOT NULL REFERENCES machines(id),
	event_type TEXT NOT NULL,
	previous_state TEXT,
	new_state TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	notified INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_machine_id ON events (machine_id);
`

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertMachine(ctx context.Context, m *model.Machine, watermark *int64) error {
	var wm any
	if watermark != nil {
		wm = *watermark
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO machines (
			id, app_name, name, last_state, last_updated,
			region, instance_id, last_processed_event_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			app_name = excluded.app_name,
			name = excluded.name,
			last_state = excluded.last_state,
			last_updated = excluded.last_updated,
			region = excluded.region,
			instance_id = excluded.instance_id,
			last_processed_event_timestamp = COALESCE(excluded.last_processed_event_timestamp, machines.last_processed_event_timestamp)`,
		m.ID, m.AppName, m.Name, string(m.State), time.Now().UnixMilli(),
		nullString(m.Region), nullString(m.InstanceID), wm,
	)
	if err != nil {
		return fmt.Errorf("upsert machine %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAllMachines(ctx context.Context) ([]*model.StoredMachine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_name, name, last_state, last_updated,
			region, instance_id, last_processed_event_timestamp
		FROM machines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []*model.StoredMachine
	for rows.Next() {
		var m model.StoredMachine
		var (
			lastUpdated int64
			region      sql.NullString
			instanceID  sql.NullString
			watermark   sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.AppName, &m.Name, &m.LastState, &lastUpdated,
			&region, &instanceID, &watermark); err != nil {
			return nil, fmt.Errorf("scan machine row: %w", err)
		}
		m.LastUpdate = time.UnixMilli(lastUpdated).UTC()
		m.Region = region.String
		m.InstanceID = instanceID.String
		if watermark.Valid {
			w := watermark.Int64
			m.LastProcessedEventTimestamp = &w
		}
		machines = append(machines, &m)
	}
	return machines, rows.Err()
}

// nullString maps "" to NULL so both backends store absent strings the
// same way.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e *model.StateChangeEvent) (int64, error) {
	prev := nullString(e.PreviousState)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (machine_id, event_type, previous_state, new_state, timestamp, notified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.MachineID, e.EventType, prev, e.NewState, e.Timestamp, e.Notified,
	)
	if err != nil {
		return 0, fmt.Errorf("record event for %s: %w", e.MachineID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) MarkEventNotified(ctx context.Context, eventID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events SET notified = 1 WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("mark event %d notified: %w", eventID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUnnotifiedEvents(ctx context.Context) ([]*model.StateChangeEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, machine_id, event_type, previous_state, new_state, timestamp, notified
		FROM events WHERE notified = 0 ORDER BY id`)
}

func (s *SQLiteStore) GetAllEvents(ctx context.Context) ([]*model.StateChangeEvent, error) {
	return s.queryEvents(ctx, `
		SELECT id, machine_id, event_type, previous_state, new_state, timestamp, notified
		FROM events ORDER BY id`)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string) ([]*model.StateChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.StateChangeEvent
	for rows.Next() {
		var e model.StateChangeEvent
		var prev sql.NullString
		if err := rows.Scan(&e.ID, &e.MachineID, &e.EventType, &prev,
			&e.NewState, &e.Timestamp, &e.Notified); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.PreviousState = prev.String
		events = append(events, &e)
	}
	return events, rows.Err()
}
