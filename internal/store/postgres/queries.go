package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/patdx/fly-watch/internal/model"
)

// machineColumns is the column list used for SELECT statements on the machines table.
const machineColumns = `id, app_name, name, last_state, last_updated,
	region, instance_id, last_processed_event_timestamp`

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, machine_id, event_type, previous_state, new_state, timestamp, notified`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryUpsertMachine inserts or refreshes a machine snapshot. A NULL
// watermark argument leaves the stored watermark untouched.
func queryUpsertMachine(ctx context.Context, db executor, m *model.Machine, watermark *int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO machines (
			id, app_name, name, last_state, last_updated,
			region, instance_id, last_processed_event_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			app_name = EXCLUDED.app_name,
			name = EXCLUDED.name,
			last_state = EXCLUDED.last_state,
			last_updated = EXCLUDED.last_updated,
			region = EXCLUDED.region,
			instance_id = EXCLUDED.instance_id,
			last_processed_event_timestamp = COALESCE(EXCLUDED.last_processed_event_timestamp, machines.last_processed_event_timestamp)`,
		m.ID,
		m.AppName,
		m.Name,
		string(m.State),
		time.Now().UTC(),
		nullString(m.Region),
		nullString(m.InstanceID),
		nullInt64Ptr(watermark),
	)
	return err
}

func queryGetAllMachines(ctx context.Context, db executor) ([]*model.StoredMachine, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+machineColumns+` FROM machines ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var machines []*model.StoredMachine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

func queryRecordEvent(ctx context.Context, db executor, e *model.StateChangeEvent) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO events (machine_id, event_type, previous_state, new_state, timestamp, notified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.MachineID,
		e.EventType,
		nullString(e.PreviousState),
		e.NewState,
		e.Timestamp,
		e.Notified,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func queryMarkEventNotified(ctx context.Context, db executor, eventID int64) error {
	_, err := db.ExecContext(ctx, `UPDATE events SET notified = TRUE WHERE id = $1`, eventID)
	return err
}

func queryGetUnnotifiedEvents(ctx context.Context, db executor) ([]*model.StateChangeEvent, error) {
	return queryEvents(ctx, db, `SELECT `+eventColumns+` FROM events WHERE NOT notified ORDER BY id`)
}

func queryGetAllEvents(ctx context.Context, db executor) ([]*model.StateChangeEvent, error) {
	return queryEvents(ctx, db, `SELECT `+eventColumns+` FROM events ORDER BY id`)
}

func queryEvents(ctx context.Context, db executor, query string) ([]*model.StateChangeEvent, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.StateChangeEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
