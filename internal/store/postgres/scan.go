package postgres

import (
	"database/sql"

	"github.com/patdx/fly-watch/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanMachine scans a single row into a model.StoredMachine.
// The row must contain columns in the order defined by machineColumns.
func scanMachine(row scannable) (*model.StoredMachine, error) {
	var m model.StoredMachine
	var (
		region     sql.NullString
		instanceID sql.NullString
		watermark  sql.NullInt64
	)

	err := row.Scan(
		&m.ID,
		&m.AppName,
		&m.Name,
		&m.LastState,
		&m.LastUpdate,
		&region,
		&instanceID,
		&watermark,
	)
	if err != nil {
		return nil, err
	}

	m.Region = region.String
	m.InstanceID = instanceID.String
	if watermark.Valid {
		w := watermark.Int64
		m.LastProcessedEventTimestamp = &w
	}
	return &m, nil
}

// scanEvent scans a single row into a model.StateChangeEvent.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.StateChangeEvent, error) {
	var e model.StateChangeEvent
	var previousState sql.NullString

	err := row.Scan(
		&e.ID,
		&e.MachineID,
		&e.EventType,
		&previousState,
		&e.NewState,
		&e.Timestamp,
		&e.Notified,
	)
	if err != nil {
		return nil, err
	}

	e.PreviousState = previousState.String
	return &e, nil
}

// nullString converts an empty string to a NULL value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt64Ptr converts a nil pointer to a NULL value.
func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
