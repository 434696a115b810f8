package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/patdx/fly-watch/internal/model"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// machineRowColumns is the column list for scanMachine results.
var machineRowColumns = []string{
	"id", "app_name", "name", "last_state", "last_updated",
	"region", "instance_id", "last_processed_event_timestamp",
}

// eventRowColumns is the column list for scanEvent results.
var eventRowColumns = []string{
	"id", "machine_id", "event_type", "previous_state", "new_state", "timestamp", "notified",
}

func testMachine() *model.Machine {
	return &model.Machine{
		ID:         "m1",
		Name:       "young-cloud-1",
		State:      model.StateStarted,
		Region:     "iad",
		InstanceID: "inst1",
		AppName:    "web",
	}
}

func TestUpsertMachine_WithWatermark(t *testing.T) {
	db, mock := newMockDB(t)

	watermark := int64(1700000000000)
	mock.ExpectExec("INSERT INTO machines").
		WithArgs("m1", "web", "young-cloud-1", "started", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), watermark).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpsertMachine(context.Background(), db, testMachine(), &watermark); err != nil {
		t.Fatalf("queryUpsertMachine: %v", err)
	}
}

func TestUpsertMachine_NilWatermarkPassesNull(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO machines").
		WithArgs("m1", "web", "young-cloud-1", "started", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpsertMachine(context.Background(), db, testMachine(), nil); err != nil {
		t.Fatalf("queryUpsertMachine: %v", err)
	}
}

func TestGetAllMachines(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(machineRowColumns).
		AddRow("m1", "web", "young-cloud-1", "started", now, "iad", "inst1", int64(500)).
		AddRow("m2", "worker", "old-fog-2", "stopped", now, nil, nil, nil)
	mock.ExpectQuery("SELECT .+ FROM machines ORDER BY id").WillReturnRows(rows)

	machines, err := queryGetAllMachines(context.Background(), db)
	if err != nil {
		t.Fatalf("queryGetAllMachines: %v", err)
	}
	if len(machines) != 2 {
		t.Fatalf("got %d machines, want 2", len(machines))
	}
	if machines[0].LastProcessedEventTimestamp == nil || *machines[0].LastProcessedEventTimestamp != 500 {
		t.Errorf("m1 watermark = %v, want 500", machines[0].LastProcessedEventTimestamp)
	}
	if machines[1].LastProcessedEventTimestamp != nil {
		t.Errorf("m2 watermark should be nil, got %d", *machines[1].LastProcessedEventTimestamp)
	}
	if machines[1].Region != "" {
		t.Errorf("m2 region should be empty, got %q", machines[1].Region)
	}
}

func TestRecordEvent(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO events").
		WithArgs("m1", "exit", nil, "stopped", int64(1700000000000), false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := queryRecordEvent(context.Background(), db, &model.StateChangeEvent{
		MachineID: "m1",
		EventType: "exit",
		NewState:  "stopped",
		Timestamp: 1700000000000,
		Notified:  false,
	})
	if err != nil {
		t.Fatalf("queryRecordEvent: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
}

func TestMarkEventNotified(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE events SET notified = TRUE").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryMarkEventNotified(context.Background(), db, 7); err != nil {
		t.Fatalf("queryMarkEventNotified: %v", err)
	}
}

func TestGetUnnotifiedEvents(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(int64(3), "m1", "exit", nil, "stopped", int64(100), false).
		AddRow(int64(5), "m2", "start", "stopped", "started", int64(200), false)
	mock.ExpectQuery("SELECT .+ FROM events WHERE NOT notified ORDER BY id").WillReturnRows(rows)

	events, err := queryGetUnnotifiedEvents(context.Background(), db)
	if err != nil {
		t.Fatalf("queryGetUnnotifiedEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != 3 || events[0].EventType != "exit" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].PreviousState != "stopped" {
		t.Errorf("previous_state = %q, want stopped", events[1].PreviousState)
	}
}

func TestScanHelpers(t *testing.T) {
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("iad"); !ns.Valid || ns.String != "iad" {
		t.Errorf("nullString(iad) = %+v", ns)
	}
	if nullInt64Ptr(nil).Valid {
		t.Error("nullInt64Ptr(nil) should be invalid")
	}
	v := int64(9)
	if ni := nullInt64Ptr(&v); !ni.Valid || ni.Int64 != 9 {
		t.Errorf("nullInt64Ptr(&9) = %+v", ni)
	}
}
