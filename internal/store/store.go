package store

import (
	"context"

	"github.com/patdx/fly-watch/internal/model"
)

// Store defines the persistence interface for the machine ledger.
type Store interface {
	// Machine snapshots
	//
	// UpsertMachine refreshes the stored snapshot for machine.ID, creating
	// the row on first sighting. A non-nil watermark overwrites the stored
	// last_processed_event_timestamp; nil leaves the prior value untouched.
	UpsertMachine(ctx context.Context, machine *model.Machine, watermark *int64) error
	GetAllMachines(ctx context.Context) ([]*model.StoredMachine, error)

	// Transition ledger
	//
	// RecordEvent appends a ledger row (notified should be false) and
	// returns its assigned identity.
	RecordEvent(ctx context.Context, event *model.StateChangeEvent) (int64, error)
	MarkEventNotified(ctx context.Context, eventID int64) error
	GetUnnotifiedEvents(ctx context.Context) ([]*model.StateChangeEvent, error)
	GetAllEvents(ctx context.Context) ([]*model.StateChangeEvent, error)

	// Lifecycle
	Close() error
}
