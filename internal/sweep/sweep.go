// Package sweep re-delivers alerts for ledger rows whose notification never
// succeeded. It is the out-of-band retry path: the reconciliation engine
// itself never retries, it only leaves notified=false gaps behind.
package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patdx/fly-watch/internal/model"
	"github.com/patdx/fly-watch/internal/notify"
	"github.com/patdx/fly-watch/internal/store"
)

// Sweeper retries delivery for unnotified ledger rows.
type Sweeper struct {
	store    store.Store
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(s store.Store, notifier notify.Notifier, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: s, notifier: notifier, logger: logger}
}

// Sweep attempts one delivery per unnotified event, flipping notified on
// success. Delivery failures are logged and the row stays a gap for the
// next sweep. Returns how many rows were attempted and how many delivered.
func (s *Sweeper) Sweep(ctx context.Context) (attempted, delivered int, err error) {
	machines, err := s.store.GetAllMachines(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load stored machines: %w", err)
	}
	byID := make(map[string]*model.StoredMachine, len(machines))
	for _, m := range machines {
		byID[m.ID] = m
	}

	gaps, err := s.store.GetUnnotifiedEvents(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load unnotified events: %w", err)
	}

	for _, gap := range gaps {
		attempted++

		stored, ok := byID[gap.MachineID]
		if !ok {
			// Ledger rows reference machines; a miss means the snapshot was
			// removed out-of-band. Skip rather than fail the sweep.
			s.logger.Error("unnotified event references unknown machine", "machine", gap.MachineID, "event_id", gap.ID)
			continue
		}

		machine := snapshotMachine(stored)
		event := &model.Event{
			Type:      gap.EventType,
			Status:    gap.NewState,
			Source:    "ledger",
			Timestamp: gap.Timestamp,
		}

		message := s.notifier.FormatEvent(machine, event)
		if err := s.notifier.SendAlert(ctx, message); err != nil {
			s.logger.Error("sweep delivery failed", "machine", gap.MachineID, "event_id", gap.ID, "err", err)
			continue
		}

		if err := s.store.MarkEventNotified(ctx, gap.ID); err != nil {
			return attempted, delivered, fmt.Errorf("mark event %d notified: %w", gap.ID, err)
		}
		delivered++
	}

	s.logger.Info("sweep completed", "attempted", attempted, "delivered", delivered)
	return attempted, delivered, nil
}

// snapshotMachine rebuilds a Machine from its stored snapshot for message
// formatting.
func snapshotMachine(s *model.StoredMachine) *model.Machine {
	return &model.Machine{
		ID:         s.ID,
		Name:       s.Name,
		State:      s.LastState,
		Region:     s.Region,
		InstanceID: s.InstanceID,
		AppName:    s.AppName,
	}
}
