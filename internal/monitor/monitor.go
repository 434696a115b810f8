// Package monitor implements the event reconciliation engine: it compares
// each machine's freshly fetched event log against the persisted watermark,
// selects and orders the new events, drives exactly-once notification for
// billing-relevant transitions, and advances the watermark.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/patdx/fly-watch/internal/events"
	"github.com/patdx/fly-watch/internal/idgen"
	"github.com/patdx/fly-watch/internal/model"
	"github.com/patdx/fly-watch/internal/notify"
	"github.com/patdx/fly-watch/internal/store"
)

// Inventory is the remote machine/event source consumed by the engine.
type Inventory interface {
	ListApps(ctx context.Context) ([]model.App, error)
	ListMachines(ctx context.Context, appName string) ([]model.Machine, error)
}

// Monitor drives one reconciliation pass over the fleet. All collaborators
// are injected; the monitor holds no global state.
type Monitor struct {
	inventory Inventory
	notifier  notify.Notifier
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
}

// New creates a monitor. The publisher may be nil to disable transition
// event publishing.
func New(inventory Inventory, notifier notify.Notifier, s store.Store, publisher events.Publisher, logger *slog.Logger) *Monitor {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Monitor{
		inventory: inventory,
		notifier:  notifier,
		store:     s,
		publisher: publisher,
		logger:    logger,
	}
}

// Run executes one full pass: fetch the fleet snapshot, then reconcile it.
// A fetch failure for one app skips that app's machines for this pass;
// their watermarks stay put and they are retried on the next pass.
func (m *Monitor) Run(ctx context.Context) error {
	runID, err := idgen.Generate()
	if err != nil {
		runID = "run-unknown"
	}
	logger := m.logger.With("run", runID)
	logger.Info("starting machine status check")

	apps, err := m.inventory.ListApps(ctx)
	if err != nil {
		return fmt.Errorf("list apps: %w", err)
	}
	logger.Info("found apps", "count", len(apps))

	var fleet []model.Machine
	for _, app := range apps {
		machines, err := m.inventory.ListMachines(ctx, app.Name)
		if err != nil {
			logger.Error("failed to get machines for app", "app", app.Name, "err", err)
			continue
		}
		logger.Info("found machines", "app", app.Name, "count", len(machines))
		fleet = append(fleet, machines...)
	}

	m.Reconcile(ctx, fleet)
	logger.Info("machine check completed", "machines", len(fleet))
	return nil
}

// Reconcile processes the fleet snapshot machine by machine. Machines are
// independent: a persistence failure aborts only that machine's processing
// (its watermark is left untouched so its events are retried next pass).
func (m *Monitor) Reconcile(ctx context.Context, fleet []model.Machine) {
	storedMap := make(map[string]*model.StoredMachine)
	stored, err := m.store.GetAllMachines(ctx)
	if err != nil {
		m.logger.Error("failed to load stored machines", "err", err)
		return
	}
	for _, s := range stored {
		storedMap[s.ID] = s
	}

	for i := range fleet {
		machine := &fleet[i]
		var watermark *int64
		if s, ok := storedMap[machine.ID]; ok {
			watermark = s.LastProcessedEventTimestamp
		}
		if err := m.reconcileMachine(ctx, machine, watermark); err != nil {
			m.logger.Error("machine reconciliation failed", "machine", machine.ID, "app", machine.AppName, "err", err)
		}
	}
}

// reconcileMachine evaluates one machine's event log against its watermark,
// handles new events in chronological order, and commits the snapshot with
// the advanced watermark. Returned errors are persistence failures; the
// watermark is not advanced in that case.
func (m *Monitor) reconcileMachine(ctx context.Context, machine *model.Machine, watermark *int64) error {
	newEvents := selectNewEvents(machine.Events, watermark)

	if len(newEvents) > 0 {
		m.logger.Info("processing new events", "machine", machine.Name, "count", len(newEvents))
	}

	for i := range newEvents {
		if err := m.handleEvent(ctx, machine, &newEvents[i]); err != nil {
			// Ledger failure: abort this machine without advancing the
			// watermark so the remaining events are retried next pass.
			return err
		}
	}

	// The watermark advances to the max timestamp across ALL fetched
	// events, not just new or billing-relevant ones, so ignored events are
	// never re-examined. With no events at all the prior value stays.
	newWatermark := watermark
	if latest, ok := machine.LatestEventTimestamp(); ok {
		if watermark != nil && *watermark > latest {
			// Never move backwards, even if the source log was truncated.
			latest = *watermark
		}
		newWatermark = &latest
	}

	if err := m.store.UpsertMachine(ctx, machine, newWatermark); err != nil {
		return fmt.Errorf("upsert machine %s: %w", machine.ID, err)
	}
	return nil
}

// selectNewEvents returns the events strictly past the watermark, sorted
// ascending by timestamp. The sort is stable so timestamp ties keep their
// original encounter order and replays stay deterministic. A nil watermark
// means no floor: every event is new.
func selectNewEvents(evs []model.Event, watermark *int64) []model.Event {
	var out []model.Event
	for _, e := range evs {
		if watermark == nil || e.Timestamp > *watermark {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// handleEvent runs the per-event sub-protocol. Only ledger write failures
// are returned; notification delivery failures are logged and leave the
// ledger row with notified=false as a recoverable gap.
func (m *Monitor) handleEvent(ctx context.Context, machine *model.Machine, event *model.Event) error {
	if !event.IsBillingRelevant() {
		return nil
	}

	m.logger.Info("billing-relevant event",
		"machine", machine.Name, "type", event.Type, "status", event.Status)

	// The machine row must exist before the dependent event row.
	if err := m.store.UpsertMachine(ctx, machine, nil); err != nil {
		return fmt.Errorf("upsert machine %s: %w", machine.ID, err)
	}

	eventID, err := m.store.RecordEvent(ctx, &model.StateChangeEvent{
		MachineID: machine.ID,
		EventType: event.Type,
		NewState:  event.Status,
		Timestamp: event.Timestamp,
		Notified:  false,
	})
	if err != nil {
		return fmt.Errorf("record event for %s: %w", machine.ID, err)
	}

	if err := m.publisher.Publish(ctx, events.TopicFor(event.Type), events.MachineTransition{
		MachineID: machine.ID,
		Machine:   machine.Name,
		App:       machine.AppName,
		Region:    machine.Region,
		EventType: event.Type,
		Status:    event.Status,
		Timestamp: event.Timestamp,
	}); err != nil {
		m.logger.Error("failed to publish transition event", "machine", machine.ID, "err", err)
	}

	message := m.notifier.FormatEvent(machine, event)
	if err := m.notifier.SendAlert(ctx, message); err != nil {
		m.logger.Error("notification delivery failed",
			"machine", machine.Name, "type", event.Type, "event_id", eventID, "err", err)
		return nil
	}

	if err := m.store.MarkEventNotified(ctx, eventID); err != nil {
		return fmt.Errorf("mark event %d notified: %w", eventID, err)
	}
	return nil
}
