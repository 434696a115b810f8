package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/patdx/fly-watch/internal/model"
)

// fakeStore is an in-memory ledger with switchable failure modes.
type fakeStore struct {
	machines map[string]*model.StoredMachine
	events   []*model.StateChangeEvent
	nextID   int64

	failUpsertFor map[string]bool // machine IDs whose writes fail
	failRecordFor map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		machines:      make(map[string]*model.StoredMachine),
		failUpsertFor: make(map[string]bool),
		failRecordFor: make(map[string]bool),
	}
}

func (s *fakeStore) UpsertMachine(ctx context.Context, m *model.Machine, watermark *int64) error {
	if s.failUpsertFor[m.ID] {
		return errors.New("simulated upsert failure")
	}
	row, ok := s.machines[m.ID]
	if !ok {
		row = &model.StoredMachine{ID: m.ID}
		s.machines[m.ID] = row
	}
	row.AppName = m.AppName
	row.Name = m.Name
	row.LastState = m.State
	row.Region = m.Region
	row.InstanceID = m.InstanceID
	if watermark != nil {
		w := *watermark
		row.LastProcessedEventTimestamp = &w
	}
	return nil
}

func (s *fakeStore) GetAllMachines(ctx context.Context) ([]*model.StoredMachine, error) {
	out := make([]*model.StoredMachine, 0, len(s.machines))
	for _, m := range s.machines {
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) RecordEvent(ctx context.Context, e *model.StateChangeEvent) (int64, error) {
	if s.failRecordFor[e.MachineID] {
		return 0, errors.New("simulated record failure")
	}
	s.nextID++
	row := *e
	row.ID = s.nextID
	s.events = append(s.events, &row)
	return row.ID, nil
}

func (s *fakeStore) MarkEventNotified(ctx context.Context, eventID int64) error {
	for _, e := range s.events {
		if e.ID == eventID {
			e.Notified = true
			return nil
		}
	}
	return fmt.Errorf("event %d not found", eventID)
}

func (s *fakeStore) GetUnnotifiedEvents(ctx context.Context) ([]*model.StateChangeEvent, error) {
	var out []*model.StateChangeEvent
	for _, e := range s.events {
		if !e.Notified {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAllEvents(ctx context.Context) ([]*model.StateChangeEvent, error) {
	return s.events, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) watermark(t *testing.T, machineID string) int64 {
	t.Helper()
	row, ok := s.machines[machineID]
	if !ok {
		t.Fatalf("machine %s not stored", machineID)
	}
	if row.LastProcessedEventTimestamp == nil {
		t.Fatalf("machine %s has no watermark", machineID)
	}
	return *row.LastProcessedEventTimestamp
}

// fakeNotifier records delivered timestamps and can fail on demand.
type fakeNotifier struct {
	delivered []string
	fail      bool
}

func (n *fakeNotifier) FormatEvent(m *model.Machine, e *model.Event) string {
	return fmt.Sprintf("%s:%s@%d", m.ID, e.Type, e.Timestamp)
}

func (n *fakeNotifier) SendAlert(ctx context.Context, message string) error {
	if n.fail {
		return errors.New("simulated delivery failure")
	}
	n.delivered = append(n.delivered, message)
	return nil
}

func (n *fakeNotifier) StateEmoji(state string) string { return "⚪" }

// fakeInventory serves canned apps/machines and can fail per app.
type fakeInventory struct {
	apps     []model.App
	machines map[string][]model.Machine
	failApps map[string]bool
}

func (f *fakeInventory) ListApps(ctx context.Context) ([]model.App, error) {
	return f.apps, nil
}

func (f *fakeInventory) ListMachines(ctx context.Context, appName string) ([]model.Machine, error) {
	if f.failApps[appName] {
		return nil, errors.New("simulated fetch failure")
	}
	return f.machines[appName], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(s *fakeStore, n *fakeNotifier) *Monitor {
	return New(nil, n, s, nil, testLogger())
}

func machine(id string, events ...model.Event) model.Machine {
	return model.Machine{
		ID:      id,
		Name:    "machine-" + id,
		State:   model.StateStarted,
		Region:  "iad",
		AppName: "web",
		Events:  events,
	}
}

func ev(typ string, ts int64) model.Event {
	return model.Event{ID: fmt.Sprintf("e%d", ts), Type: typ, Status: "started", Source: "flyd", Timestamp: ts}
}

func TestChronologicalNotificationOrder(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	m.Reconcile(context.Background(), []model.Machine{
		machine("m1", ev("start", 300), ev("start", 100), ev("stop", 200)),
	})

	want := []string{"m1:start@100", "m1:stop@200", "m1:start@300"}
	if len(n.delivered) != len(want) {
		t.Fatalf("delivered %d alerts, want %d: %v", len(n.delivered), len(want), n.delivered)
	}
	for i, w := range want {
		if n.delivered[i] != w {
			t.Errorf("delivered[%d] = %q, want %q", i, n.delivered[i], w)
		}
	}
	if got := s.watermark(t, "m1"); got != 300 {
		t.Errorf("watermark = %d, want 300", got)
	}
}

func TestIdempotentRedelivery(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	fleet := []model.Machine{machine("m1", ev("start", 100), ev("stop", 200))}

	m.Reconcile(context.Background(), fleet)
	if len(s.events) != 2 || len(n.delivered) != 2 {
		t.Fatalf("first pass: %d rows, %d alerts", len(s.events), len(n.delivered))
	}

	// Same event log again: zero new rows, zero notifications.
	m.Reconcile(context.Background(), fleet)
	if len(s.events) != 2 {
		t.Errorf("second pass created %d extra rows", len(s.events)-2)
	}
	if len(n.delivered) != 2 {
		t.Errorf("second pass delivered %d extra alerts", len(n.delivered)-2)
	}
}

func TestMonotonicWatermark(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	m.Reconcile(context.Background(), []model.Machine{machine("m1", ev("start", 500))})
	if got := s.watermark(t, "m1"); got != 500 {
		t.Fatalf("watermark = %d, want 500", got)
	}

	// A truncated event log must not move the watermark backwards.
	m.Reconcile(context.Background(), []model.Machine{machine("m1", ev("start", 300))})
	if got := s.watermark(t, "m1"); got != 500 {
		t.Errorf("watermark = %d after truncated log, want 500", got)
	}
}

func TestBillingRelevanceFilter(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	m.Reconcile(context.Background(), []model.Machine{
		machine("m1", ev("exit", 100), ev("healthcheck", 200)),
	})

	if len(s.events) != 1 {
		t.Fatalf("got %d ledger rows, want 1", len(s.events))
	}
	if s.events[0].EventType != "exit" {
		t.Errorf("recorded type = %q, want exit", s.events[0].EventType)
	}
	if len(n.delivered) != 1 {
		t.Errorf("delivered %d alerts, want 1", len(n.delivered))
	}
	// The ignored healthcheck still advances the watermark past itself.
	if got := s.watermark(t, "m1"); got != 200 {
		t.Errorf("watermark = %d, want 200", got)
	}
}

func TestFirstSightBackfill(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	m.Reconcile(context.Background(), []model.Machine{
		machine("m1", ev("start", 10), ev("stop", 20), ev("start", 30)),
	})

	if len(n.delivered) != 3 {
		t.Fatalf("delivered %d alerts, want 3 (no backfill suppression on first sight)", len(n.delivered))
	}
	if got := s.watermark(t, "m1"); got != 30 {
		t.Errorf("watermark = %d, want 30", got)
	}
}

func TestPartialFailureContainment(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	s.failRecordFor["a"] = true

	fleet := []model.Machine{
		machine("a", ev("start", 100)),
		machine("b", ev("start", 100)),
	}
	m.Reconcile(context.Background(), fleet)

	// B completed and committed its watermark.
	if got := s.watermark(t, "b"); got != 100 {
		t.Errorf("machine b watermark = %d, want 100", got)
	}
	// A's watermark was not advanced.
	if row, ok := s.machines["a"]; ok && row.LastProcessedEventTimestamp != nil {
		t.Errorf("machine a watermark advanced despite ledger failure")
	}
	if len(n.delivered) != 1 {
		t.Fatalf("delivered %d alerts, want 1", len(n.delivered))
	}

	// Next pass with the failure healed: only A's stale events re-process.
	s.failRecordFor["a"] = false
	m.Reconcile(context.Background(), fleet)
	if len(n.delivered) != 2 {
		t.Fatalf("after retry pass delivered %d alerts, want 2", len(n.delivered))
	}
	if n.delivered[1] != "a:start@100" {
		t.Errorf("retried alert = %q, want a:start@100", n.delivered[1])
	}
}

func TestDeliveryFailureLeavesRecoverableGap(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{fail: true}
	m := newTestMonitor(s, n)

	m.Reconcile(context.Background(), []model.Machine{machine("m1", ev("exit", 100))})

	// The row exists, unnotified, and the watermark still advanced:
	// delivery failure is a recoverable gap, not a blocking one.
	gaps, err := s.GetUnnotifiedEvents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(gaps) != 1 {
		t.Fatalf("got %d unnotified rows, want 1", len(gaps))
	}
	if gaps[0].EventType != "exit" || gaps[0].Notified {
		t.Errorf("unexpected gap row: %+v", gaps[0])
	}
	if got := s.watermark(t, "m1"); got != 100 {
		t.Errorf("watermark = %d, want 100", got)
	}

	// Re-running must NOT re-deliver: the core does not retry.
	n.fail = false
	m.Reconcile(context.Background(), []model.Machine{machine("m1", ev("exit", 100))})
	if len(n.delivered) != 0 {
		t.Errorf("core re-delivered a past-watermark event: %v", n.delivered)
	}
}

func TestEmptyEventLogKeepsWatermark(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	m.Reconcile(context.Background(), []model.Machine{machine("m1", ev("start", 50))})

	// Same machine, no events this time: snapshot refreshes, watermark stays.
	empty := machine("m1")
	empty.State = model.StateStopped
	m.Reconcile(context.Background(), []model.Machine{empty})

	row := s.machines["m1"]
	if row.LastState != model.StateStopped {
		t.Errorf("snapshot not refreshed: state = %s", row.LastState)
	}
	if got := s.watermark(t, "m1"); got != 50 {
		t.Errorf("watermark = %d, want 50", got)
	}
}

func TestEventIDIgnoredForOrdering(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	// Source IDs are deliberately adversarial: descending while time ascends.
	events := []model.Event{
		{ID: "zzz", Type: "start", Status: "started", Source: "flyd", Timestamp: 100},
		{ID: "aaa", Type: "stop", Status: "stopped", Source: "flyd", Timestamp: 200},
	}
	m.Reconcile(context.Background(), []model.Machine{machine("m1", events...)})

	want := []string{"m1:start@100", "m1:stop@200"}
	for i, w := range want {
		if n.delivered[i] != w {
			t.Errorf("delivered[%d] = %q, want %q", i, n.delivered[i], w)
		}
	}
}

func TestTimestampTiesKeepEncounterOrder(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	m := newTestMonitor(s, n)

	events := []model.Event{
		{ID: "first", Type: "stop", Status: "stopped", Source: "flyd", Timestamp: 100},
		{ID: "second", Type: "start", Status: "started", Source: "flyd", Timestamp: 100},
	}
	m.Reconcile(context.Background(), []model.Machine{machine("m1", events...)})

	want := []string{"m1:stop@100", "m1:start@100"}
	if len(n.delivered) != 2 {
		t.Fatalf("delivered %d alerts, want 2", len(n.delivered))
	}
	for i, w := range want {
		if n.delivered[i] != w {
			t.Errorf("delivered[%d] = %q, want %q (stable tie-break)", i, n.delivered[i], w)
		}
	}
}

func TestRunIsolatesAppFetchFailures(t *testing.T) {
	s := newFakeStore()
	n := &fakeNotifier{}
	inv := &fakeInventory{
		apps: []model.App{{Name: "web"}, {Name: "worker"}},
		machines: map[string][]model.Machine{
			"web":    {machine("m1", ev("start", 100))},
			"worker": {machine("m2", ev("start", 100))},
		},
		failApps: map[string]bool{"web": true},
	}
	m := New(inv, n, s, nil, testLogger())

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// worker's machine was processed despite web's fetch failing.
	if got := s.watermark(t, "m2"); got != 100 {
		t.Errorf("m2 watermark = %d, want 100", got)
	}
	if _, ok := s.machines["m1"]; ok {
		t.Error("m1 should be absent this pass (its app fetch failed)")
	}
}
