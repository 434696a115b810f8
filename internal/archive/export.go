// Package archive exports the ledger as JSONL and ships it to external
// destinations (S3-compatible storage) on a schedule, for billing
// reconciliation outside the watcher.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/patdx/fly-watch/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	MachineCount int       `json:"machine_count"`
	EventCount   int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes all stored machines and ledger events as JSONL to w.
// Machines come out ordered by ID and events by ledger identity, so two
// exports of the same ledger are byte-identical apart from the header time.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	machines, err := s.GetAllMachines(ctx)
	if err != nil {
		return fmt.Errorf("list machines: %w", err)
	}

	events, err := s.GetAllEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		MachineCount: len(machines),
		EventCount:   len(events),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, m := range machines {
		if err := enc.Encode(record{Type: "machine", Data: m}); err != nil {
			return fmt.Errorf("encode machine %s: %w", m.ID, err)
		}
	}

	for _, e := range events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %d: %w", e.ID, err)
		}
	}

	return nil
}
