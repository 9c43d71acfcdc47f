package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// UpsertWriter writes the event log and the derived aggregate records
// to Postgres using multi-row statements. Aggregates are stored as one
// JSONB payload per (kind, id), overwritten on every flush that touches
// them; the event log is append-only.
type UpsertWriter struct {
	db *sql.DB
}

// EventRow is a row in optx.events, one per applied chain event.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Contract       string
	SourceSequence int64
	BlockTime      int64
	BatchID        string
	Payload        []byte // JSON-encoded event payload
}

// AggregateRow is a row in optx.aggregates, the current materialized
// state of one derived record.
type AggregateRow struct {
	Kind     string
	ID       string
	Payload  []byte // JSON-encoded record
	Sequence int64  // Engine sequence of the event that last touched it
	BatchID  string
}

func NewUpsertWriter(db *sql.DB) *UpsertWriter {
	return &UpsertWriter{db: db}
}

// WriteEventBatch appends a batch of events to optx.events inside tx.
// Conflicting sequences are skipped so redelivered flushes stay idempotent.
func (w *UpsertWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO optx.events
		(sequence, event_type, idempotency_key, contract, source_sequence, block_time, batch_id, payload)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)

	for i, e := range events {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.Contract,
			e.SourceSequence, e.BlockTime, e.BatchID, e.Payload,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteAggregateBatch upserts aggregate records inside tx. The batch is
// collapsed to one row per (kind, id) first: Postgres rejects an INSERT
// that updates the same conflict target twice, and only the newest
// payload matters anyway.
func (w *UpsertWriter) WriteAggregateBatch(ctx context.Context, tx *sql.Tx, aggregates []AggregateRow) error {
	if len(aggregates) == 0 {
		return nil
	}

	rows := collapseAggregates(aggregates)

	query := `INSERT INTO optx.aggregates
		(kind, id, payload, last_sequence, batch_id)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*5)

	for i, r := range rows {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, r.Kind, r.ID, r.Payload, r.Sequence, r.BatchID)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (kind, id) DO UPDATE SET
		payload = EXCLUDED.payload,
		last_sequence = EXCLUDED.last_sequence,
		batch_id = EXCLUDED.batch_id,
		updated_at = NOW()
	WHERE optx.aggregates.last_sequence <= EXCLUDED.last_sequence`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// collapseAggregates keeps the highest-sequence row per (kind, id) and
// returns the survivors in deterministic key order.
func collapseAggregates(in []AggregateRow) []AggregateRow {
	latest := make(map[string]AggregateRow, len(in))
	for _, r := range in {
		key := r.Kind + "/" + r.ID
		if prev, ok := latest[key]; !ok || r.Sequence >= prev.Sequence {
			latest[key] = r
		}
	}

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]AggregateRow, 0, len(latest))
	for _, k := range keys {
		out = append(out, latest[k])
	}
	return out
}
