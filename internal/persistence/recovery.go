package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"OptionStats/internal/store"
)

// Recovery rebuilds engine state from Postgres on startup. The
// aggregates table is the materialized state, so a warm restart is a
// straight load: no event replay is needed, redelivered NATS messages
// are absorbed by the dedup tiers instead.
type Recovery struct {
	db *sql.DB
}

func NewRecovery(db *sql.DB) *Recovery {
	return &Recovery{db: db}
}

// LoadAggregates decodes every persisted aggregate record and hands it
// to put, normally the engine store's Put.
func (r *Recovery) LoadAggregates(ctx context.Context, put func(store.Entity)) (int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, payload FROM optx.aggregates
	`)
	if err != nil {
		return 0, fmt.Errorf("query aggregates: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var kind, id string
		var payload []byte
		if err := rows.Scan(&kind, &id, &payload); err != nil {
			return count, err
		}

		entity, err := store.Decode(kind, payload)
		if err != nil {
			return count, fmt.Errorf("aggregate %s/%s: %w", kind, id, err)
		}
		put(entity)
		count++
	}

	return count, rows.Err()
}

// LastSequence returns the highest engine sequence in the event log,
// or 0 when the log is empty.
func (r *Recovery) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM optx.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// LastOrdinals returns the highest applied source ordinal per emitting
// contract, used to re-seed the per-partition ordering validator.
func (r *Recovery) LastOrdinals(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT contract, MAX(source_sequence)
		FROM optx.events
		WHERE contract <> ''
		GROUP BY contract
	`)
	if err != nil {
		return nil, fmt.Errorf("query last ordinals: %w", err)
	}
	defer rows.Close()

	ordinals := make(map[string]int64)
	for rows.Next() {
		var contract string
		var ordinal int64
		if err := rows.Scan(&contract, &ordinal); err != nil {
			return nil, err
		}
		ordinals[contract] = ordinal
	}

	return ordinals, rows.Err()
}

// RecentIdempotencyKeys returns up to limit of the newest composite
// dedup keys (eventType:idempotencyKey), oldest first, for LRU warming.
func (r *Recovery) RecentIdempotencyKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, idempotency_key
		FROM optx.events
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query idempotency keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var eventType, key string
		if err := rows.Scan(&eventType, &key); err != nil {
			return nil, err
		}
		keys = append(keys, eventType+":"+key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse so the newest keys land last and survive LRU eviction.
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}

	return keys, nil
}
