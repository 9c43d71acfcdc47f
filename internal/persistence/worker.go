package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"OptionStats/internal/core"
	"OptionStats/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres.
// This goroutine runs independently from the deterministic engine. The
// persist channel uses BLOCKING sends from the engine, so if this
// worker falls behind the engine stalls, guaranteeing no event is lost.
type Worker struct {
	writer       *UpsertWriter
	db           *sql.DB
	inputChan    <-chan core.Output
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan core.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewUpsertWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the worker loop. It batches incoming outputs and flushes
// either when the batch is full or the flush timeout expires. Blocks
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	eventBatch := make([]EventRow, 0, w.batchSize)
	aggregateBatch := make([]AggregateRow, 0, w.batchSize*8)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining with a background
			// context, the parent is already cancelled.
			if len(eventBatch) > 0 {
				if err := w.flush(context.Background(), eventBatch, aggregateBatch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				if len(eventBatch) > 0 {
					if err := w.flush(context.Background(), eventBatch, aggregateBatch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			eventRow, aggregateRows, err := rowsFromOutput(output)
			if err != nil {
				// Marshal failures are programming errors; the event
				// stays in the log so the failure is visible.
				log.Printf("ERROR: encode output seq=%d: %v", output.Envelope.Sequence, err)
				if w.metrics != nil {
					w.metrics.PersistErrors.WithLabelValues("encode").Inc()
				}
				continue
			}

			eventBatch = append(eventBatch, eventRow)
			aggregateBatch = append(aggregateBatch, aggregateRows...)

			if len(eventBatch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, eventBatch, aggregateBatch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				eventBatch = eventBatch[:0]
				aggregateBatch = aggregateBatch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(eventBatch) > 0 {
				if err := w.flushWithRetry(ctx, eventBatch, aggregateBatch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				eventBatch = eventBatch[:0]
				aggregateBatch = aggregateBatch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// rowsFromOutput flattens one engine output into its event-log row and
// the aggregate rows it dirtied.
func rowsFromOutput(out core.Output) (EventRow, []AggregateRow, error) {
	env := out.Envelope
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return EventRow{}, nil, fmt.Errorf("marshal event: %w", err)
	}

	batchID := out.BatchID.String()
	eventRow := EventRow{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Contract:       env.Event.ContractAddress(),
		SourceSequence: env.Event.SourceSequence(),
		BlockTime:      env.Event.BlockTime(),
		BatchID:        batchID,
		Payload:        payload,
	}

	aggregateRows := make([]AggregateRow, 0, len(out.Upserts))
	for _, entity := range out.Upserts {
		data, err := json.Marshal(entity)
		if err != nil {
			return EventRow{}, nil, fmt.Errorf("marshal %s/%s: %w", entity.Kind(), entity.ID(), err)
		}
		aggregateRows = append(aggregateRows, AggregateRow{
			Kind:     entity.Kind(),
			ID:       entity.ID(),
			Payload:  data,
			Sequence: env.Sequence,
			BatchID:  batchID,
		})
	}

	return eventRow, aggregateRows, nil
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops events: it retries until the write succeeds or the
// context is cancelled, then makes one final attempt on shutdown.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, aggregates []AggregateRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, events=%d)",
				attempt, backoff, len(events))
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				finalErr := w.flush(context.Background(), events, aggregates)
				if finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, events, aggregates)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, aggregates []AggregateRow) error {
	start := time.Now()

	// Event log and aggregates commit atomically: a crash between the
	// two would desync recovery from the dedup index.
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	if err := w.writer.WriteAggregateBatch(ctx, tx, aggregates); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_aggregates").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistRowsWritten.Add(float64(len(aggregates)))
		if len(events) > 0 {
			w.metrics.PersistLastSeq.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}
