package projection

import (
	"context"
	"log"

	"OptionStats/internal/core"
	"OptionStats/internal/store"
)

// Worker drains the projection channel and mirrors competition rows
// into Redis. The channel is fed with non-blocking sends that drop on
// full: a failed or missed update only leaves the cache stale, and the
// cache can always be rebuilt from the aggregates table.
type Worker struct {
	cache     *LeaderboardCache
	inputChan <-chan core.Output
	lastSeq   int64
}

func NewWorker(cache *LeaderboardCache, inputChan <-chan core.Output) *Worker {
	return &Worker{
		cache:     cache,
		inputChan: inputChan,
	}
}

// Run starts the projection loop. Blocks until ctx is cancelled or the
// input channel closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if err := w.process(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v",
					output.Envelope.Sequence, err)
				continue
			}

			w.lastSeq = output.Envelope.Sequence
		}
	}
}

func (w *Worker) process(ctx context.Context, output core.Output) error {
	touched := false
	for _, entity := range output.Upserts {
		switch entity.Kind() {
		case store.KindLeaderboard, store.KindWeeklyLeaderboard:
			if err := w.cache.Apply(ctx, entity); err != nil {
				return err
			}
			touched = true
		}
	}

	if touched {
		return w.cache.SetWatermark(ctx, output.Envelope.Sequence)
	}
	return nil
}
