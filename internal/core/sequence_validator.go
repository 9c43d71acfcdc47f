package core

import (
	"fmt"
)

// SequenceValidator validates event ordinals per contract partition.
// Ordinals (blockNumber<<16 | logIndex) are strictly increasing within
// a contract but inherently gapped, since a contract does not emit in
// every block. Forward jumps are therefore accepted; regressions of
// events we have not already processed are rejected.
// Not thread-safe, only accessed from the single-threaded engine.
type SequenceValidator struct {
	lastOrdinal map[string]int64 // partition -> highest accepted ordinal
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		lastOrdinal: make(map[string]int64),
	}
}

// ValidateOrdinal checks chain ordering for one partition. A stale
// ordinal from a duplicate delivery is fine; a stale ordinal on a new
// event means the upstream reordered and the aggregates would corrupt.
// Validation does not move the watermark: the caller commits the
// ordinal only after the event fully applied, so a failed event can be
// redelivered and pass this check again.
func (sv *SequenceValidator) ValidateOrdinal(partition string, ordinal int64, isDuplicate bool) error {
	last, seen := sv.lastOrdinal[partition]

	if seen && ordinal <= last {
		if isDuplicate {
			return nil
		}
		return fmt.Errorf("out-of-order event: partition=%s, last=%d, got=%d",
			partition, last, ordinal)
	}

	return nil
}

// Commit advances the partition watermark to an applied event's
// ordinal. Called once per successfully processed event.
func (sv *SequenceValidator) Commit(partition string, ordinal int64) {
	if ordinal > sv.lastOrdinal[partition] {
		sv.lastOrdinal[partition] = ordinal
	}
}

// LastOrdinal returns the highest accepted ordinal for a partition.
func (sv *SequenceValidator) LastOrdinal(partition string) int64 {
	return sv.lastOrdinal[partition]
}

// SetLastOrdinal initializes a partition (used during recovery).
func (sv *SequenceValidator) SetLastOrdinal(partition string, ordinal int64) {
	sv.lastOrdinal[partition] = ordinal
}
