package event

import "strconv"

// Meta carries the chain coordinates every decoded log shares. The
// idempotency key is txHash-logIndex, which is stable across indexer
// restarts and redeliveries. Ordering within a contract partition uses
// the ordinal blockNumber<<16 | logIndex; ordinals are monotonically
// increasing per contract but gapped, since a contract does not emit
// in every block.
type Meta struct {
	BlockNumber int64
	TxHash      string
	LogIndex    int64
	Timestamp   int64 // block timestamp, Unix seconds
	Contract    string
}

func (m Meta) IdempotencyKey() string {
	return m.TxHash + "-" + strconv.FormatInt(m.LogIndex, 10)
}

func (m Meta) ContractAddress() string { return m.Contract }

func (m Meta) SourceSequence() int64 {
	return m.BlockNumber<<16 | m.LogIndex
}

func (m Meta) BlockTime() int64 { return m.Timestamp }
