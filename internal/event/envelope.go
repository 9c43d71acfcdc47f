package event

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeInitiateTrade
	EventTypeOpenTrade
	EventTypeCancelTrade
	EventTypeCreate
	EventTypeExercise
	EventTypeExpire
	EventTypePause
	EventTypeUpdateReferral
	EventTypeLBFRClaim
	EventTypePoolProvide
	EventTypePoolWithdraw
	EventTypePoolProfit
	EventTypePoolLoss
	EventTypeTokenTransfer
)

// Envelope wraps an applied event with the sequence the engine
// assigned to it.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from the chain (txHash-logIndex)
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// The typed payload
	Event Event
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// ContractAddress returns the emitting contract, the ordering
	// partition for sequence validation
	ContractAddress() string

	// SourceSequence returns the chain ordering key for the event
	SourceSequence() int64

	// BlockTime returns the block timestamp in Unix seconds
	BlockTime() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeInitiateTrade:
		return "InitiateTrade"
	case EventTypeOpenTrade:
		return "OpenTrade"
	case EventTypeCancelTrade:
		return "CancelTrade"
	case EventTypeCreate:
		return "Create"
	case EventTypeExercise:
		return "Exercise"
	case EventTypeExpire:
		return "Expire"
	case EventTypePause:
		return "Pause"
	case EventTypeUpdateReferral:
		return "UpdateReferral"
	case EventTypeLBFRClaim:
		return "LBFRClaim"
	case EventTypePoolProvide:
		return "PoolProvide"
	case EventTypePoolWithdraw:
		return "PoolWithdraw"
	case EventTypePoolProfit:
		return "PoolProfit"
	case EventTypePoolLoss:
		return "PoolLoss"
	case EventTypeTokenTransfer:
		return "TokenTransfer"
	default:
		return "Unknown"
	}
}
