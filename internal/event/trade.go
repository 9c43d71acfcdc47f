package event

import "math/big"

// InitiateTrade is emitted by the router when a user queues a trade
// against a target options market.
type InitiateTrade struct {
	Meta
	QueueID           int64
	User              string
	TargetContract    string
	Strike            *big.Int
	TotalFee          *big.Int
	SlippageTolerance int64
	IsAbove           bool
}

func (e *InitiateTrade) EventType() EventType { return EventTypeInitiateTrade }

// OpenTrade is emitted by the router when a keeper executes a queued
// trade, creating option optionID on the target market.
type OpenTrade struct {
	Meta
	QueueID        int64
	OptionID       int64
	TargetContract string
}

func (e *OpenTrade) EventType() EventType { return EventTypeOpenTrade }

// CancelTrade is emitted by the router when a queued trade is dropped
// before execution.
type CancelTrade struct {
	Meta
	QueueID        int64
	TargetContract string
	Reason         int64
}

func (e *CancelTrade) EventType() EventType { return EventTypeCancelTrade }

// Create is emitted by an options market when an option is written.
// Strike, amount, expiry and direction are read back from the market.
type Create struct {
	Meta
	OptionID      int64
	User          string
	TotalFee      *big.Int
	SettlementFee *big.Int
}

func (e *Create) EventType() EventType { return EventTypeCreate }

// Exercise is emitted when an option settles in the money.
type Exercise struct {
	Meta
	OptionID          int64
	Payout            *big.Int
	PriceAtExpiration *big.Int
}

func (e *Exercise) EventType() EventType { return EventTypeExercise }

// Expire is emitted when an option settles out of the money. Premium
// is the writer-retained amount, net of the settlement fee.
type Expire struct {
	Meta
	OptionID          int64
	Premium           *big.Int
	PriceAtExpiration *big.Int
}

func (e *Expire) EventType() EventType { return EventTypeExpire }

// Pause is emitted when a market's trading switch is flipped.
type Pause struct {
	Meta
	IsPaused bool
}

func (e *Pause) EventType() EventType { return EventTypePause }
