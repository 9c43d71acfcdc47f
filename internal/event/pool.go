package event

import "math/big"

// PoolProvide is emitted when a liquidity provider deposits into the
// writing pool and is minted shares.
type PoolProvide struct {
	Meta
	Account string
	Amount  *big.Int
	Mint    *big.Int
}

func (e *PoolProvide) EventType() EventType { return EventTypePoolProvide }

// PoolWithdraw is emitted when a provider burns shares for tokens.
type PoolWithdraw struct {
	Meta
	Account string
	Amount  *big.Int
	Burn    *big.Int
}

func (e *PoolWithdraw) EventType() EventType { return EventTypePoolWithdraw }

// PoolProfit is emitted when an expired option's locked premium is
// released to the pool.
type PoolProfit struct {
	Meta
	OptionID int64
	Amount   *big.Int
}

func (e *PoolProfit) EventType() EventType { return EventTypePoolProfit }

// PoolLoss is emitted when an exercised option's payout is taken from
// the pool.
type PoolLoss struct {
	Meta
	OptionID int64
	Amount   *big.Int
}

func (e *PoolLoss) EventType() EventType { return EventTypePoolLoss }
