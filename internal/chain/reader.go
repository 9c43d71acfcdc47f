// Package chain exposes read-only contract state the engine needs
// while applying events: option terms, pool balances and the AMM
// price. Lookups are synchronous; the engine blocks on them.
package chain

import "math/big"

// ContractState is the registry row for one options market.
type ContractState struct {
	Address     string `json:"address"`
	Token       string `json:"token"`
	Asset       string `json:"asset"`
	PoolAddress string `json:"poolAddress"`
	IsPaused    bool   `json:"isPaused"`
}

// OptionData holds the on-chain terms of one written option.
type OptionData struct {
	Strike         *big.Int `json:"strike"`
	Amount         *big.Int `json:"amount"`
	LockedAmount   *big.Int `json:"lockedAmount"`
	CreationTime   int64    `json:"creationTime"`
	ExpirationTime int64    `json:"expirationTime"`
	IsAbove        bool     `json:"isAbove"`
}

// PoolState holds the writing pool's balances.
type PoolState struct {
	TotalTokenBalance *big.Int `json:"totalTokenBalance"`
	TotalSupply       *big.Int `json:"totalSupply"`
	TotalLocked       *big.Int `json:"totalLocked"`
}

// Reader answers contract-state lookups. Implementations must be safe
// to call from the engine goroutine.
type Reader interface {
	// IsRegistered reports whether addr is a market this deployment
	// indexes. Events from unregistered sources are discarded.
	IsRegistered(addr string) bool

	// ContractState returns the registry row for a market.
	ContractState(addr string) (ContractState, error)

	// OptionData returns the terms of option id on a market.
	OptionData(addr string, optionID int64) (OptionData, error)

	// PoolState returns the balances of a writing pool.
	PoolState(addr string) (PoolState, error)

	// SqrtPriceX96 returns the current AMM sqrt price of the
	// secondary settlement token against the reference currency.
	SqrtPriceX96() (*big.Int, error)
}
