package event

import "math/big"

// TokenTransfer is emitted by the loyalty token for every transfer,
// including mints (From zero address) and burns (To zero address).
type TokenTransfer struct {
	Meta
	From  string
	To    string
	Value *big.Int
}

func (e *TokenTransfer) EventType() EventType { return EventTypeTokenTransfer }
