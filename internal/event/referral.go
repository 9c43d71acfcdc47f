package event

import "math/big"

// UpdateReferral is emitted by the referral storage on every trade
// placed with a referral code attached.
type UpdateReferral struct {
	Meta
	User        string
	Referrer    string
	Token       string
	IsValid     bool
	TotalFee    *big.Int
	ReferrerFee *big.Int
	Rebate      *big.Int
}

func (e *UpdateReferral) EventType() EventType { return EventTypeUpdateReferral }

// LBFRClaim is emitted when a user claims accrued loyalty tokens.
type LBFRClaim struct {
	Meta
	User   string
	Amount *big.Int
}

func (e *LBFRClaim) EventType() EventType { return EventTypeLBFRClaim }
