package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"

	"OptionStats/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string)
// into a typed event.Event. The ingestion shell validates and converts
// raw messages before anything reaches the engine.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "InitiateTrade":
		return parseInitiateTrade(raw.Data)
	case "OpenTrade":
		return parseOpenTrade(raw.Data)
	case "CancelTrade":
		return parseCancelTrade(raw.Data)
	case "Create":
		return parseCreate(raw.Data)
	case "Exercise":
		return parseExercise(raw.Data)
	case "Expire":
		return parseExpire(raw.Data)
	case "Pause":
		return parsePause(raw.Data)
	case "UpdateReferral":
		return parseUpdateReferral(raw.Data)
	case "LBFRClaim":
		return parseLBFRClaim(raw.Data)
	case "PoolProvide":
		return parsePoolProvide(raw.Data)
	case "PoolWithdraw":
		return parsePoolWithdraw(raw.Data)
	case "PoolProfit":
		return parsePoolProfit(raw.Data)
	case "PoolLoss":
		return parsePoolLoss(raw.Data)
	case "TokenTransfer":
		return parseTokenTransfer(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match the upstream decoder. Amounts
// arrive as decimal strings; 18-decimal values do not fit in an int64.

type metaJSON struct {
	BlockNumber int64  `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    int64  `json:"log_index"`
	Timestamp   int64  `json:"timestamp"`
	Contract    string `json:"contract"`
}

func (m metaJSON) toMeta() (event.Meta, error) {
	if m.TxHash == "" {
		return event.Meta{}, fmt.Errorf("missing tx_hash")
	}
	if m.Contract == "" {
		return event.Meta{}, fmt.Errorf("missing contract")
	}
	if m.BlockNumber <= 0 {
		return event.Meta{}, fmt.Errorf("invalid block_number %d", m.BlockNumber)
	}
	return event.Meta{
		BlockNumber: m.BlockNumber,
		TxHash:      m.TxHash,
		LogIndex:    m.LogIndex,
		Timestamp:   m.Timestamp,
		Contract:    m.Contract,
	}, nil
}

func parseBig(s, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: invalid amount %q", field, s)
	}
	return v, nil
}

type initiateTradeJSON struct {
	metaJSON
	QueueID           int64  `json:"queue_id"`
	User              string `json:"user"`
	TargetContract    string `json:"target_contract"`
	Strike            string `json:"strike"`
	TotalFee          string `json:"total_fee"`
	SlippageTolerance int64  `json:"slippage_tolerance"`
	IsAbove           bool   `json:"is_above"`
}

func parseInitiateTrade(data []byte) (*event.InitiateTrade, error) {
	var j initiateTradeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InitiateTrade: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse InitiateTrade: %w", err)
	}
	strike, err := parseBig(j.Strike, "strike")
	if err != nil {
		return nil, err
	}
	totalFee, err := parseBig(j.TotalFee, "total_fee")
	if err != nil {
		return nil, err
	}
	return &event.InitiateTrade{
		Meta:              meta,
		QueueID:           j.QueueID,
		User:              j.User,
		TargetContract:    j.TargetContract,
		Strike:            strike,
		TotalFee:          totalFee,
		SlippageTolerance: j.SlippageTolerance,
		IsAbove:           j.IsAbove,
	}, nil
}

type openTradeJSON struct {
	metaJSON
	QueueID        int64  `json:"queue_id"`
	OptionID       int64  `json:"option_id"`
	TargetContract string `json:"target_contract"`
}

func parseOpenTrade(data []byte) (*event.OpenTrade, error) {
	var j openTradeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OpenTrade: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse OpenTrade: %w", err)
	}
	return &event.OpenTrade{
		Meta:           meta,
		QueueID:        j.QueueID,
		OptionID:       j.OptionID,
		TargetContract: j.TargetContract,
	}, nil
}

type cancelTradeJSON struct {
	metaJSON
	QueueID        int64  `json:"queue_id"`
	TargetContract string `json:"target_contract"`
	Reason         int64  `json:"reason"`
}

func parseCancelTrade(data []byte) (*event.CancelTrade, error) {
	var j cancelTradeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CancelTrade: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse CancelTrade: %w", err)
	}
	return &event.CancelTrade{
		Meta:           meta,
		QueueID:        j.QueueID,
		TargetContract: j.TargetContract,
		Reason:         j.Reason,
	}, nil
}

type createJSON struct {
	metaJSON
	OptionID      int64  `json:"option_id"`
	User          string `json:"user"`
	TotalFee      string `json:"total_fee"`
	SettlementFee string `json:"settlement_fee"`
}

func parseCreate(data []byte) (*event.Create, error) {
	var j createJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Create: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse Create: %w", err)
	}
	totalFee, err := parseBig(j.TotalFee, "total_fee")
	if err != nil {
		return nil, err
	}
	settlementFee, err := parseBig(j.SettlementFee, "settlement_fee")
	if err != nil {
		return nil, err
	}
	return &event.Create{
		Meta:          meta,
		OptionID:      j.OptionID,
		User:          j.User,
		TotalFee:      totalFee,
		SettlementFee: settlementFee,
	}, nil
}

type settleJSON struct {
	metaJSON
	OptionID          int64  `json:"option_id"`
	Payout            string `json:"payout,omitempty"`
	Premium           string `json:"premium,omitempty"`
	PriceAtExpiration string `json:"price_at_expiration"`
}

func parseExercise(data []byte) (*event.Exercise, error) {
	var j settleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Exercise: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse Exercise: %w", err)
	}
	payout, err := parseBig(j.Payout, "payout")
	if err != nil {
		return nil, err
	}
	price, err := parseBig(j.PriceAtExpiration, "price_at_expiration")
	if err != nil {
		return nil, err
	}
	return &event.Exercise{
		Meta:              meta,
		OptionID:          j.OptionID,
		Payout:            payout,
		PriceAtExpiration: price,
	}, nil
}

func parseExpire(data []byte) (*event.Expire, error) {
	var j settleJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Expire: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse Expire: %w", err)
	}
	premium, err := parseBig(j.Premium, "premium")
	if err != nil {
		return nil, err
	}
	price, err := parseBig(j.PriceAtExpiration, "price_at_expiration")
	if err != nil {
		return nil, err
	}
	return &event.Expire{
		Meta:              meta,
		OptionID:          j.OptionID,
		Premium:           premium,
		PriceAtExpiration: price,
	}, nil
}

type pauseJSON struct {
	metaJSON
	IsPaused bool `json:"is_paused"`
}

func parsePause(data []byte) (*event.Pause, error) {
	var j pauseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Pause: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse Pause: %w", err)
	}
	return &event.Pause{Meta: meta, IsPaused: j.IsPaused}, nil
}

type updateReferralJSON struct {
	metaJSON
	User        string `json:"user"`
	Referrer    string `json:"referrer"`
	Token       string `json:"token"`
	IsValid     bool   `json:"is_valid"`
	TotalFee    string `json:"total_fee"`
	ReferrerFee string `json:"referrer_fee"`
	Rebate      string `json:"rebate"`
}

func parseUpdateReferral(data []byte) (*event.UpdateReferral, error) {
	var j updateReferralJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UpdateReferral: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse UpdateReferral: %w", err)
	}
	totalFee, err := parseBig(j.TotalFee, "total_fee")
	if err != nil {
		return nil, err
	}
	referrerFee, err := parseBig(j.ReferrerFee, "referrer_fee")
	if err != nil {
		return nil, err
	}
	rebate, err := parseBig(j.Rebate, "rebate")
	if err != nil {
		return nil, err
	}
	return &event.UpdateReferral{
		Meta:        meta,
		User:        j.User,
		Referrer:    j.Referrer,
		Token:       j.Token,
		IsValid:     j.IsValid,
		TotalFee:    totalFee,
		ReferrerFee: referrerFee,
		Rebate:      rebate,
	}, nil
}

type lbfrClaimJSON struct {
	metaJSON
	User   string `json:"user"`
	Amount string `json:"amount"`
}

func parseLBFRClaim(data []byte) (*event.LBFRClaim, error) {
	var j lbfrClaimJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LBFRClaim: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse LBFRClaim: %w", err)
	}
	amount, err := parseBig(j.Amount, "amount")
	if err != nil {
		return nil, err
	}
	return &event.LBFRClaim{Meta: meta, User: j.User, Amount: amount}, nil
}

type poolChangeJSON struct {
	metaJSON
	Account  string `json:"account,omitempty"`
	OptionID int64  `json:"option_id,omitempty"`
	Amount   string `json:"amount"`
	Mint     string `json:"mint,omitempty"`
	Burn     string `json:"burn,omitempty"`
}

func parsePoolProvide(data []byte) (*event.PoolProvide, error) {
	var j poolChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolProvide: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PoolProvide: %w", err)
	}
	amount, err := parseBig(j.Amount, "amount")
	if err != nil {
		return nil, err
	}
	mint, err := parseBig(j.Mint, "mint")
	if err != nil {
		return nil, err
	}
	return &event.PoolProvide{Meta: meta, Account: j.Account, Amount: amount, Mint: mint}, nil
}

func parsePoolWithdraw(data []byte) (*event.PoolWithdraw, error) {
	var j poolChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolWithdraw: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PoolWithdraw: %w", err)
	}
	amount, err := parseBig(j.Amount, "amount")
	if err != nil {
		return nil, err
	}
	burn, err := parseBig(j.Burn, "burn")
	if err != nil {
		return nil, err
	}
	return &event.PoolWithdraw{Meta: meta, Account: j.Account, Amount: amount, Burn: burn}, nil
}

func parsePoolProfit(data []byte) (*event.PoolProfit, error) {
	var j poolChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolProfit: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PoolProfit: %w", err)
	}
	amount, err := parseBig(j.Amount, "amount")
	if err != nil {
		return nil, err
	}
	return &event.PoolProfit{Meta: meta, OptionID: j.OptionID, Amount: amount}, nil
}

func parsePoolLoss(data []byte) (*event.PoolLoss, error) {
	var j poolChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PoolLoss: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse PoolLoss: %w", err)
	}
	amount, err := parseBig(j.Amount, "amount")
	if err != nil {
		return nil, err
	}
	return &event.PoolLoss{Meta: meta, OptionID: j.OptionID, Amount: amount}, nil
}

type tokenTransferJSON struct {
	metaJSON
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

func parseTokenTransfer(data []byte) (*event.TokenTransfer, error) {
	var j tokenTransferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokenTransfer: %w", err)
	}
	meta, err := j.toMeta()
	if err != nil {
		return nil, fmt.Errorf("parse TokenTransfer: %w", err)
	}
	value, err := parseBig(j.Value, "value")
	if err != nil {
		return nil, err
	}
	return &event.TokenTransfer{Meta: meta, From: j.From, To: j.To, Value: value}, nil
}
