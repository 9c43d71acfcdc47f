package store

import (
	"math/big"
	"strconv"
)

// Composite record ids. Bucketed aggregates use "<period>-<bucket>"
// except the all-time row, whose id is just "total".
func BucketID(period, timeID string) string {
	if period == "total" {
		return "total"
	}
	return period + "-" + timeID
}

func OptionID(optionID int64, contract string) string {
	return strconv.FormatInt(optionID, 10) + "-" + contract
}

func QueueRecordID(queueID int64, contract string) string {
	return strconv.FormatInt(queueID, 10) + "-" + contract
}

func UserBucketID(timeID, user string) string {
	return timeID + "-" + user
}

func ContractHourID(timeID, contract, token string) string {
	return timeID + "-" + contract + "-" + token
}

// Load-or-create helpers. Each returns the stored record when present,
// otherwise a fresh record with every amount field allocated to zero.
// Loading an existing record never resets accumulated state. Callers
// Put the record back after mutating it so the write is tracked.

func LoadVolumeStat(s Store, id, period string) *VolumeStat {
	if e, ok := s.Get(KindVolumeStat, id); ok {
		return e.(*VolumeStat)
	}
	return &VolumeStat{RecordID: id, Period: period, Amount: new(big.Int)}
}

func LoadFeeStat(s Store, id, period string) *FeeStat {
	if e, ok := s.Get(KindFeeStat, id); ok {
		return e.(*FeeStat)
	}
	return &FeeStat{RecordID: id, Period: period, Fee: new(big.Int)}
}

func LoadTradingStat(s Store, id, period string) *TradingStat {
	if e, ok := s.Get(KindTradingStat, id); ok {
		return e.(*TradingStat)
	}
	return &TradingStat{
		RecordID:         id,
		Period:           period,
		OpenInterest:     new(big.Int),
		OpenUp:           new(big.Int),
		OpenDown:         new(big.Int),
		Profit:           new(big.Int),
		Loss:             new(big.Int),
		ProfitCumulative: new(big.Int),
		LossCumulative:   new(big.Int),
	}
}

func LoadAssetTradingStat(s Store, id, period, contract string) *AssetTradingStat {
	if e, ok := s.Get(KindAssetTradingStat, id); ok {
		return e.(*AssetTradingStat)
	}
	return &AssetTradingStat{
		RecordID:         id,
		Period:           period,
		ContractAddress:  contract,
		Profit:           new(big.Int),
		Loss:             new(big.Int),
		ProfitCumulative: new(big.Int),
		LossCumulative:   new(big.Int),
	}
}

func LoadOptionContract(s Store, addr string) *OptionContract {
	if e, ok := s.Get(KindOptionContract, addr); ok {
		return e.(*OptionContract)
	}
	return &OptionContract{
		Address:            addr,
		Volume:             new(big.Int),
		OpenUp:             new(big.Int),
		OpenDown:           new(big.Int),
		OpenInterest:       new(big.Int),
		PayoutForUp:        new(big.Int),
		PayoutForDown:      new(big.Int),
		CurrentUtilization: new(big.Int),
	}
}

func LoadLeaderboard(s Store, id, user, timeID string) *Leaderboard {
	if e, ok := s.Get(KindLeaderboard, id); ok {
		return e.(*Leaderboard)
	}
	return &Leaderboard{
		RecordID: id,
		User:     user,
		TimeID:   timeID,
		Volume:   new(big.Int),
		NetPnL:   new(big.Int),
	}
}

func LoadWeeklyLeaderboard(s Store, id, user, timeID string) *WeeklyLeaderboard {
	if e, ok := s.Get(KindWeeklyLeaderboard, id); ok {
		return e.(*WeeklyLeaderboard)
	}
	return &WeeklyLeaderboard{
		RecordID:   id,
		User:       user,
		TimeID:     timeID,
		Volume:     new(big.Int),
		NetPnL:     new(big.Int),
		USDCVolume: new(big.Int),
		ARBVolume:  new(big.Int),
		USDCNetPnL: new(big.Int),
		ARBNetPnL:  new(big.Int),
	}
}

func LoadLBFRStat(s Store, id, user, period, timeID string) *LBFRStat {
	if e, ok := s.Get(KindLBFRStat, id); ok {
		return e.(*LBFRStat)
	}
	return &LBFRStat{
		RecordID:    id,
		User:        user,
		Period:      period,
		TimeID:      timeID,
		Volume:      new(big.Int),
		VolumeUSDC:  new(big.Int),
		VolumeARB:   new(big.Int),
		LBFRAlloted: new(big.Int),
	}
}

func LoadClaimedLBFR(s Store, user string) *ClaimedLBFR {
	if e, ok := s.Get(KindClaimedLBFR, user); ok {
		return e.(*ClaimedLBFR)
	}
	return &ClaimedLBFR{User: user, Claimed: new(big.Int)}
}

func LoadUserRewards(s Store, day string) *UserRewards {
	if e, ok := s.Get(KindUserRewards, day); ok {
		return e.(*UserRewards)
	}
	return &UserRewards{
		RecordID:         day,
		TimeID:           day,
		CumulativeReward: new(big.Int),
		ReferralDiscount: new(big.Int),
		ReferralReward:   new(big.Int),
		NFTDiscount:      new(big.Int),
	}
}

func LoadReferralData(s Store, user string) *ReferralData {
	if e, ok := s.Get(KindReferralData, user); ok {
		return e.(*ReferralData)
	}
	return &ReferralData{
		User:                        user,
		TotalVolumeOfReferredTrades: new(big.Int),
		TotalRebateEarned:           new(big.Int),
		TotalTradingVolume:          new(big.Int),
		TotalDiscountAvailed:        new(big.Int),
	}
}

func LoadPoolStat(s Store, id, period string) *PoolStat {
	if e, ok := s.Get(KindPoolStat, id); ok {
		return e.(*PoolStat)
	}
	return &PoolStat{RecordID: id, Period: period, Amount: new(big.Int), Rate: new(big.Int)}
}

func LoadDashboardStat(s Store, token string) *DashboardStat {
	if e, ok := s.Get(KindDashboardStat, token); ok {
		return e.(*DashboardStat)
	}
	return &DashboardStat{
		Token:               token,
		TotalVolume:         new(big.Int),
		TotalFees:           new(big.Int),
		TotalSettlementFees: new(big.Int),
	}
}

func LoadVolumePerContract(s Store, id, timeID, contract, token string) *VolumePerContract {
	if e, ok := s.Get(KindVolumePerContract, id); ok {
		return e.(*VolumePerContract)
	}
	return &VolumePerContract{
		RecordID:        id,
		ContractAddress: contract,
		Token:           token,
		TimeID:          timeID,
		Amount:          new(big.Int),
		SettlementFee:   new(big.Int),
	}
}

func LoadRevenueAndFee(s Store, id, period, timeID string) *RevenueAndFee {
	if e, ok := s.Get(KindRevenueAndFee, id); ok {
		return e.(*RevenueAndFee)
	}
	return &RevenueAndFee{
		RecordID:      id,
		Period:        period,
		TimeID:        timeID,
		TotalFee:      new(big.Int),
		SettlementFee: new(big.Int),
	}
}

func LoadUserStat(s Store, id, period string) *UserStat {
	if e, ok := s.Get(KindUserStat, id); ok {
		return e.(*UserStat)
	}
	return &UserStat{RecordID: id, Period: period}
}

func LoadTokenHolder(s Store, addr string) *TokenHolder {
	if e, ok := s.Get(KindTokenHolder, addr); ok {
		return e.(*TokenHolder)
	}
	return &TokenHolder{Address: addr, Balance: new(big.Int)}
}

func LoadTokenHolderStat(s Store) *TokenHolderStat {
	if e, ok := s.Get(KindTokenHolderStat, "total"); ok {
		return e.(*TokenHolderStat)
	}
	return &TokenHolderStat{RecordID: "total"}
}
