// Package stats applies bucketed aggregate updates to the store. All
// methods take amounts already normalized to the reference currency;
// conversion is the engine's job and happens before anything lands
// here. Every update is an additive delta (or an explicit snapshot),
// so applying each event exactly once keeps every bucket consistent.
package stats

import (
	"fmt"
	"math/big"

	"OptionStats/internal/bucket"
	"OptionStats/internal/reward"
	"OptionStats/internal/store"
)

// Share of the total fee the protocol targets as platform reward,
// 8-decimal fixed point: 15%.
var (
	rewardShareNumerator   = big.NewInt(15_000_000)
	rewardShareDenominator = big.NewInt(100_000_000)
)

// Aggregator mutates aggregate records for one event at a time. It is
// owned by the engine goroutine and carries no locking.
type Aggregator struct {
	store store.Store
}

func New(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// RecordVolume adds normalized trade volume to the total, daily and
// hourly buckets.
func (a *Aggregator) RecordVolume(ts int64, amount *big.Int) {
	rows := []*store.VolumeStat{
		store.LoadVolumeStat(a.store, store.BucketID(bucket.PeriodTotal, ""), bucket.PeriodTotal),
		store.LoadVolumeStat(a.store, store.BucketID(bucket.PeriodDaily, bucket.DayID(ts)), bucket.PeriodDaily),
		store.LoadVolumeStat(a.store, store.BucketID(bucket.PeriodHourly, bucket.HourID(ts)), bucket.PeriodHourly),
	}
	for _, row := range rows {
		row.Timestamp = ts
		row.Amount.Add(row.Amount, amount)
		a.store.Put(row)
	}
}

// RecordFee adds normalized settlement fees to the total and daily
// buckets.
func (a *Aggregator) RecordFee(ts int64, fee *big.Int) {
	for _, row := range []*store.FeeStat{
		store.LoadFeeStat(a.store, store.BucketID(bucket.PeriodTotal, ""), bucket.PeriodTotal),
		store.LoadFeeStat(a.store, store.BucketID(bucket.PeriodDaily, bucket.DayID(ts)), bucket.PeriodDaily),
	} {
		row.Timestamp = ts
		row.Fee.Add(row.Fee, fee)
		a.store.Put(row)
	}
}

// RecordOpenInterest moves open interest on the total row and mirrors
// the resulting level onto the daily row. The total row is the source
// of truth; daily rows are point-in-time copies.
func (a *Aggregator) RecordOpenInterest(ts int64, increase, isAbove bool, amount *big.Int) {
	total := store.LoadTradingStat(a.store, store.BucketID(bucket.PeriodTotal, ""), bucket.PeriodTotal)

	delta := amount
	if !increase {
		delta = new(big.Int).Neg(amount)
	}
	total.Timestamp = ts
	total.OpenInterest.Add(total.OpenInterest, delta)
	if isAbove {
		total.OpenUp.Add(total.OpenUp, delta)
	} else {
		total.OpenDown.Add(total.OpenDown, delta)
	}
	a.store.Put(total)

	daily := store.LoadTradingStat(a.store, store.BucketID(bucket.PeriodDaily, bucket.DayID(ts)), bucket.PeriodDaily)
	daily.Timestamp = ts
	daily.OpenInterest.Set(total.OpenInterest)
	daily.OpenUp.Set(total.OpenUp)
	daily.OpenDown.Set(total.OpenDown)
	a.store.Put(daily)
}

// RecordPnL books a settled option's pnl. Daily profit/loss is bucket
// local; the cumulative fields accumulate on the total row and are
// mirrored onto the daily row.
func (a *Aggregator) RecordPnL(ts int64, pnl *big.Int, isProfit bool) {
	total := store.LoadTradingStat(a.store, store.BucketID(bucket.PeriodTotal, ""), bucket.PeriodTotal)
	daily := store.LoadTradingStat(a.store, store.BucketID(bucket.PeriodDaily, bucket.DayID(ts)), bucket.PeriodDaily)
	total.Timestamp = ts
	daily.Timestamp = ts

	if isProfit {
		total.ProfitCumulative.Add(total.ProfitCumulative, pnl)
		daily.Profit.Add(daily.Profit, pnl)
	} else {
		total.LossCumulative.Add(total.LossCumulative, pnl)
		daily.Loss.Add(daily.Loss, pnl)
	}
	daily.ProfitCumulative.Set(total.ProfitCumulative)
	daily.LossCumulative.Set(total.LossCumulative)

	a.store.Put(total)
	a.store.Put(daily)
}

// RecordContractPnL books the same pnl broken out per market.
func (a *Aggregator) RecordContractPnL(ts int64, contract string, pnl *big.Int, isProfit bool) {
	total := store.LoadAssetTradingStat(a.store, "total-"+contract, bucket.PeriodTotal, contract)
	daily := store.LoadAssetTradingStat(a.store,
		bucket.PeriodDaily+"-"+bucket.DayID(ts)+"-"+contract, bucket.PeriodDaily, contract)

	if isProfit {
		total.ProfitCumulative.Add(total.ProfitCumulative, pnl)
		daily.Profit.Add(daily.Profit, pnl)
	} else {
		total.LossCumulative.Add(total.LossCumulative, pnl)
		daily.Loss.Add(daily.Loss, pnl)
	}
	daily.ProfitCumulative.Set(total.ProfitCumulative)
	daily.LossCumulative.Set(total.LossCumulative)

	a.store.Put(total)
	a.store.Put(daily)
}

// RecordRevenue rolls protocol revenue into the daily and weekly
// reward-pool rows.
func (a *Aggregator) RecordRevenue(ts int64, totalFee, settlementFee *big.Int) {
	day := bucket.DayID(ts)
	week := bucket.WeekID(ts)
	for _, row := range []*store.RevenueAndFee{
		store.LoadRevenueAndFee(a.store, bucket.PeriodDaily+"-"+day, bucket.PeriodDaily, day),
		store.LoadRevenueAndFee(a.store, bucket.PeriodWeekly+"-"+week, bucket.PeriodWeekly, week),
	} {
		row.TotalFee.Add(row.TotalFee, totalFee)
		row.SettlementFee.Add(row.SettlementFee, settlementFee)
		a.store.Put(row)
	}
}

// RecordSettlementFeeDiscount credits the daily reward rollup with the
// difference between the target platform reward (15% of the total fee)
// and the settlement fee actually charged.
func (a *Aggregator) RecordSettlementFeeDiscount(ts int64, totalFee, settlementFee *big.Int) {
	row := store.LoadUserRewards(a.store, bucket.DayID(ts))

	target := new(big.Int).Mul(totalFee, rewardShareNumerator)
	target.Quo(target, rewardShareDenominator)
	target.Sub(target, settlementFee)

	row.CumulativeReward.Add(row.CumulativeReward, target)
	row.NFTDiscount.Sub(row.CumulativeReward, row.ReferralDiscount)
	a.store.Put(row)
}

// RecordReferralDiscount books both legs of a referred trade onto the
// daily rollup: the trader's rebate and the referrer's fee. The NFT
// share of the day's discount is whatever referral rebates do not
// explain.
func (a *Aggregator) RecordReferralDiscount(ts int64, rebate, referrerFee *big.Int) {
	row := store.LoadUserRewards(a.store, bucket.DayID(ts))
	row.ReferralDiscount.Add(row.ReferralDiscount, rebate)
	row.ReferralReward.Add(row.ReferralReward, referrerFee)
	row.NFTDiscount.Sub(row.CumulativeReward, row.ReferralDiscount)
	a.store.Put(row)
}

// RecordReferral maintains the all-time referral ledgers for both
// parties of a referred trade. The referrer earns the referrer fee;
// the trader's rebate counts as discount availed.
func (a *Aggregator) RecordReferral(user, referrer string, totalFee, referrerFee, rebate *big.Int) {
	ref := store.LoadReferralData(a.store, referrer)
	ref.TotalTradesReferred++
	ref.TotalVolumeOfReferredTrades.Add(ref.TotalVolumeOfReferredTrades, totalFee)
	ref.TotalRebateEarned.Add(ref.TotalRebateEarned, referrerFee)
	a.store.Put(ref)

	trader := store.LoadReferralData(a.store, user)
	trader.TotalTradingVolume.Add(trader.TotalTradingVolume, totalFee)
	trader.TotalDiscountAvailed.Add(trader.TotalDiscountAvailed, rebate)
	a.store.Put(trader)
}

// RecordDashboard updates the all-time overview row for a settlement
// token with raw (unconverted) amounts, so the dashboard shows figures
// in each token's native decimals.
func (a *Aggregator) RecordDashboard(token string, totalFee, settlementFee *big.Int) {
	row := store.LoadDashboardStat(a.store, token)
	row.TotalVolume.Add(row.TotalVolume, totalFee)
	row.TotalFees.Add(row.TotalFees, totalFee)
	row.TotalSettlementFees.Add(row.TotalSettlementFees, settlementFee)
	row.TotalTrades++
	a.store.Put(row)
}

// RecordContractVolume books a trade into the hourly per-market,
// per-token volume row.
func (a *Aggregator) RecordContractVolume(ts int64, contract, token string, totalFee, settlementFee *big.Int) {
	hour := bucket.HourID(ts)
	row := store.LoadVolumePerContract(a.store,
		store.ContractHourID(hour, contract, token), hour, contract, token)
	row.Amount.Add(row.Amount, totalFee)
	row.SettlementFee.Add(row.SettlementFee, settlementFee)
	a.store.Put(row)
}

// RecordPoolStat snapshots the pool balance and share rate onto the
// daily and total rows. Snapshots overwrite; later events win.
func (a *Aggregator) RecordPoolStat(ts int64, balance, rate *big.Int) {
	for _, row := range []*store.PoolStat{
		store.LoadPoolStat(a.store, store.BucketID(bucket.PeriodTotal, ""), bucket.PeriodTotal),
		store.LoadPoolStat(a.store, store.BucketID(bucket.PeriodDaily, bucket.DayID(ts)), bucket.PeriodDaily),
	} {
		row.Timestamp = ts
		row.Amount.Set(balance)
		row.Rate.Set(rate)
		a.store.Put(row)
	}
}

// RecordUser counts an account the first time it trades, both all-time
// and within the day.
func (a *Aggregator) RecordUser(ts int64, account string) {
	if _, seen := a.store.Get(store.KindUser, account); seen {
		return
	}
	a.store.Put(&store.User{Address: account, FirstSeen: ts})

	total := store.LoadUserStat(a.store, store.BucketID(bucket.PeriodTotal, ""), bucket.PeriodTotal)
	total.UniqueCount++
	a.store.Put(total)

	daily := store.LoadUserStat(a.store, store.BucketID(bucket.PeriodDaily, bucket.DayID(ts)), bucket.PeriodDaily)
	daily.UniqueCount++
	a.store.Put(daily)
}

// RecordLBFRVolume accrues loyalty-token allotment for a trade. The
// marginal allotment is computed from the user's all-time normalized
// volume so slab boundaries apply across the whole history, then
// booked onto both the weekly and the all-time row.
func (a *Aggregator) RecordLBFRVolume(ts int64, user, token string, normalized, raw *big.Int) {
	total := store.LoadLBFRStat(a.store, "total-"+user, user, bucket.PeriodTotal, "")
	week := bucket.WeekID(ts)
	weekly := store.LoadLBFRStat(a.store,
		bucket.PeriodWeekly+"-"+week+"-"+user, user, bucket.PeriodWeekly, week)

	prev := new(big.Int).Set(total.Volume)
	total.Volume.Add(total.Volume, normalized)
	marginal := reward.Marginal(prev, total.Volume)
	total.LBFRAlloted.Add(total.LBFRAlloted, marginal)

	weekly.Volume.Add(weekly.Volume, normalized)
	weekly.LBFRAlloted.Add(weekly.LBFRAlloted, marginal)

	for _, row := range []*store.LBFRStat{total, weekly} {
		switch token {
		case "ARB":
			row.VolumeARB.Add(row.VolumeARB, raw)
		default:
			row.VolumeUSDC.Add(row.VolumeUSDC, raw)
		}
		a.store.Put(row)
	}
}

// RecordLBFRClaim books a loyalty-token claim against the user's
// all-time claimed row.
func (a *Aggregator) RecordLBFRClaim(user string, amount *big.Int) {
	row := store.LoadClaimedLBFR(a.store, user)
	row.Claimed.Add(row.Claimed, amount)
	a.store.Put(row)
}

// CloseOption transitions an option row to its terminal state. A
// missing row means the aggregates are inconsistent with the chain,
// which is not recoverable by fabricating a zero-valued option.
func (a *Aggregator) CloseOption(contract string, optionID int64, next store.TradeState, payout, expirationPrice *big.Int) (*store.UserOptionData, error) {
	id := store.OptionID(optionID, contract)
	e, ok := a.store.Get(store.KindUserOptionData, id)
	if !ok {
		return nil, fmt.Errorf("close option %s: no prior open state", id)
	}
	option := e.(*store.UserOptionData)
	if !option.State.CanTransitionTo(next) {
		return nil, fmt.Errorf("close option %s: illegal transition %s -> %s", id, option.State, next)
	}
	option.State = next
	if payout != nil {
		option.Payout = payout
	}
	if expirationPrice != nil {
		option.ExpirationPrice = expirationPrice
	}
	a.store.Put(option)
	return option, nil
}
