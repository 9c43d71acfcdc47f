// Package leaderboard maintains the daily and weekly trading
// competition rows. Rows update only when an option settles, so a
// user's netPnL never counts open positions.
package leaderboard

import (
	"math/big"

	"OptionStats/internal/bucket"
	"OptionStats/internal/convert"
	"OptionStats/internal/store"
)

// winRateScale expresses win rate as a 5-decimal fixed-point fraction.
var winRateScale = big.NewInt(100_000)

// Closure describes one settled option from the scoring user's side.
// Volume and Net are normalized to the reference currency; RawVolume
// and RawNet are in the market's settlement token and feed the weekly
// per-currency splits.
type Closure struct {
	User      string
	Token     string
	Won       bool
	Volume    *big.Int
	Net       *big.Int
	RawVolume *big.Int
	RawNet    *big.Int
}

// Engine scores closures into leaderboard rows. Owned by the event
// loop; no locking.
type Engine struct {
	store store.Store
}

func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// RecordClosure books a settled option onto the user's daily and
// weekly rows.
func (e *Engine) RecordClosure(ts int64, c Closure) {
	day := bucket.DayID(ts)
	daily := store.LoadLeaderboard(e.store, store.UserBucketID(day, c.User), c.User, day)
	daily.TotalTrades++
	daily.Volume.Add(daily.Volume, c.Volume)
	daily.NetPnL.Add(daily.NetPnL, c.Net)
	if c.Won {
		daily.TradesWon++
	}
	daily.WinRate = winRate(daily.TradesWon, daily.TotalTrades)
	e.store.Put(daily)

	week := bucket.WeekID(ts)
	weekly := store.LoadWeeklyLeaderboard(e.store, store.UserBucketID(week, c.User), c.User, week)
	weekly.TotalTrades++
	weekly.Volume.Add(weekly.Volume, c.Volume)
	weekly.NetPnL.Add(weekly.NetPnL, c.Net)
	if c.Won {
		weekly.TradesWon++
	}
	weekly.WinRate = winRate(weekly.TradesWon, weekly.TotalTrades)

	switch c.Token {
	case "ARB":
		weekly.ARBVolume.Add(weekly.ARBVolume, c.RawVolume)
		weekly.ARBNetPnL.Add(weekly.ARBNetPnL, c.RawNet)
	default:
		weekly.USDCVolume.Add(weekly.USDCVolume, c.RawVolume)
		weekly.USDCNetPnL.Add(weekly.USDCNetPnL, c.RawNet)
	}
	e.store.Put(weekly)
}

func winRate(won, total int64) int64 {
	if total <= 0 {
		return 0
	}
	rate := convert.RoundDiv(new(big.Int).Mul(big.NewInt(won), winRateScale), big.NewInt(total))
	return rate.Int64()
}
