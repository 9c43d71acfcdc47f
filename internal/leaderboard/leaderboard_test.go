package leaderboard_test

import (
	"math/big"
	"testing"

	"OptionStats/internal/bucket"
	"OptionStats/internal/leaderboard"
	"OptionStats/internal/store"
)

func closure(user string, won bool, volume, net int64) leaderboard.Closure {
	return leaderboard.Closure{
		User:      user,
		Token:     "USDC",
		Won:       won,
		Volume:    big.NewInt(volume),
		Net:       big.NewInt(net),
		RawVolume: big.NewInt(volume),
		RawNet:    big.NewInt(net),
	}
}

func TestRecordClosure_WinRate(t *testing.T) {
	s := store.NewMemStore()
	lb := leaderboard.New(s)
	ts := int64(1_700_000_000)

	// 7 trades, 3 won.
	for i := 0; i < 7; i++ {
		lb.RecordClosure(ts, closure("0xuser", i < 3, 100, 10))
	}

	e, _ := s.Get(store.KindLeaderboard, bucket.DayID(ts)+"-0xuser")
	row := e.(*store.Leaderboard)
	if row.TotalTrades != 7 || row.TradesWon != 3 {
		t.Fatalf("trades = %d/%d, want 3/7", row.TradesWon, row.TotalTrades)
	}
	if row.WinRate != 42857 {
		t.Errorf("winRate = %d, want 42857", row.WinRate)
	}
}

func TestRecordClosure_NetPnL(t *testing.T) {
	s := store.NewMemStore()
	lb := leaderboard.New(s)
	ts := int64(1_700_000_000)

	// A win nets payout minus premium; a loss costs the premium.
	lb.RecordClosure(ts, closure("0xuser", true, 100, 80))
	lb.RecordClosure(ts, closure("0xuser", false, 100, -100))

	e, _ := s.Get(store.KindLeaderboard, bucket.DayID(ts)+"-0xuser")
	row := e.(*store.Leaderboard)
	if row.NetPnL.Cmp(big.NewInt(-20)) != 0 {
		t.Errorf("netPnL = %s, want -20", row.NetPnL)
	}
	if row.Volume.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("volume = %s, want 200", row.Volume)
	}
}

func TestRecordClosure_WeeklyCurrencySplit(t *testing.T) {
	s := store.NewMemStore()
	lb := leaderboard.New(s)
	ts := int64(1_700_000_000)

	usdc := closure("0xuser", true, 100, 50)
	arb := leaderboard.Closure{
		User:      "0xuser",
		Token:     "ARB",
		Won:       false,
		Volume:    big.NewInt(40), // normalized
		Net:       big.NewInt(-40),
		RawVolume: big.NewInt(90), // raw token amount
		RawNet:    big.NewInt(-90),
	}
	lb.RecordClosure(ts, usdc)
	lb.RecordClosure(ts, arb)

	e, _ := s.Get(store.KindWeeklyLeaderboard, bucket.WeekID(ts)+"-0xuser")
	row := e.(*store.WeeklyLeaderboard)

	if row.Volume.Cmp(big.NewInt(140)) != 0 {
		t.Errorf("normalized weekly volume = %s, want 140", row.Volume)
	}
	if row.USDCVolume.Cmp(big.NewInt(100)) != 0 || row.ARBVolume.Cmp(big.NewInt(90)) != 0 {
		t.Errorf("currency split = %s/%s, want 100/90", row.USDCVolume, row.ARBVolume)
	}
	if row.NetPnL.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("weekly netPnL = %s, want 10", row.NetPnL)
	}
}

func TestRecordClosure_SeparatesDays(t *testing.T) {
	s := store.NewMemStore()
	lb := leaderboard.New(s)
	ts := int64(1_700_000_000)

	lb.RecordClosure(ts, closure("0xuser", true, 100, 50))
	lb.RecordClosure(ts+86400, closure("0xuser", true, 100, 50))

	d1, ok1 := s.Get(store.KindLeaderboard, bucket.DayID(ts)+"-0xuser")
	d2, ok2 := s.Get(store.KindLeaderboard, bucket.DayID(ts+86400)+"-0xuser")
	if !ok1 || !ok2 {
		t.Fatal("expected a row per day")
	}
	if d1.(*store.Leaderboard).TotalTrades != 1 || d2.(*store.Leaderboard).TotalTrades != 1 {
		t.Error("daily rows must not share trades")
	}
}
