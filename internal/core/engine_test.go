package core

import (
	"errors"
	"math/big"
	"testing"

	"OptionStats/internal/chain"
	"OptionStats/internal/event"
	"OptionStats/internal/store"
)

const (
	market = "0x00000000000000000000000000000000000000aa"
	pool   = "0x00000000000000000000000000000000000000bb"
	trader = "0x00000000000000000000000000000000000000cc"
)

// fakeReader serves canned chain state. Tests flip its fields to
// simulate ARB markets, price moves and decoder outages.
type fakeReader struct {
	registered map[string]bool
	options    map[int64]chain.OptionData
	pool       chain.PoolState
	sqrtPrice  *big.Int
	token      string
	stateErr   error
}

func (f *fakeReader) IsRegistered(addr string) bool { return f.registered[addr] }

func (f *fakeReader) ContractState(addr string) (chain.ContractState, error) {
	if f.stateErr != nil {
		return chain.ContractState{}, f.stateErr
	}
	token := f.token
	if token == "" {
		token = "USDC"
	}
	return chain.ContractState{Address: addr, Token: token, Asset: "BTCUSD", PoolAddress: pool}, nil
}

func (f *fakeReader) OptionData(addr string, optionID int64) (chain.OptionData, error) {
	return f.options[optionID], nil
}

func (f *fakeReader) PoolState(addr string) (chain.PoolState, error) {
	return f.pool, nil
}

func (f *fakeReader) SqrtPriceX96() (*big.Int, error) {
	return f.sqrtPrice, nil
}

func usdc(n int64) *big.Int { // raw 6-decimal amount
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

func usd(n int64) *big.Int { // normalized 18-decimal amount
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestEngine(t *testing.T) (*Engine, *fakeReader, chan Output) {
	t.Helper()
	persist := make(chan Output, 64)
	projection := make(chan Output, 64)
	reader := &fakeReader{
		registered: map[string]bool{market: true},
		options: map[int64]chain.OptionData{
			7: {
				Strike:         big.NewInt(65_000_00000000),
				Amount:         usdc(100),
				CreationTime:   1_700_000_000,
				ExpirationTime: 1_700_003_600,
				IsAbove:        true,
			},
		},
		pool: chain.PoolState{
			TotalTokenBalance: usdc(10_000),
			TotalSupply:       usdc(10_000),
			TotalLocked:       usdc(500),
		},
		sqrtPrice: new(big.Int).Lsh(big.NewInt(1), 96),
	}
	return NewEngine(0, persist, projection, reader, nil, 1024, nil), reader, persist
}

func meta(block, logIndex int64, contract string) event.Meta {
	return event.Meta{
		BlockNumber: block,
		TxHash:      "0xtx",
		LogIndex:    logIndex,
		Timestamp:   1_700_000_000,
		Contract:    contract,
	}
}

func createEvent(block int64) *event.Create {
	return &event.Create{
		Meta:          meta(block, 1, market),
		OptionID:      7,
		User:          trader,
		TotalFee:      usdc(100),
		SettlementFee: usdc(20),
	}
}

func TestProcessEvent_CreateThenExercise(t *testing.T) {
	eng, _, persist := newTestEngine(t)

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	mem := eng.Store()

	v, _ := mem.Get(store.KindVolumeStat, "total")
	if got := v.(*store.VolumeStat).Amount; got.Cmp(usd(100)) != 0 {
		t.Errorf("total volume = %s, want %s", got, usd(100))
	}
	f, _ := mem.Get(store.KindFeeStat, "total")
	if got := f.(*store.FeeStat).Fee; got.Cmp(usd(20)) != 0 {
		t.Errorf("total fees = %s, want %s", got, usd(20))
	}
	ts, _ := mem.Get(store.KindTradingStat, "total")
	if got := ts.(*store.TradingStat).OpenInterest; got.Cmp(usd(100)) != 0 {
		t.Errorf("open interest after create = %s, want %s", got, usd(100))
	}

	exercise := &event.Exercise{
		Meta:              meta(110, 1, market),
		OptionID:          7,
		Payout:            usdc(180),
		PriceAtExpiration: big.NewInt(66_000_00000000),
	}
	if err := eng.ProcessEvent(exercise); err != nil {
		t.Fatalf("exercise: %v", err)
	}

	// Open interest fully released.
	ts, _ = mem.Get(store.KindTradingStat, "total")
	stat := ts.(*store.TradingStat)
	if stat.OpenInterest.Sign() != 0 || stat.OpenUp.Sign() != 0 {
		t.Errorf("open interest after exercise = %s (up %s), want 0", stat.OpenInterest, stat.OpenUp)
	}
	// Profit is payout minus premium.
	if stat.ProfitCumulative.Cmp(usd(80)) != 0 {
		t.Errorf("cumulative profit = %s, want %s", stat.ProfitCumulative, usd(80))
	}

	// The option row reached its terminal state with payout recorded.
	oe, _ := mem.Get(store.KindUserOptionData, store.OptionID(7, market))
	option := oe.(*store.UserOptionData)
	if option.State != store.StateExercised {
		t.Errorf("option state = %s, want Exercised", option.State)
	}
	if option.Payout.Cmp(usdc(180)) != 0 {
		t.Errorf("option payout = %s, want %s", option.Payout, usdc(180))
	}

	// Leaderboard scored the win.
	var daily *store.Leaderboard
	le, ok := mem.Get(store.KindLeaderboard, "19675-"+trader)
	if !ok {
		t.Fatal("missing daily leaderboard row")
	}
	daily = le.(*store.Leaderboard)
	if daily.TotalTrades != 1 || daily.TradesWon != 1 || daily.WinRate != 100000 {
		t.Errorf("leaderboard = %d/%d rate %d, want 1/1 rate 100000", daily.TradesWon, daily.TotalTrades, daily.WinRate)
	}
	if daily.NetPnL.Cmp(usd(80)) != 0 {
		t.Errorf("leaderboard netPnL = %s, want %s", daily.NetPnL, usd(80))
	}

	// Both events produced persist outputs with upserts.
	if len(persist) != 2 {
		t.Fatalf("persist outputs = %d, want 2", len(persist))
	}
	first := <-persist
	if first.Envelope.Sequence != 0 || len(first.Upserts) == 0 {
		t.Errorf("first output: seq=%d upserts=%d", first.Envelope.Sequence, len(first.Upserts))
	}
}

func TestProcessEvent_ExpireBooksLoss(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	expire := &event.Expire{
		Meta:              meta(110, 1, market),
		OptionID:          7,
		Premium:           usdc(80),
		PriceAtExpiration: big.NewInt(64_000_00000000),
	}
	if err := eng.ProcessEvent(expire); err != nil {
		t.Fatalf("expire: %v", err)
	}

	mem := eng.Store()
	ts, _ := mem.Get(store.KindTradingStat, "total")
	stat := ts.(*store.TradingStat)
	// Trader loss is the premium net of protocol revenue: 100 - 20.
	if stat.LossCumulative.Cmp(usd(80)) != 0 {
		t.Errorf("cumulative loss = %s, want %s", stat.LossCumulative, usd(80))
	}

	le, _ := mem.Get(store.KindLeaderboard, "19675-"+trader)
	daily := le.(*store.Leaderboard)
	if daily.NetPnL.Cmp(usd(-100)) != 0 {
		t.Errorf("leaderboard netPnL = %s, want %s", daily.NetPnL, usd(-100))
	}
	if daily.TradesWon != 0 || daily.WinRate != 0 {
		t.Errorf("expiry must not count as a win: won=%d rate=%d", daily.TradesWon, daily.WinRate)
	}
}

func TestProcessEvent_UnregisteredContractDiscarded(t *testing.T) {
	eng, _, persist := newTestEngine(t)

	ev := createEvent(100)
	ev.Contract = "0x00000000000000000000000000000000000000ff"
	if err := eng.ProcessEvent(ev); err != nil {
		t.Fatalf("unregistered event must be discarded, not failed: %v", err)
	}
	if len(persist) != 0 {
		t.Error("discarded event must not produce output")
	}
	if eng.Store().Len() != 0 {
		t.Error("discarded event must not touch the store")
	}
}

func TestProcessEvent_DuplicateSkipped(t *testing.T) {
	eng, _, persist := newTestEngine(t)

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Same txHash-logIndex redelivered.
	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("redelivery must be a no-op: %v", err)
	}

	v, _ := eng.Store().Get(store.KindVolumeStat, "total")
	if got := v.(*store.VolumeStat).Amount; got.Cmp(usd(100)) != 0 {
		t.Errorf("volume after redelivery = %s, want %s", got, usd(100))
	}
	if len(persist) != 1 {
		t.Errorf("persist outputs = %d, want 1", len(persist))
	}
}

func TestProcessEvent_OutOfOrderRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A new event with an earlier ordinal on the same contract.
	stale := &event.Exercise{
		Meta:              meta(90, 1, market),
		OptionID:          7,
		Payout:            usdc(180),
		PriceAtExpiration: big.NewInt(1),
	}
	stale.TxHash = "0xother"
	if err := eng.ProcessEvent(stale); err == nil {
		t.Fatal("out-of-order event must be rejected")
	}
}

func TestProcessEvent_GapsTolerated(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A jump of many blocks on the same partition is normal.
	far := &event.Exercise{
		Meta:              meta(5000, 3, market),
		OptionID:          7,
		Payout:            usdc(180),
		PriceAtExpiration: big.NewInt(1),
	}
	far.TxHash = "0xlater"
	if err := eng.ProcessEvent(far); err != nil {
		t.Fatalf("ordinal gap must be tolerated: %v", err)
	}
}

func TestProcessEvent_MissingPriorStateFatalPerEvent(t *testing.T) {
	eng, _, persist := newTestEngine(t)

	// Exercise with no prior create.
	orphan := &event.Exercise{
		Meta:              meta(100, 1, market),
		OptionID:          7,
		Payout:            usdc(180),
		PriceAtExpiration: big.NewInt(1),
	}
	if err := eng.ProcessEvent(orphan); err == nil {
		t.Fatal("closure without prior open state must fail")
	}
	if len(persist) != 0 {
		t.Error("failed event must not produce output")
	}

	// The engine keeps going: a later valid event still applies.
	if err := eng.ProcessEvent(createEvent(101)); err != nil {
		t.Fatalf("engine must continue after a per-event failure: %v", err)
	}
}

func TestProcessEvent_QueueLifecycle(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	initiate := &event.InitiateTrade{
		Meta:           meta(99, 1, market),
		QueueID:        4,
		User:           trader,
		TargetContract: market,
		Strike:         big.NewInt(65_000_00000000),
		TotalFee:       usdc(100),
		IsAbove:        true,
	}
	if err := eng.ProcessEvent(initiate); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	open := &event.OpenTrade{
		Meta:           meta(100, 2, market),
		QueueID:        4,
		OptionID:       7,
		TargetContract: market,
	}
	if err := eng.ProcessEvent(open); err != nil {
		t.Fatalf("open: %v", err)
	}

	mem := eng.Store()
	qe, _ := mem.Get(store.KindQueuedOption, store.QueueRecordID(4, market))
	if got := qe.(*store.QueuedOption).State; got != store.StateOpened {
		t.Errorf("queue state = %s, want Opened", got)
	}
	oe, _ := mem.Get(store.KindUserOptionData, store.OptionID(7, market))
	if got := oe.(*store.UserOptionData).QueueID; got != 4 {
		t.Errorf("option queue link = %d, want 4", got)
	}

	// Cancelling an already opened queue row is an illegal transition.
	cancel := &event.CancelTrade{
		Meta:           meta(101, 1, market),
		QueueID:        4,
		TargetContract: market,
		Reason:         1,
	}
	if err := eng.ProcessEvent(cancel); err == nil {
		t.Error("cancel after open must fail")
	}
}

func TestProcessEvent_HandlerFailureRetried(t *testing.T) {
	eng, reader, persist := newTestEngine(t)

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	exercise := &event.Exercise{
		Meta:              meta(110, 1, market),
		OptionID:          7,
		Payout:            usdc(180),
		PriceAtExpiration: big.NewInt(66_000_00000000),
	}

	// The decoder is down while the exercise arrives.
	reader.stateErr = errors.New("decoder unavailable")
	if err := eng.ProcessEvent(exercise); err == nil {
		t.Fatal("exercise with a failing reader must fail")
	}

	// The failure left no partial state behind.
	mem := eng.Store()
	oe, _ := mem.Get(store.KindUserOptionData, store.OptionID(7, market))
	if got := oe.(*store.UserOptionData).State; got != store.StateOpened {
		t.Fatalf("option state after failed exercise = %s, want Opened", got)
	}
	ts, _ := mem.Get(store.KindTradingStat, "total")
	if got := ts.(*store.TradingStat).OpenInterest; got.Cmp(usd(100)) != 0 {
		t.Errorf("open interest after failed exercise = %s, want %s", got, usd(100))
	}
	if len(persist) != 1 {
		t.Errorf("persist outputs after failure = %d, want 1", len(persist))
	}

	// The redelivery carries the same ordinal and must be accepted once
	// the reader recovers.
	reader.stateErr = nil
	if err := eng.ProcessEvent(exercise); err != nil {
		t.Fatalf("redelivery after transient failure must apply: %v", err)
	}

	ts, _ = mem.Get(store.KindTradingStat, "total")
	stat := ts.(*store.TradingStat)
	if stat.OpenInterest.Sign() != 0 {
		t.Errorf("open interest after redelivery = %s, want 0", stat.OpenInterest)
	}
	if stat.ProfitCumulative.Cmp(usd(80)) != 0 {
		t.Errorf("cumulative profit after redelivery = %s, want %s", stat.ProfitCumulative, usd(80))
	}
	if len(persist) != 2 {
		t.Errorf("persist outputs after redelivery = %d, want 2", len(persist))
	}
}

func TestProcessEvent_OpenInterestConservesAcrossPriceMove(t *testing.T) {
	eng, reader, _ := newTestEngine(t)
	reader.token = "ARB"

	// ARB amounts arrive in 18 decimals; price starts at exactly 1.
	ev := createEvent(100)
	ev.TotalFee = usd(100)
	ev.SettlementFee = usd(20)
	if err := eng.ProcessEvent(ev); err != nil {
		t.Fatalf("create: %v", err)
	}

	mem := eng.Store()
	ts, _ := mem.Get(store.KindTradingStat, "total")
	if got := ts.(*store.TradingStat).OpenInterest; got.Cmp(usd(100)) != 0 {
		t.Fatalf("open interest after create = %s, want %s", got, usd(100))
	}

	// The ARB price quarters before the option settles. The release
	// must still match what the open booked.
	reader.sqrtPrice = new(big.Int).Lsh(big.NewInt(1), 95)
	expire := &event.Expire{
		Meta:              meta(110, 1, market),
		OptionID:          7,
		Premium:           usd(80),
		PriceAtExpiration: big.NewInt(64_000_00000000),
	}
	if err := eng.ProcessEvent(expire); err != nil {
		t.Fatalf("expire: %v", err)
	}

	ts, _ = mem.Get(store.KindTradingStat, "total")
	stat := ts.(*store.TradingStat)
	if stat.OpenInterest.Sign() != 0 || stat.OpenUp.Sign() != 0 {
		t.Errorf("residual open interest = %s (up %s), want 0", stat.OpenInterest, stat.OpenUp)
	}
	oc, _ := mem.Get(store.KindOptionContract, market)
	if got := oc.(*store.OptionContract).OpenInterest; got.Sign() != 0 {
		t.Errorf("residual contract open interest = %s, want 0", got)
	}
}

func TestProcessEvent_EmptyPoolSnapshotNonFatal(t *testing.T) {
	eng, reader, _ := newTestEngine(t)
	reader.pool = chain.PoolState{
		TotalTokenBalance: new(big.Int),
		TotalSupply:       new(big.Int),
		TotalLocked:       new(big.Int),
	}

	if err := eng.ProcessEvent(createEvent(100)); err != nil {
		t.Fatalf("create against an empty pool must still apply: %v", err)
	}

	mem := eng.Store()
	oc, _ := mem.Get(store.KindOptionContract, market)
	if got := oc.(*store.OptionContract).CurrentUtilization; got.Sign() != 0 {
		t.Errorf("utilization with empty pool = %s, want untouched 0", got)
	}
	v, _ := mem.Get(store.KindVolumeStat, "total")
	if got := v.(*store.VolumeStat).Amount; got.Cmp(usd(100)) != 0 {
		t.Errorf("volume must still book: got %s, want %s", got, usd(100))
	}
}
