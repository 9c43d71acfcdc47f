package core

import (
	"fmt"
	"math/big"
	"time"

	"OptionStats/internal/chain"
	"OptionStats/internal/convert"
	"OptionStats/internal/event"
	"OptionStats/internal/leaderboard"
	"OptionStats/internal/observability"
	"OptionStats/internal/stats"
	"OptionStats/internal/store"

	"github.com/google/uuid"
)

// TokenARB is the secondary settlement currency; amounts in it are
// converted to the reference currency through the AMM oracle. Anything
// else is treated as the 6-decimal reference token.
const TokenARB = "ARB"

// Engine is the single-threaded event processor. It owns the aggregate
// store; events mutate it through the stats and leaderboard layers and
// every dirty record is emitted as an upsert batch.
type Engine struct {
	sequence          int64
	mem               *store.MemStore
	tracked           *store.TrackingStore
	agg               *stats.Aggregator
	lb                *leaderboard.Engine
	reader            chain.Reader
	converter         *convert.Converter
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Output is one applied event with the records it dirtied.
type Output struct {
	Envelope *event.Envelope
	Upserts  []store.Entity
	BatchID  uuid.UUID
}

func NewEngine(
	startSequence int64,
	persistChan, projectionChan chan<- Output,
	reader chain.Reader,
	dbChecker DBIdempotencyChecker,
	lruCapacity int,
	metrics *observability.Metrics,
) *Engine {
	mem := store.NewMemStore()
	tracked := store.NewTrackingStore(mem)

	return &Engine{
		sequence:          startSequence,
		mem:               mem,
		tracked:           tracked,
		agg:               stats.New(tracked),
		lb:                leaderboard.New(tracked),
		reader:            reader,
		converter:         convert.NewConverter(reader),
		idempotency:       NewIdempotencyChecker(lruCapacity, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// Store exposes the aggregate store for recovery and tests.
func (e *Engine) Store() *store.MemStore { return e.mem }

// WarmIdempotency preloads recovered composite keys into the LRU.
func (e *Engine) WarmIdempotency(keys []string) {
	e.idempotency.Warm(keys)
}

// SetLastOrdinal seeds a partition's ordering state during recovery.
func (e *Engine) SetLastOrdinal(partition string, ordinal int64) {
	e.sequenceValidator.SetLastOrdinal(partition, ordinal)
}

// ProcessEvent is the main processing pipeline
func (e *Engine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate, tier := e.idempotency.IsDuplicate(eventType, idempotencyKey)
	if isDuplicate && e.metrics != nil {
		e.metrics.IdempotencyDuplicates.WithLabelValues(eventType, tier).Inc()
	}

	// Step 2: Registry filter. Events from markets this deployment does
	// not index are discarded, not failed: shared infrastructure like
	// the router emits for every deployment.
	if addr, needsRegistry := marketAddress(evt); needsRegistry && !e.reader.IsRegistered(addr) {
		if e.metrics != nil {
			e.metrics.EventsRejected.WithLabelValues(eventType, "unregistered").Inc()
		}
		return nil
	}

	// Step 3: Ordinal validation per contract partition
	partition := evt.ContractAddress()
	if err := e.sequenceValidator.ValidateOrdinal(partition, evt.SourceSequence(), isDuplicate); err != nil {
		if e.metrics != nil {
			e.metrics.SequenceOutOfOrder.WithLabelValues(partition).Inc()
			e.metrics.EventsRejected.WithLabelValues(eventType, "out_of_order").Inc()
		}
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// Duplicates are ordered but already applied; skip.
	if isDuplicate {
		if e.metrics != nil {
			e.metrics.EventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 4: Dispatch. A handler error aborts this event only. The
	// event is not marked processed and the ordinal watermark is not
	// advanced, so a NATS redelivery retries it.
	if err := e.dispatchEvent(evt); err != nil {
		if e.metrics != nil {
			e.metrics.EventsRejected.WithLabelValues(eventType, "handler_error").Inc()
		}
		e.tracked.Drain()
		return fmt.Errorf("dispatch %s: %w", eventType, err)
	}
	e.sequenceValidator.Commit(partition, evt.SourceSequence())

	// Step 5: Emit the dirty records.
	upserts := e.tracked.Drain()
	envelope := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Event:          evt,
	}
	output := Output{
		Envelope: envelope,
		Upserts:  upserts,
		BatchID:  uuid.New(),
	}
	e.sequence++

	// Persistence: the send blocks. If the worker falls behind the
	// engine stalls, so no event is ever lost.
	select {
	case e.persistChan <- output:
	default:
		if e.metrics != nil {
			e.metrics.PersistBackpressure.Inc()
		}
		e.persistChan <- output
	}

	// Projections: non-blocking send, drop on full. The projection
	// cache is rebuilt from Postgres if it falls behind.
	select {
	case e.projectionChan <- output:
	default:
		if e.metrics != nil {
			e.metrics.ProjectionDrops.Inc()
		}
	}

	// Step 6: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(eventType, idempotencyKey)

	if e.metrics != nil {
		e.metrics.EventsApplied.WithLabelValues(eventType).Inc()
		e.metrics.EventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
		e.metrics.UpsertsEmitted.Add(float64(len(upserts)))
		e.metrics.DedupLRUSize.Set(float64(e.idempotency.Size()))
	}

	return nil
}

// marketAddress returns the option-market address an event concerns,
// when it concerns one. Pool, referral and token events come from
// fixed auxiliary contracts and bypass the registry.
func marketAddress(evt event.Event) (string, bool) {
	switch ev := evt.(type) {
	case *event.InitiateTrade:
		return ev.TargetContract, true
	case *event.OpenTrade:
		return ev.TargetContract, true
	case *event.CancelTrade:
		return ev.TargetContract, true
	case *event.Create, *event.Exercise, *event.Expire, *event.Pause:
		return evt.ContractAddress(), true
	}
	return "", false
}

func (e *Engine) dispatchEvent(evt event.Event) error {
	switch ev := evt.(type) {
	case *event.InitiateTrade:
		return e.handleInitiateTrade(ev)
	case *event.OpenTrade:
		return e.handleOpenTrade(ev)
	case *event.CancelTrade:
		return e.handleCancelTrade(ev)
	case *event.Create:
		return e.handleCreate(ev)
	case *event.Exercise:
		return e.handleExercise(ev)
	case *event.Expire:
		return e.handleExpire(ev)
	case *event.Pause:
		return e.handlePause(ev)
	case *event.UpdateReferral:
		return e.handleUpdateReferral(ev)
	case *event.LBFRClaim:
		return e.handleLBFRClaim(ev)
	case *event.PoolProvide:
		return e.handlePoolChange(ev.Meta)
	case *event.PoolWithdraw:
		return e.handlePoolChange(ev.Meta)
	case *event.PoolProfit:
		return e.handlePoolChange(ev.Meta)
	case *event.PoolLoss:
		return e.handlePoolChange(ev.Meta)
	case *event.TokenTransfer:
		return e.handleTokenTransfer(ev)
	default:
		return fmt.Errorf("unknown event type: %T", evt)
	}
}

// normalize converts a raw settlement-token amount to the 18-decimal
// reference basis all cross-market aggregates share.
func (e *Engine) normalize(token string, amount *big.Int) (*big.Int, error) {
	if token == TokenARB {
		out, err := e.converter.ToReference(amount)
		if err != nil {
			if e.metrics != nil {
				e.metrics.ConversionFailures.Inc()
			}
			return nil, err
		}
		return out, nil
	}
	return convert.Rescale6To18(amount), nil
}

func (e *Engine) handleInitiateTrade(ev *event.InitiateTrade) error {
	id := store.QueueRecordID(ev.QueueID, ev.TargetContract)
	if _, exists := e.tracked.Get(store.KindQueuedOption, id); exists {
		return fmt.Errorf("queue row %s already exists", id)
	}
	e.tracked.Put(&store.QueuedOption{
		RecordID:          id,
		QueueID:           ev.QueueID,
		ContractAddress:   ev.TargetContract,
		User:              ev.User,
		State:             store.StateQueued,
		Strike:            ev.Strike,
		TotalFee:          ev.TotalFee,
		SlippageTolerance: ev.SlippageTolerance,
		IsAbove:           ev.IsAbove,
		QueuedTimestamp:   ev.BlockTime(),
	})
	return nil
}

func (e *Engine) handleOpenTrade(ev *event.OpenTrade) error {
	queueID := store.QueueRecordID(ev.QueueID, ev.TargetContract)
	qe, ok := e.tracked.Get(store.KindQueuedOption, queueID)
	if !ok {
		return fmt.Errorf("open trade: no queue row %s", queueID)
	}
	queue := qe.(*store.QueuedOption)
	if !queue.State.CanTransitionTo(store.StateOpened) {
		return fmt.Errorf("open trade: illegal transition %s -> Opened for %s", queue.State, queueID)
	}

	optionID := store.OptionID(ev.OptionID, ev.TargetContract)
	oe, ok := e.tracked.Get(store.KindUserOptionData, optionID)
	if !ok {
		return fmt.Errorf("open trade: no option row %s", optionID)
	}
	option := oe.(*store.UserOptionData)

	queue.State = store.StateOpened
	queue.ProcessTime = ev.BlockTime()
	e.tracked.Put(queue)

	option.QueueID = ev.QueueID
	option.QueuedTimestamp = queue.QueuedTimestamp
	option.Lag = ev.BlockTime() - queue.QueuedTimestamp
	e.tracked.Put(option)
	return nil
}

func (e *Engine) handleCancelTrade(ev *event.CancelTrade) error {
	id := store.QueueRecordID(ev.QueueID, ev.TargetContract)
	qe, ok := e.tracked.Get(store.KindQueuedOption, id)
	if !ok {
		return fmt.Errorf("cancel trade: no queue row %s", id)
	}
	queue := qe.(*store.QueuedOption)
	if !queue.State.CanTransitionTo(store.StateCancelled) {
		return fmt.Errorf("cancel trade: illegal transition %s -> Cancelled for %s", queue.State, id)
	}
	queue.State = store.StateCancelled
	queue.CancellationReason = cancellationReason(ev.Reason)
	queue.ProcessTime = ev.BlockTime()
	e.tracked.Put(queue)
	return nil
}

func cancellationReason(code int64) string {
	switch code {
	case 0:
		return "slippage exceeded"
	case 1:
		return "wait time exceeded"
	case 2:
		return "market paused"
	case 3:
		return "keeper failure"
	default:
		return "unknown"
	}
}

func (e *Engine) handleCreate(ev *event.Create) error {
	cs, err := e.reader.ContractState(ev.Contract)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	data, err := e.reader.OptionData(ev.Contract, ev.OptionID)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	id := store.OptionID(ev.OptionID, ev.Contract)
	if _, exists := e.tracked.Get(store.KindUserOptionData, id); exists {
		return fmt.Errorf("create: option row %s already exists", id)
	}

	nTotalFee, err := e.normalize(cs.Token, ev.TotalFee)
	if err != nil {
		return fmt.Errorf("create: normalize total fee: %w", err)
	}
	nSettlementFee, err := e.normalize(cs.Token, ev.SettlementFee)
	if err != nil {
		return fmt.Errorf("create: normalize settlement fee: %w", err)
	}

	ts := ev.BlockTime()
	e.tracked.Put(&store.UserOptionData{
		RecordID:                id,
		OptionID:                ev.OptionID,
		ContractAddress:         ev.Contract,
		User:                    ev.User,
		State:                   store.StateOpened,
		Strike:                  data.Strike,
		Amount:                  data.Amount,
		TotalFee:                ev.TotalFee,
		SettlementFee:           ev.SettlementFee,
		NormalizedFee:           nTotalFee,
		NormalizedSettlementFee: nSettlementFee,
		IsAbove:                 data.IsAbove,
		CreationTime:            data.CreationTime,
		ExpirationTime:          data.ExpirationTime,
	})

	e.agg.RecordUser(ts, ev.User)
	e.agg.RecordVolume(ts, nTotalFee)
	e.agg.RecordFee(ts, nSettlementFee)
	e.agg.RecordOpenInterest(ts, true, data.IsAbove, nTotalFee)
	e.agg.RecordRevenue(ts, nTotalFee, nSettlementFee)
	e.agg.RecordSettlementFeeDiscount(ts, nTotalFee, nSettlementFee)
	e.agg.RecordDashboard(cs.Token, ev.TotalFee, ev.SettlementFee)
	e.agg.RecordContractVolume(ts, ev.Contract, cs.Token, ev.TotalFee, ev.SettlementFee)
	e.agg.RecordLBFRVolume(ts, ev.User, cs.Token, nTotalFee, ev.TotalFee)

	contract := store.LoadOptionContract(e.tracked, ev.Contract)
	contract.Token = cs.Token
	contract.Asset = cs.Asset
	contract.TradeCount++
	contract.Volume.Add(contract.Volume, nTotalFee)
	contract.OpenInterest.Add(contract.OpenInterest, nTotalFee)
	if data.IsAbove {
		contract.OpenUp.Add(contract.OpenUp, nTotalFee)
	} else {
		contract.OpenDown.Add(contract.OpenDown, nTotalFee)
	}
	// The utilization snapshot is best effort: a failed pool read or an
	// empty pool leaves the previous value and is surfaced as a
	// conversion failure.
	ps, perr := e.reader.PoolState(cs.PoolAddress)
	if perr == nil {
		var util *big.Int
		if util, perr = convert.Utilization(ps.TotalLocked, ps.TotalTokenBalance); perr == nil {
			contract.CurrentUtilization.Set(util)
		}
	}
	if perr != nil && e.metrics != nil {
		e.metrics.ConversionFailures.Inc()
	}
	e.tracked.Put(contract)
	return nil
}

// handleExercise does all fallible work (chain reads, conversion)
// before the first store mutation, so a failure leaves no partial
// state and the redelivery starts clean.
func (e *Engine) handleExercise(ev *event.Exercise) error {
	cs, err := e.reader.ContractState(ev.Contract)
	if err != nil {
		return fmt.Errorf("exercise: %w", err)
	}
	nPayout, err := e.normalize(cs.Token, ev.Payout)
	if err != nil {
		return fmt.Errorf("exercise: normalize payout: %w", err)
	}

	option, err := e.agg.CloseOption(ev.Contract, ev.OptionID, store.StateExercised, ev.Payout, ev.PriceAtExpiration)
	if err != nil {
		return fmt.Errorf("exercise: %w", err)
	}

	// Release exactly the normalized amount that opening booked, so
	// open interest conserves even when the oracle price moved between
	// open and close.
	nTotalFee := option.NormalizedFee
	ts := ev.BlockTime()
	profit := new(big.Int).Sub(nPayout, nTotalFee)
	e.agg.RecordPnL(ts, profit, true)
	e.agg.RecordContractPnL(ts, ev.Contract, profit, true)
	e.agg.RecordOpenInterest(ts, false, option.IsAbove, nTotalFee)

	e.lb.RecordClosure(ts, leaderboard.Closure{
		User:      option.User,
		Token:     cs.Token,
		Won:       true,
		Volume:    nTotalFee,
		Net:       profit,
		RawVolume: option.TotalFee,
		RawNet:    new(big.Int).Sub(ev.Payout, option.TotalFee),
	})

	contract := store.LoadOptionContract(e.tracked, ev.Contract)
	contract.OpenInterest.Sub(contract.OpenInterest, nTotalFee)
	if option.IsAbove {
		contract.OpenUp.Sub(contract.OpenUp, nTotalFee)
		contract.PayoutForUp.Add(contract.PayoutForUp, nPayout)
	} else {
		contract.OpenDown.Sub(contract.OpenDown, nTotalFee)
		contract.PayoutForDown.Add(contract.PayoutForDown, nPayout)
	}
	e.tracked.Put(contract)
	return nil
}

func (e *Engine) handleExpire(ev *event.Expire) error {
	cs, err := e.reader.ContractState(ev.Contract)
	if err != nil {
		return fmt.Errorf("expire: %w", err)
	}

	option, err := e.agg.CloseOption(ev.Contract, ev.OptionID, store.StateExpired, nil, ev.PriceAtExpiration)
	if err != nil {
		return fmt.Errorf("expire: %w", err)
	}

	// Expiry reuses the open-time conversions frozen on the option row;
	// nothing here can fail after the state transition.
	nTotalFee := option.NormalizedFee
	nSettlementFee := option.NormalizedSettlementFee

	// The pool's gain is the premium net of protocol revenue; that is
	// what the closing stats book as trader loss.
	ts := ev.BlockTime()
	loss := new(big.Int).Sub(nTotalFee, nSettlementFee)
	e.agg.RecordPnL(ts, loss, false)
	e.agg.RecordContractPnL(ts, ev.Contract, loss, false)
	e.agg.RecordOpenInterest(ts, false, option.IsAbove, nTotalFee)

	e.lb.RecordClosure(ts, leaderboard.Closure{
		User:      option.User,
		Token:     cs.Token,
		Won:       false,
		Volume:    nTotalFee,
		Net:       new(big.Int).Neg(nTotalFee),
		RawVolume: option.TotalFee,
		RawNet:    new(big.Int).Neg(option.TotalFee),
	})

	contract := store.LoadOptionContract(e.tracked, ev.Contract)
	contract.OpenInterest.Sub(contract.OpenInterest, nTotalFee)
	if option.IsAbove {
		contract.OpenUp.Sub(contract.OpenUp, nTotalFee)
	} else {
		contract.OpenDown.Sub(contract.OpenDown, nTotalFee)
	}
	e.tracked.Put(contract)
	return nil
}

func (e *Engine) handlePause(ev *event.Pause) error {
	contract := store.LoadOptionContract(e.tracked, ev.Contract)
	contract.IsPaused = ev.IsPaused
	e.tracked.Put(contract)
	return nil
}

func (e *Engine) handleUpdateReferral(ev *event.UpdateReferral) error {
	nTotalFee, err := e.normalize(ev.Token, ev.TotalFee)
	if err != nil {
		return fmt.Errorf("referral: normalize total fee: %w", err)
	}
	nRebate, err := e.normalize(ev.Token, ev.Rebate)
	if err != nil {
		return fmt.Errorf("referral: normalize rebate: %w", err)
	}
	nReferrerFee, err := e.normalize(ev.Token, ev.ReferrerFee)
	if err != nil {
		return fmt.Errorf("referral: normalize referrer fee: %w", err)
	}

	ts := ev.BlockTime()
	e.agg.RecordReferral(ev.User, ev.Referrer, nTotalFee, nReferrerFee, nRebate)
	if ev.IsValid {
		e.agg.RecordReferralDiscount(ts, nRebate, nReferrerFee)
	}
	return nil
}

func (e *Engine) handleLBFRClaim(ev *event.LBFRClaim) error {
	e.agg.RecordLBFRClaim(ev.User, ev.Amount)
	return nil
}

// handlePoolChange re-snapshots the pool on any event that moves its
// balances: deposits, withdrawals, released premiums and payouts.
func (e *Engine) handlePoolChange(meta event.Meta) error {
	ps, err := e.reader.PoolState(meta.Contract)
	if err != nil {
		return fmt.Errorf("pool state: %w", err)
	}
	rate, err := convert.PoolRate(ps.TotalTokenBalance, ps.TotalSupply)
	if err != nil {
		return fmt.Errorf("pool rate: %w", err)
	}
	e.agg.RecordPoolStat(meta.BlockTime(), ps.TotalTokenBalance, rate)
	return nil
}

func (e *Engine) handleTokenTransfer(ev *event.TokenTransfer) error {
	const zeroAddr = "0x0000000000000000000000000000000000000000"
	holders := store.LoadTokenHolderStat(e.tracked)

	if ev.From != zeroAddr {
		from := store.LoadTokenHolder(e.tracked, ev.From)
		hadBalance := from.Balance.Sign() > 0
		from.Balance.Sub(from.Balance, ev.Value)
		if hadBalance && from.Balance.Sign() == 0 {
			holders.HolderCount--
		}
		e.tracked.Put(from)
	}
	if ev.To != zeroAddr {
		to := store.LoadTokenHolder(e.tracked, ev.To)
		if to.Balance.Sign() == 0 && ev.Value.Sign() > 0 {
			holders.HolderCount++
		}
		to.Balance.Add(to.Balance, ev.Value)
		e.tracked.Put(to)
	}
	e.tracked.Put(holders)
	return nil
}
