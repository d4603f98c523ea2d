package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/internal/barstore"
	"github.com/bikeshrana/ashare-backtest-go/internal/rebalance"
	"github.com/bikeshrana/ashare-backtest-go/internal/runmetrics"
	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Engine is the backtesting engine: a single-threaded, cooperative
// simulation over a chronologically merged stream of bars across every
// instrument in the run's universe.
//
// For the top_k strategy, the Rebalance Scheduler is authoritative over
// entries and exits: the Signal Adapter's per-bar top_k decisions exist
// only to drive signal metrics/logging, and trading happens solely at
// rebalance dates, sized by the configured weight policy. For the
// threshold and percentile strategies there is no scheduled rebalance;
// the Signal Adapter's per-bar Buy/Sell decisions drive the book
// directly, capped at TopK concurrently open positions with an equal
// slot weight.
type Engine struct {
	config  Config
	logger  zerolog.Logger
	store   barstore.Store
	table   *scoretable.ScoreTable
	index   *topk.Index
	adapter *signal.Adapter

	scheduler *rebalance.Scheduler
	book      *Book
	metrics   *runmetrics.RunMetrics
}

// NewEngine wires the per-run components. metrics may be nil, in which
// case ambient Prometheus observations are skipped.
func NewEngine(config Config, table *scoretable.ScoreTable, index *topk.Index, adapter *signal.Adapter, store barstore.Store, metrics *runmetrics.RunMetrics, logger zerolog.Logger) *Engine {
	e := &Engine{
		config:  config,
		logger:  logger,
		store:   store,
		table:   table,
		index:   index,
		adapter: adapter,
		metrics: metrics,
	}
	if adapter.Strategy() == signal.StrategyTopK {
		e.scheduler = rebalance.NewScheduler(index)
		adapter.SetHeldChecker(e.scheduler)
	}
	return e
}

// Run replays every instrument's bars over Config.DateRange and returns
// the completed Result. A canceled context stops the run at the current
// bar and returns a Result with Canceled set, rather than discarding
// everything accumulated so far.
func (e *Engine) Run(ctx context.Context, instruments []types.InstrumentCode) (*Result, error) {
	startTime := time.Now()

	e.logger.Info().
		Int("instruments", len(instruments)).
		Time("start", e.config.DateRange.Start).
		Time("end", e.config.DateRange.End).
		Str("initial_capital", e.config.InitialCapital.String()).
		Msg("starting backtest run")

	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	bars, err := e.fetchAll(ctx, instruments)
	if err != nil {
		if ctx.Err() != nil {
			e.book = NewBook(NewPortfolio(e.config.InitialCapital), e.config, e.logger)
			return e.compileResult(nil, true), NewRunError(KindCanceled, "run canceled", ErrCanceled)
		}
		return nil, err
	}
	if len(bars) == 0 {
		return nil, NewRunError(KindBarDataInvalid, "no bars in range for any instrument", nil)
	}

	portfolio := NewPortfolio(e.config.InitialCapital)
	e.book = NewBook(portfolio, e.config, e.logger)

	rebalanceDates := e.index.RebalanceDates(e.config.DateRange, e.config.RebalancePeriod)
	isRebalanceDate := make(map[int64]bool, len(rebalanceDates))
	for _, d := range rebalanceDates {
		isRebalanceDate[types.NormalizeDate(d).Unix()] = true
	}

	var trades []Trade
	canceled := false

	ticks := groupByTimestamp(bars)
	for _, tick := range ticks {
		select {
		case <-ctx.Done():
			canceled = true
		default:
		}
		if canceled {
			break
		}

		for _, bar := range tick.bars {
			e.book.MarkPrice(bar.Instrument, bar.Close)
			if e.metrics != nil {
				e.metrics.BarsProcessedTotal.WithLabelValues(string(bar.Instrument)).Inc()
			}
		}

		if isRebalanceDate[types.NormalizeDate(tick.timestamp).Unix()] && e.scheduler != nil {
			newTrades, err := e.runRebalance(tick)
			if err != nil {
				return nil, err
			}
			trades = append(trades, newTrades...)
		}

		for _, bar := range tick.bars {
			newTrades, err := e.runSignalDriven(bar)
			if err != nil {
				return nil, err
			}
			trades = append(trades, newTrades...)
		}

		e.book.RecordEquity(tick.timestamp)
		if e.metrics != nil {
			e.metrics.PortfolioValue.Set(mustFloat(portfolio.Equity()))
			e.metrics.AvailableCash.Set(mustFloat(portfolio.Cash))
			e.metrics.ActivePositions.Set(float64(len(portfolio.Positions)))
		}
	}

	if !canceled && e.config.LiquidateAtEnd && len(ticks) > 0 {
		lastTick := ticks[len(ticks)-1]
		marks := make(map[types.InstrumentCode]decimal.Decimal, len(lastTick.bars))
		for _, bar := range lastTick.bars {
			marks[bar.Instrument] = bar.Close
		}
		closed, err := e.book.LiquidateAll(marks, lastTick.timestamp)
		if err != nil {
			return nil, err
		}
		trades = append(trades, closed...)
	}

	result := e.compileResult(trades, canceled)

	e.logger.Info().
		Dur("wall_clock", time.Since(startTime)).
		Int("trades", len(result.Trades)).
		Str("total_return", result.Metrics.TotalReturn.String()).
		Float64("sharpe", result.Metrics.Sharpe).
		Bool("canceled", canceled).
		Msg("backtest run complete")

	if canceled {
		return result, NewRunError(KindCanceled, "run canceled", ErrCanceled)
	}
	return result, nil
}

// runRebalance drives the top_k strategy: compute the new held set,
// close exits, then open entries sized by the configured weight policy.
func (e *Engine) runRebalance(tick bundledTick) ([]Trade, error) {
	transitions := e.scheduler.Rebalance(tick.timestamp)
	if len(transitions) == 0 {
		return nil, nil
	}

	priceOf := tick.priceIndex()
	var trades []Trade

	for _, t := range transitions {
		if t.IsEntry {
			continue
		}
		price, ok := priceOf[t.Instrument]
		if !ok {
			continue
		}
		trade, err := e.book.SellAll(t.Instrument, price, tick.timestamp)
		if err != nil {
			if k, _ := KindOf(err); k == KindInsufficientCash || k == KindPolicyViolation {
				continue
			}
			return trades, err
		}
		if trade != nil {
			trades = append(trades, *trade)
		}
	}

	weights := rebalance.TargetWeights(e.scheduler.Held(), e.table, tick.timestamp, e.config.RebalancePolicy, e.config.MaxPositionPct, e.config.TopK)
	for _, t := range transitions {
		if !t.IsEntry {
			continue
		}
		price, ok := priceOf[t.Instrument]
		if !ok {
			continue
		}
		weight := weights[t.Instrument]
		if err := e.book.BuyToTarget(t.Instrument, price, tick.timestamp, weight); err != nil {
			if k, _ := KindOf(err); k == KindInsufficientCash || k == KindPolicyViolation {
				continue
			}
			return trades, err
		}
	}
	return trades, nil
}

// runSignalDriven drives the threshold/percentile strategies directly
// from the per-bar signal, capped at TopK concurrently open positions.
func (e *Engine) runSignalDriven(bar types.Bar) ([]Trade, error) {
	if e.scheduler != nil {
		return nil, nil
	}
	sig := e.adapter.Decide(bar)
	if e.metrics != nil {
		e.metrics.SignalsTotal.WithLabelValues(string(bar.Instrument), sig.Kind.String(), sig.Strength.String()).Inc()
	}

	switch sig.Kind {
	case signal.Sell:
		trade, err := e.book.SellAll(bar.Instrument, bar.Close, bar.Timestamp)
		if err != nil {
			if k, _ := KindOf(err); k == KindInsufficientCash || k == KindPolicyViolation {
				return nil, nil
			}
			return nil, err
		}
		if trade == nil {
			return nil, nil
		}
		return []Trade{*trade}, nil

	case signal.Buy:
		positions := e.book.Portfolio().Positions
		if _, held := positions[bar.Instrument]; held || len(positions) >= e.config.TopK {
			return nil, nil
		}
		weight := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(e.config.TopK)))
		if weight.GreaterThan(e.config.MaxPositionPct) {
			weight = e.config.MaxPositionPct
		}
		if err := e.book.BuyToTarget(bar.Instrument, bar.Close, bar.Timestamp, weight); err != nil {
			if k, _ := KindOf(err); k == KindInsufficientCash || k == KindPolicyViolation {
				return nil, nil
			}
			return nil, err
		}
		return nil, nil

	default:
		return nil, nil
	}
}

func (e *Engine) compileResult(trades []Trade, canceled bool) *Result {
	portfolio := e.book.Portfolio()
	calc := NewMetricsCalculator(trades, portfolio.EquityHistory, e.config.InitialCapital)
	return &Result{
		RunID:       uuid.New().String(),
		Config:      e.config,
		DateRange:   e.config.DateRange,
		Trades:      trades,
		EquityCurve: portfolio.EquityHistory,
		Metrics:     calc.Calculate(),
		Canceled:    canceled,
	}
}

// fetchAll loads every instrument's bars over the configured range and
// validates each one, wrapping the Bar Store's contract violations and
// fetch failures into the engine's typed errors (§7). Each call is bounded
// by BarFetchDeadline independent of whether store is itself rate-limited,
// so the deadline holds on any Store implementation.
func (e *Engine) fetchAll(ctx context.Context, instruments []types.InstrumentCode) ([]types.Bar, error) {
	var all []types.Bar
	for _, instrument := range instruments {
		fetchCtx := ctx
		var cancel context.CancelFunc
		if e.config.BarFetchDeadline > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, e.config.BarFetchDeadline)
		}
		bars, err := e.store.Bars(fetchCtx, instrument, e.config.DateRange, types.PeriodDay)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if ctx.Err() != nil || fetchCtx.Err() == context.DeadlineExceeded {
				return nil, NewRunError(KindBarFetchTimeout, fmt.Sprintf("fetching bars for %s", instrument), err)
			}
			return nil, NewRunError(KindBarFetchFailed, fmt.Sprintf("fetching bars for %s", instrument), err)
		}
		for _, b := range bars {
			if err := b.Validate(); err != nil {
				return nil, NewRunError(KindBarDataInvalid, fmt.Sprintf("bar for %s at %s", instrument, b.Timestamp.Format("2006-01-02")), err)
			}
			all = append(all, b)
		}
	}
	return all, nil
}

// bundledTick is every bar sharing one timestamp across instruments,
// the engine's unit of simulation: all marks update together before any
// trading decision is made for that instant.
type bundledTick struct {
	timestamp time.Time
	bars      []types.Bar
}

func (t bundledTick) priceIndex() map[types.InstrumentCode]decimal.Decimal {
	out := make(map[types.InstrumentCode]decimal.Decimal, len(t.bars))
	for _, b := range t.bars {
		out[b.Instrument] = b.Close
	}
	return out
}

// groupByTimestamp sorts bars chronologically, breaking same-timestamp
// ties lexicographically by instrument code, and groups them into one
// bundledTick per distinct timestamp.
func groupByTimestamp(bars []types.Bar) []bundledTick {
	sorted := make([]types.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Instrument < sorted[j].Instrument
	})

	var ticks []bundledTick
	for _, b := range sorted {
		if len(ticks) == 0 || !ticks[len(ticks)-1].timestamp.Equal(b.Timestamp) {
			ticks = append(ticks, bundledTick{timestamp: b.Timestamp})
		}
		ticks[len(ticks)-1].bars = append(ticks[len(ticks)-1].bars, b)
	}
	return ticks
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
