package signal

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// HeldChecker reports whether an instrument is presently held. The
// Rebalance Scheduler implements this so the top_k strategy can classify
// exits without duplicating held-set bookkeeping.
type HeldChecker interface {
	IsHeld(types.InstrumentCode) bool
}

// Adapter converts a shared ScoreTable (and, for the top_k strategy, a
// shared Top-K Index) into per-bar trading signals. An Adapter instance
// is shared by every instrument in a run; its per-instrument sub-index
// is built lazily and memoized for the run's lifetime.
type Adapter struct {
	table  *scoretable.ScoreTable
	index  *topk.Index // used only by the top_k strategy; may be nil for the others
	cfg    Config
	logger zerolog.Logger

	subIndex map[types.InstrumentCode]map[int64]scoretable.Score
	warned   map[warnKey]bool
	held     HeldChecker
}

type warnKey struct {
	instrument types.InstrumentCode
	date       int64
}

// New constructs an Adapter. cfg must already have passed Validate.
func New(table *scoretable.ScoreTable, index *topk.Index, cfg Config, logger zerolog.Logger) *Adapter {
	return &Adapter{
		table:    table,
		index:    index,
		cfg:      cfg,
		logger:   logger,
		subIndex: make(map[types.InstrumentCode]map[int64]scoretable.Score),
		warned:   make(map[warnKey]bool),
	}
}

// SetHeldChecker wires in the Rebalance Scheduler's held-set view, used
// only by the top_k strategy to classify exits.
func (a *Adapter) SetHeldChecker(h HeldChecker) {
	a.held = h
}

// Strategy reports the signal strategy this Adapter was configured with.
func (a *Adapter) Strategy() Strategy {
	return a.cfg.Strategy
}

// subIndexFor returns (building on first use) the per-instrument
// date->score sub-index, memoized for the run.
func (a *Adapter) subIndexFor(instrument types.InstrumentCode) map[int64]scoretable.Score {
	if m, ok := a.subIndex[instrument]; ok {
		return m
	}
	m := make(map[int64]scoretable.Score)
	for _, s := range a.table.ForInstrument(instrument) {
		m[s.Date.Unix()] = s
	}
	a.subIndex[instrument] = m
	return m
}

// Decide produces the trading signal for one bar. The comparison is
// always between the bar's normalized date and the score's date; a
// mismatch (score absent for that exact date) yields HOLD. This is the
// mechanism that forbids using a prediction indexed at date T to decide
// an action at any bar with normalized date earlier than T.
func (a *Adapter) Decide(bar types.Bar) TradingSignal {
	date := bar.Date()
	sig := TradingSignal{Instrument: bar.Instrument, Timestamp: bar.Timestamp, Kind: Hold}

	sub := a.subIndexFor(bar.Instrument)
	score, ok := sub[date.Unix()]
	if !ok {
		return sig
	}
	if math.IsNaN(score.Value) || math.IsInf(score.Value, 0) {
		a.warnAnomalyOnce(bar.Instrument, date)
		return sig
	}
	sig.Score = score.Value

	switch a.cfg.Strategy {
	case StrategyThreshold:
		a.decideThreshold(&sig, score.Value)
	case StrategyTopK:
		a.decideTopK(&sig, bar.Instrument, date)
	case StrategyPercentile:
		a.decidePercentile(&sig, bar.Instrument, date, score.Value)
	}

	if sig.Kind != Hold {
		sig.Strength = classifyStrength(score.Value, a.cfg.StrengthBandUnit)
	}
	return sig
}

func (a *Adapter) warnAnomalyOnce(instrument types.InstrumentCode, date time.Time) {
	k := warnKey{instrument: instrument, date: date.Unix()}
	if a.warned[k] {
		return
	}
	a.warned[k] = true
	a.logger.Warn().
		Str("instrument", instrument.String()).
		Time("date", date).
		Msg("numeric anomaly in score, treating as HOLD")
}

func (a *Adapter) decideThreshold(sig *TradingSignal, value float64) {
	switch {
	case value > a.cfg.BuyThreshold:
		sig.Kind = Buy
	case value < a.cfg.SellThreshold:
		sig.Kind = Sell
	}
}

func (a *Adapter) decideTopK(sig *TradingSignal, instrument types.InstrumentCode, date time.Time) {
	if a.index == nil {
		return
	}
	inTopK := false
	for _, i := range a.index.TopKAt(date) {
		if i == instrument {
			inTopK = true
			break
		}
	}
	wasHeld := a.held != nil && a.held.IsHeld(instrument)
	switch {
	case inTopK && !wasHeld:
		sig.Kind = Buy
	case !inTopK && wasHeld:
		sig.Kind = Sell
	}
}

func (a *Adapter) decidePercentile(sig *TradingSignal, instrument types.InstrumentCode, date time.Time, value float64) {
	day := a.table.ForDate(date)
	if len(day) == 0 {
		return
	}
	values := make([]float64, len(day))
	for i, s := range day {
		values[i] = s.Value
	}
	sort.Float64s(values)

	buyCut := percentileOf(values, a.cfg.Percentile)
	sellCut := percentileOf(values, 100-a.cfg.Percentile)
	switch {
	case value >= buyCut:
		sig.Kind = Buy
	case value <= sellCut:
		sig.Kind = Sell
	}
}

// percentileOf returns the value at percentile p (0-100) of a sorted
// ascending slice, using linear interpolation between adjacent ranks.
func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
