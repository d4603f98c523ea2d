package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Position is an open holding in one instrument. Quantity is always a
// whole number of A-share lots (100 shares); it is opened on the first
// BUY fill and closed when quantity returns to zero.
type Position struct {
	Instrument   types.InstrumentCode
	Quantity     int64
	EntryPrice   decimal.Decimal // execution price per share, after slippage
	CostBasis    decimal.Decimal // total cash paid to open, including fees
	CurrentPrice decimal.Decimal
	EntryTime    time.Time
}

// Notional returns quantity * current mark price.
func (p Position) Notional() decimal.Decimal {
	return decimal.NewFromInt(p.Quantity).Mul(p.CurrentPrice)
}

// Trade is a completed round trip (entry + exit) in one instrument.
type Trade struct {
	Instrument   types.InstrumentCode
	EntryTs      time.Time
	EntryPrice   decimal.Decimal
	ExitTs       time.Time
	ExitPrice    decimal.Decimal
	Quantity     int64
	RealizedPnL  decimal.Decimal
	FeesTotal    decimal.Decimal
}

// IsWinning reports whether the trade closed with positive realized P&L.
func (t Trade) IsWinning() bool {
	return t.RealizedPnL.IsPositive()
}

// HoldDuration returns the time the position was held.
func (t Trade) HoldDuration() time.Duration {
	return t.ExitTs.Sub(t.EntryTs)
}

// EquityPoint is one (date, total_equity) sample in the equity curve.
type EquityPoint struct {
	Date   time.Time
	Equity decimal.Decimal
}

// Portfolio is the engine's exclusively-owned trading book: cash plus
// open positions keyed by instrument, plus the monotonically-growing
// equity history. Cash never goes negative after any settled trade.
type Portfolio struct {
	Cash          decimal.Decimal
	Positions     map[types.InstrumentCode]*Position
	EquityHistory []EquityPoint
}

// NewPortfolio starts a portfolio with startingCash and no positions.
func NewPortfolio(startingCash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:      startingCash,
		Positions: make(map[types.InstrumentCode]*Position),
	}
}

// Equity returns cash + the mark-to-market notional of every position.
func (p *Portfolio) Equity() decimal.Decimal {
	total := p.Cash
	for _, pos := range p.Positions {
		total = total.Add(pos.Notional())
	}
	return total
}

// Metrics holds the end-of-run statistics computed by the Metrics Aggregator (§4.6).
type Metrics struct {
	TotalReturn      decimal.Decimal
	AnnualizedReturn decimal.Decimal
	MaxDrawdown      decimal.Decimal
	Sharpe           float64 // NaN when undefined
	WinRate          float64
	ProfitFactor     float64 // NaN when undefined
}

// Result is the complete output of one backtest run (§3 BacktestResult).
type Result struct {
	// RunID uniquely identifies this run, so artifacts and reports
	// produced from it can be correlated without depending on wall-clock
	// timestamps.
	RunID       string
	Config      Config
	DateRange   types.DateRange
	Trades      []Trade
	EquityCurve []EquityPoint
	Metrics     Metrics

	// Canceled is set when the run ended via external cancellation; the
	// remaining fields still hold whatever was accumulated up to that point.
	Canceled bool
}
