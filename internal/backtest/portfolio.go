package backtest

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Book mutates a Portfolio in place, applying the A-share cost model
// (§4.5) on every leg. It is the only component that touches cash and
// positions directly; the Engine drives it from signals and target
// weights, the Scheduler drives it from rebalance transitions.
type Book struct {
	portfolio *Portfolio
	config    Config
	logger    zerolog.Logger
}

func NewBook(portfolio *Portfolio, config Config, logger zerolog.Logger) *Book {
	return &Book{portfolio: portfolio, config: config, logger: logger}
}

func (b *Book) Portfolio() *Portfolio { return b.portfolio }

// MarkPrice updates the current mark for instrument, used for
// mark-to-market equity and for sizing decisions taken on the same bar.
func (b *Book) MarkPrice(instrument types.InstrumentCode, price decimal.Decimal) {
	if pos, ok := b.portfolio.Positions[instrument]; ok {
		pos.CurrentPrice = price
	}
}

// RecordEquity appends the current mark-to-market equity as of date to
// the equity curve.
func (b *Book) RecordEquity(date time.Time) {
	b.portfolio.EquityHistory = append(b.portfolio.EquityHistory, EquityPoint{
		Date:   date,
		Equity: b.portfolio.Equity(),
	})
}

// BuyToTarget opens a position sized at targetWeight of current equity,
// rounded down to whole lots; an instrument that is already held is left
// unchanged. A target too small to clear a single lot is skipped with a
// nil error while cash could still pay for one lot. When cash after fees
// cannot cover even one lot, or the sized order, the leg is skipped and a
// KindInsufficientCash RunError is returned, which the engine treats as
// non-fatal (§7).
func (b *Book) BuyToTarget(instrument types.InstrumentCode, price decimal.Decimal, timestamp time.Time, targetWeight decimal.Decimal) error {
	if _, alreadyHeld := b.portfolio.Positions[instrument]; alreadyHeld {
		return nil
	}
	if price.LessThanOrEqual(decimal.Zero) || targetWeight.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	equity := b.portfolio.Equity()
	targetNotional := equity.Mul(targetWeight)

	execPrice := applySlippage(price, b.config.SlippageRate, true)
	lotSize := decimal.NewFromInt(int64(b.config.LotSize))
	lots := targetNotional.Div(execPrice).Div(lotSize).Floor()
	quantity := lots.Mul(lotSize).IntPart()
	if quantity <= 0 {
		oneLot := lotSize.Mul(execPrice)
		oneLotCost := oneLot.Add(b.config.legFees(instrument, oneLot, false))
		if oneLotCost.GreaterThan(b.portfolio.Cash) {
			b.logger.Warn().
				Str("instrument", string(instrument)).
				Str("required", oneLotCost.String()).
				Str("available", b.portfolio.Cash.String()).
				Msg("insufficient cash for one lot, skipping leg")
			return NewRunError(KindInsufficientCash, "insufficient cash for one lot", nil)
		}
		return nil
	}

	notional := decimal.NewFromInt(quantity).Mul(execPrice)
	fees := b.config.legFees(instrument, notional, false)
	totalCost := notional.Add(fees)

	if totalCost.GreaterThan(b.portfolio.Cash) {
		b.logger.Warn().
			Str("instrument", string(instrument)).
			Str("required", totalCost.String()).
			Str("available", b.portfolio.Cash.String()).
			Msg("insufficient cash for buy, skipping leg")
		return NewRunError(KindInsufficientCash, "insufficient cash for buy leg", nil)
	}

	b.portfolio.Cash = b.portfolio.Cash.Sub(totalCost)
	b.portfolio.Positions[instrument] = &Position{
		Instrument:   instrument,
		Quantity:     quantity,
		EntryPrice:   execPrice,
		CostBasis:    totalCost,
		CurrentPrice: price,
		EntryTime:    timestamp,
	}

	b.logger.Info().
		Str("instrument", string(instrument)).
		Str("price", execPrice.String()).
		Int64("quantity", quantity).
		Str("fees", fees.String()).
		Msg("buy executed")
	return nil
}

// SellAll closes the full position in instrument, if any, realizing P&L
// net of fees. It returns the completed Trade, or nil if no position was
// open.
func (b *Book) SellAll(instrument types.InstrumentCode, price decimal.Decimal, timestamp time.Time) (*Trade, error) {
	pos, ok := b.portfolio.Positions[instrument]
	if !ok {
		return nil, nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, NewRunError(KindBarDataInvalid, "non-positive sell price", nil)
	}

	execPrice := applySlippage(price, b.config.SlippageRate, false)
	notional := decimal.NewFromInt(pos.Quantity).Mul(execPrice)
	fees := b.config.legFees(instrument, notional, true)
	proceeds := notional.Sub(fees)

	b.portfolio.Cash = b.portfolio.Cash.Add(proceeds)
	delete(b.portfolio.Positions, instrument)

	entryFees := pos.CostBasis.Sub(decimal.NewFromInt(pos.Quantity).Mul(pos.EntryPrice))
	trade := &Trade{
		Instrument:  instrument,
		EntryTs:     pos.EntryTime,
		EntryPrice:  pos.EntryPrice,
		ExitTs:      timestamp,
		ExitPrice:   execPrice,
		Quantity:    pos.Quantity,
		RealizedPnL: proceeds.Sub(pos.CostBasis),
		FeesTotal:   entryFees.Add(fees),
	}

	b.logger.Info().
		Str("instrument", string(instrument)).
		Str("price", execPrice.String()).
		Int64("quantity", pos.Quantity).
		Str("realized_pnl", trade.RealizedPnL.String()).
		Msg("sell executed")
	return trade, nil
}

// LiquidateAll force-closes every open position at the supplied marks,
// used at the end of a run when Config.LiquidateAtEnd is set.
func (b *Book) LiquidateAll(marks map[types.InstrumentCode]decimal.Decimal, timestamp time.Time) ([]Trade, error) {
	instruments := make([]types.InstrumentCode, 0, len(b.portfolio.Positions))
	for i := range b.portfolio.Positions {
		instruments = append(instruments, i)
	}
	sort.Slice(instruments, func(a, b int) bool { return instruments[a] < instruments[b] })

	var closed []Trade
	for _, instrument := range instruments {
		price, ok := marks[instrument]
		if !ok {
			price = b.portfolio.Positions[instrument].CurrentPrice
		}
		trade, err := b.SellAll(instrument, price, timestamp)
		if err != nil {
			return closed, err
		}
		if trade != nil {
			closed = append(closed, *trade)
		}
	}
	return closed, nil
}
