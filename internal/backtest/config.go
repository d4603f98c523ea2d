package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/internal/rebalance"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Config holds the parameters of one backtest run: the A-share cost
// model, sizing policy, and the time range to simulate.
type Config struct {
	DateRange types.DateRange

	InitialCapital decimal.Decimal

	// Cost model, applied per leg (§4.5).
	CommissionRate  decimal.Decimal
	MinCommission   decimal.Decimal
	StampTaxRate    decimal.Decimal // sell-only
	TransferFeeRate decimal.Decimal // SH-market only
	SlippageRate    decimal.Decimal

	// Sizing policy.
	MaxPositionPct     decimal.Decimal
	LotSize            int
	StartingCashBuffer decimal.Decimal

	// Top-K / rebalance parameters.
	TopK            int
	RebalancePolicy rebalance.WeightPolicy
	RebalancePeriod types.Period

	// LiquidateAtEnd controls whether every open position is force-closed
	// at the final bar of the run so the equity curve reflects fully
	// realized P&L. Defaults to false: positions carry through as
	// unrealized mark-to-market, matching how a live book would look at
	// an arbitrary cutoff.
	LiquidateAtEnd bool

	// BarFetchDeadline bounds each individual bar-fetch call; exhaustion
	// surfaces BarFetchTimeout.
	BarFetchDeadline time.Duration

	// BarFetchRetryBudget is the number of recoverable per-bar fetch
	// failures tolerated across the whole run before it becomes fatal.
	BarFetchRetryBudget int
}

// Validate checks that Config is complete and internally consistent,
// returning a RunError of kind ConfigInvalid on any defect. This check
// runs before any I/O, per the engine's error handling design.
func (c Config) Validate() error {
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return NewRunError(KindConfigInvalid, "initial_capital must be positive", nil)
	}
	if c.DateRange.Start.After(c.DateRange.End) {
		return NewRunError(KindConfigInvalid, "date range start must not be after end", nil)
	}
	if c.CommissionRate.IsNegative() || c.MinCommission.IsNegative() {
		return NewRunError(KindConfigInvalid, "commission parameters must be non-negative", nil)
	}
	if c.StampTaxRate.IsNegative() || c.TransferFeeRate.IsNegative() || c.SlippageRate.IsNegative() {
		return NewRunError(KindConfigInvalid, "cost model rates must be non-negative", nil)
	}
	if c.MaxPositionPct.LessThanOrEqual(decimal.Zero) || c.MaxPositionPct.GreaterThan(decimal.NewFromInt(1)) {
		return NewRunError(KindConfigInvalid, "max_position_pct must be in (0, 1]", nil)
	}
	if c.LotSize <= 0 {
		return NewRunError(KindConfigInvalid, "lot_size must be positive", nil)
	}
	if c.TopK <= 0 {
		return NewRunError(KindConfigInvalid, "top_k must be positive", nil)
	}
	return nil
}

// DefaultConfig returns the conventional A-share cost-model parameters;
// callers still must set InitialCapital, DateRange, and TopK.
func DefaultConfig() Config {
	return Config{
		CommissionRate:      decimal.NewFromFloat(0.0003),
		MinCommission:       decimal.NewFromInt(5),
		StampTaxRate:        decimal.NewFromFloat(0.0005),
		TransferFeeRate:     decimal.NewFromFloat(0.00002),
		SlippageRate:        decimal.NewFromFloat(0.001),
		MaxPositionPct:      decimal.NewFromFloat(0.2),
		LotSize:             100,
		StartingCashBuffer:  decimal.Zero,
		RebalancePolicy:     rebalance.PolicyEqualWeight,
		RebalancePeriod:     types.PeriodMonth,
		BarFetchDeadline:    30 * time.Second,
		BarFetchRetryBudget: 3,
	}
}
