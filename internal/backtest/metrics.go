package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// tradingDaysPerYear is the standard A-share annualization constant used
// to convert a total return over the run into an annualized figure.
const tradingDaysPerYear = 252

// MetricsCalculator computes the end-of-run statistics defined in §4.6
// from the trade log and equity curve of a single run.
type MetricsCalculator struct {
	trades         []Trade
	equityCurve    []EquityPoint
	initialCapital decimal.Decimal
}

func NewMetricsCalculator(trades []Trade, equityCurve []EquityPoint, initialCapital decimal.Decimal) *MetricsCalculator {
	return &MetricsCalculator{trades: trades, equityCurve: equityCurve, initialCapital: initialCapital}
}

// Calculate computes every metric. Sharpe and ProfitFactor are NaN when
// the underlying ratio is mathematically undefined rather than being
// silently clamped to zero, so callers can distinguish "no signal" from
// "zero performance".
func (m *MetricsCalculator) Calculate() Metrics {
	return Metrics{
		TotalReturn:      m.totalReturn(),
		AnnualizedReturn: m.annualizedReturn(),
		MaxDrawdown:      m.maxDrawdown(),
		Sharpe:           m.sharpe(),
		WinRate:          m.winRate(),
		ProfitFactor:     m.profitFactor(),
	}
}

func (m *MetricsCalculator) finalEquity() decimal.Decimal {
	if len(m.equityCurve) == 0 {
		return m.initialCapital
	}
	return m.equityCurve[len(m.equityCurve)-1].Equity
}

// totalReturn = (final_equity - initial_capital) / initial_capital.
func (m *MetricsCalculator) totalReturn() decimal.Decimal {
	if m.initialCapital.IsZero() {
		return decimal.Zero
	}
	return m.finalEquity().Sub(m.initialCapital).Div(m.initialCapital)
}

// annualizedReturn = (1 + total_return)^(252 / trading_days) - 1.
func (m *MetricsCalculator) annualizedReturn() decimal.Decimal {
	tradingDays := len(m.equityCurve)
	if tradingDays == 0 {
		return decimal.Zero
	}
	totalReturn, _ := m.totalReturn().Float64()
	exponent := float64(tradingDaysPerYear) / float64(tradingDays)
	annualized := math.Pow(1+totalReturn, exponent) - 1
	return decimal.NewFromFloat(annualized)
}

// maxDrawdown is the largest peak-to-trough decline in equity, expressed
// as a fraction of the peak (not a dollar amount).
func (m *MetricsCalculator) maxDrawdown() decimal.Decimal {
	if len(m.equityCurve) == 0 {
		return decimal.Zero
	}

	maxDD := decimal.Zero
	peak := m.equityCurve[0].Equity
	for _, point := range m.equityCurve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(point.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

// dailyReturns derives period-over-period returns directly from the
// equity curve, since the portfolio no longer tracks a separate daily
// P&L ledger.
func (m *MetricsCalculator) dailyReturns() []float64 {
	if len(m.equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(m.equityCurve)-1)
	for i := 1; i < len(m.equityCurve); i++ {
		prev := m.equityCurve[i-1].Equity
		if prev.IsZero() {
			continue
		}
		r, _ := m.equityCurve[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

// sharpe is the annualized Sharpe ratio at a zero risk-free rate. It is
// NaN when fewer than two daily returns exist or the return series has
// zero variance, since the ratio is mathematically undefined there.
func (m *MetricsCalculator) sharpe() float64 {
	returns := m.dailyReturns()
	if len(returns) < 2 {
		return math.NaN()
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return math.NaN()
	}

	return (mean / stdDev) * math.Sqrt(float64(tradingDaysPerYear))
}

func (m *MetricsCalculator) winRate() float64 {
	if len(m.trades) == 0 {
		return math.NaN()
	}
	wins := 0
	for _, t := range m.trades {
		if t.IsWinning() {
			wins++
		}
	}
	return float64(wins) / float64(len(m.trades))
}

// profitFactor is gross profit / gross loss. It is NaN when gross loss
// sums to zero, since the ratio has no defined limit there.
func (m *MetricsCalculator) profitFactor() float64 {
	grossProfit, grossLoss := 0.0, 0.0
	for _, t := range m.trades {
		pnl, _ := t.RealizedPnL.Float64()
		if pnl > 0 {
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
	}
	if grossLoss == 0 {
		return math.NaN()
	}
	return grossProfit / grossLoss
}
