package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EquityCurvePoint is one equity-curve sample enriched with drawdown
// and cumulative return, for external charting.
type EquityCurvePoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Equity           float64   `json:"equity"`
	Drawdown         float64   `json:"drawdown"`
	DrawdownPct      float64   `json:"drawdown_pct"`
	CumulativeReturn float64   `json:"cumulative_return"`
}

// DrawdownPeriod is a contiguous peak-to-recovery drawdown span.
type DrawdownPeriod struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	RecoveryTime   time.Time `json:"recovery_time,omitempty"`
	PeakEquity     float64   `json:"peak_equity"`
	TroughEquity   float64   `json:"trough_equity"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Duration       string    `json:"duration"`
	Recovered      bool      `json:"recovered"`
}

// VisualizationData holds everything an external plotting script needs
// to render a run: the enriched equity curve, drawdown periods, trade
// P&L distributions, and monthly P&L.
type VisualizationData struct {
	EquityCurve []EquityCurvePoint `json:"equity_curve"`

	DrawdownPeriods []DrawdownPeriod `json:"drawdown_periods"`

	WinDistribution  []float64 `json:"win_distribution"`
	LossDistribution []float64 `json:"loss_distribution"`

	MonthlyPnL map[string]float64 `json:"monthly_pnl"`

	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// GenerateVisualizationData derives chart-ready data from a Result.
func GenerateVisualizationData(result *Result) *VisualizationData {
	finalCapital := result.Config.InitialCapital.InexactFloat64()
	if n := len(result.EquityCurve); n > 0 {
		finalCapital = result.EquityCurve[n-1].Equity.InexactFloat64()
	}

	viz := &VisualizationData{
		InitialCapital: result.Config.InitialCapital.InexactFloat64(),
		FinalCapital:   finalCapital,
		StartDate:      result.DateRange.Start,
		EndDate:        result.DateRange.End,
		MonthlyPnL:     make(map[string]float64),
	}

	viz.EquityCurve = generateEquityCurveData(result)
	viz.DrawdownPeriods = identifyDrawdownPeriods(viz.EquityCurve)
	viz.WinDistribution, viz.LossDistribution = extractTradeDistributions(result.Trades)
	viz.MonthlyPnL = calculateMonthlyPnL(result.Trades)

	return viz
}

func generateEquityCurveData(result *Result) []EquityCurvePoint {
	points := make([]EquityCurvePoint, len(result.EquityCurve))

	initial := result.Config.InitialCapital.InexactFloat64()
	peak := initial
	for i, ep := range result.EquityCurve {
		equity := ep.Equity.InexactFloat64()
		if equity > peak {
			peak = equity
		}

		drawdown := peak - equity
		drawdownPct := 0.0
		if peak > 0 {
			drawdownPct = drawdown / peak * 100
		}

		cumulativeReturn := 0.0
		if initial > 0 {
			cumulativeReturn = (equity - initial) / initial * 100
		}

		points[i] = EquityCurvePoint{
			Timestamp:        ep.Date,
			Equity:           equity,
			Drawdown:         drawdown,
			DrawdownPct:      drawdownPct,
			CumulativeReturn: cumulativeReturn,
		}
	}

	return points
}

func identifyDrawdownPeriods(curve []EquityCurvePoint) []DrawdownPeriod {
	if len(curve) == 0 {
		return nil
	}

	var periods []DrawdownPeriod
	var current *DrawdownPeriod
	peak := curve[0].Equity
	peakTime := curve[0].Timestamp

	for _, point := range curve {
		switch {
		case point.Equity > peak:
			if current != nil {
				current.RecoveryTime = point.Timestamp
				current.Recovered = true
				current.Duration = current.RecoveryTime.Sub(current.StartTime).String()
				periods = append(periods, *current)
				current = nil
			}
			peak = point.Equity
			peakTime = point.Timestamp
		case point.Equity < peak:
			if current == nil {
				current = &DrawdownPeriod{StartTime: peakTime, PeakEquity: peak}
			}
			if current.TroughEquity == 0 || point.Equity < current.TroughEquity {
				current.TroughEquity = point.Equity
				current.EndTime = point.Timestamp
				drawdown := peak - point.Equity
				current.MaxDrawdown = drawdown
				current.MaxDrawdownPct = drawdown / peak * 100
			}
		}
	}

	if current != nil {
		current.Recovered = false
		current.Duration = curve[len(curve)-1].Timestamp.Sub(current.StartTime).String()
		periods = append(periods, *current)
	}

	return periods
}

func extractTradeDistributions(trades []Trade) ([]float64, []float64) {
	wins := make([]float64, 0)
	losses := make([]float64, 0)

	for _, t := range trades {
		pnl := t.RealizedPnL.InexactFloat64()
		if t.IsWinning() {
			wins = append(wins, pnl)
		} else {
			losses = append(losses, pnl)
		}
	}

	return wins, losses
}

func calculateMonthlyPnL(trades []Trade) map[string]float64 {
	monthly := make(map[string]float64)
	for _, t := range trades {
		key := t.ExitTs.Format("2006-01")
		monthly[key] += t.RealizedPnL.InexactFloat64()
	}
	return monthly
}

// ExportToJSON writes the visualization data as JSON.
func (viz *VisualizationData) ExportToJSON(path string) error {
	data, err := json.MarshalIndent(viz, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling visualization data: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing visualization JSON: %w", err)
	}
	return nil
}

// ExportEquityCurveToCSV writes the equity curve as CSV.
func (viz *VisualizationData) ExportEquityCurveToCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating equity curve CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Timestamp", "Equity", "Drawdown", "DrawdownPct", "CumulativeReturn"}); err != nil {
		return err
	}
	for _, p := range viz.EquityCurve {
		row := []string{
			p.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.2f", p.Equity),
			fmt.Sprintf("%.2f", p.Drawdown),
			fmt.Sprintf("%.2f", p.DrawdownPct),
			fmt.Sprintf("%.2f", p.CumulativeReturn),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ExportTradesToCSV writes the trade log as CSV.
func ExportTradesToCSV(trades []Trade, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trades CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Instrument", "EntryTime", "EntryPrice", "ExitTime", "ExitPrice",
		"Quantity", "RealizedPnL", "FeesTotal", "HoldDuration",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			string(t.Instrument),
			t.EntryTs.Format(time.RFC3339),
			fmt.Sprintf("%.4f", t.EntryPrice.InexactFloat64()),
			t.ExitTs.Format(time.RFC3339),
			fmt.Sprintf("%.4f", t.ExitPrice.InexactFloat64()),
			fmt.Sprintf("%d", t.Quantity),
			fmt.Sprintf("%.2f", t.RealizedPnL.InexactFloat64()),
			fmt.Sprintf("%.2f", t.FeesTotal.InexactFloat64()),
			t.HoldDuration().String(),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ExportMonthlyPnLToCSV writes monthly P&L totals as CSV.
func (viz *VisualizationData) ExportMonthlyPnLToCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating monthly P&L CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Month", "PnL"}); err != nil {
		return err
	}
	for month, pnl := range viz.MonthlyPnL {
		if err := writer.Write([]string{month, fmt.Sprintf("%.2f", pnl)}); err != nil {
			return err
		}
	}
	return nil
}

// ExportAllVisualizationData writes JSON plus every CSV export to outputDir.
func ExportAllVisualizationData(result *Result, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	viz := GenerateVisualizationData(result)

	if err := viz.ExportToJSON(filepath.Join(outputDir, "visualization_data.json")); err != nil {
		return fmt.Errorf("exporting JSON: %w", err)
	}
	if err := viz.ExportEquityCurveToCSV(filepath.Join(outputDir, "equity_curve.csv")); err != nil {
		return fmt.Errorf("exporting equity curve: %w", err)
	}
	if err := ExportTradesToCSV(result.Trades, filepath.Join(outputDir, "trades.csv")); err != nil {
		return fmt.Errorf("exporting trades: %w", err)
	}
	if err := viz.ExportMonthlyPnLToCSV(filepath.Join(outputDir, "monthly_pnl.csv")); err != nil {
		return fmt.Errorf("exporting monthly P&L: %w", err)
	}

	return nil
}

// GeneratePythonPlotScript writes a standalone matplotlib script that
// renders the CSV/JSON exports above; useful for a quick look without
// wiring up a Go charting stack.
func GeneratePythonPlotScript(outputDir string) error {
	script := `#!/usr/bin/env python3
"""Plots equity curve, drawdown, and trade distributions from the CSV
exports written by ExportAllVisualizationData. Requires pandas and
matplotlib."""

import pandas as pd
import matplotlib.pyplot as plt

equity_df = pd.read_csv('equity_curve.csv', parse_dates=['Timestamp'])
trades_df = pd.read_csv('trades.csv', parse_dates=['EntryTime', 'ExitTime'])

fig, axes = plt.subplots(2, 2, figsize=(14, 10))
fig.suptitle('Backtest Results', fontsize=16)

ax = axes[0, 0]
ax.plot(equity_df['Timestamp'], equity_df['Equity'], linewidth=2)
ax.set_title('Equity Curve')
ax.grid(True, alpha=0.3)

ax = axes[0, 1]
ax.fill_between(equity_df['Timestamp'], 0, -equity_df['DrawdownPct'], alpha=0.6)
ax.set_title('Drawdown (%)')
ax.grid(True, alpha=0.3)

ax = axes[1, 0]
trades_df['RealizedPnL'].hist(bins=30, ax=ax, alpha=0.7, edgecolor='black')
ax.axvline(x=0, color='red', linestyle='--')
ax.set_title('Trade P&L Distribution')
ax.grid(True, alpha=0.3)

ax = axes[1, 1]
trades_df['Month'] = pd.to_datetime(trades_df['ExitTime']).dt.to_period('M')
trades_df.groupby('Month')['RealizedPnL'].sum().plot(kind='bar', ax=ax)
ax.set_title('Monthly P&L')
ax.grid(True, alpha=0.3)
plt.xticks(rotation=45)

plt.tight_layout()
plt.savefig('backtest_visualization.png', dpi=300, bbox_inches='tight')
print("Visualization saved to backtest_visualization.png")
`

	path := filepath.Join(outputDir, "plot_backtest.py")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return fmt.Errorf("writing plot script: %w", err)
	}
	return nil
}
