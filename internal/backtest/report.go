package backtest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ReportGenerator renders a Result as a human-readable console report.
type ReportGenerator struct {
	result *Result
}

func NewReportGenerator(result *Result) *ReportGenerator {
	return &ReportGenerator{result: result}
}

// GenerateConsoleReport renders the formatted console report and returns
// it as a string; the caller decides where to print it.
func (r *ReportGenerator) GenerateConsoleReport() string {
	var sb strings.Builder
	cfg := r.result.Config

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("                           BACKTEST RESULTS                                     \n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	sb.WriteString("CONFIGURATION\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Start Date:       %s\n", r.result.DateRange.Start.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("End Date:         %s\n", r.result.DateRange.End.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Top-K:            %d\n", cfg.TopK))
	sb.WriteString(fmt.Sprintf("Rebalance Period: %s\n", cfg.RebalancePeriod))
	sb.WriteString(fmt.Sprintf("Initial Capital:  %s\n", humanizeMoney(cfg.InitialCapital.InexactFloat64())))
	if r.result.Canceled {
		sb.WriteString("Status:           CANCELED (partial result)\n")
	}
	sb.WriteString("\n")

	finalEquity := cfg.InitialCapital
	if n := len(r.result.EquityCurve); n > 0 {
		finalEquity = r.result.EquityCurve[n-1].Equity
	}

	sb.WriteString("OVERALL PERFORMANCE\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Final Equity:     %s\n", humanizeMoney(finalEquity.InexactFloat64())))
	sb.WriteString(fmt.Sprintf("Total Return:     %s\n", formatPct(r.result.Metrics.TotalReturn.InexactFloat64())))
	sb.WriteString(fmt.Sprintf("Annualized:       %s\n", formatPct(r.result.Metrics.AnnualizedReturn.InexactFloat64())))
	sb.WriteString("\n")

	wins, losses := 0, 0
	for _, t := range r.result.Trades {
		if t.IsWinning() {
			wins++
		} else {
			losses++
		}
	}

	sb.WriteString("TRADE STATISTICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Trades:     %s\n", humanize.Comma(int64(len(r.result.Trades)))))
	sb.WriteString(fmt.Sprintf("Winning / Losing: %d / %d\n", wins, losses))
	sb.WriteString(fmt.Sprintf("Win Rate:         %s\n", formatRatio(r.result.Metrics.WinRate)))
	sb.WriteString(fmt.Sprintf("Profit Factor:    %s\n", formatRatio(r.result.Metrics.ProfitFactor)))
	sb.WriteString("\n")

	sb.WriteString("RISK METRICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Max Drawdown:     %s\n", formatPct(r.result.Metrics.MaxDrawdown.InexactFloat64())))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:     %s\n", formatRatio(r.result.Metrics.Sharpe)))
	sb.WriteString("\n")

	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	return sb.String()
}

// GenerateTradeLog creates a detailed trade-by-trade log.
func (r *ReportGenerator) GenerateTradeLog() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("DETAILED TRADE LOG\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	if len(r.result.Trades) == 0 {
		sb.WriteString("No trades executed\n")
		return sb.String()
	}

	for i, trade := range r.result.Trades {
		sb.WriteString(fmt.Sprintf("Trade #%d: %s\n", i+1, trade.Instrument))
		sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Entry:       %s @ %s (qty: %d)\n",
			trade.EntryTs.Format("2006-01-02"), humanizeMoney(trade.EntryPrice.InexactFloat64()), trade.Quantity))
		sb.WriteString(fmt.Sprintf("Exit:        %s @ %s\n",
			trade.ExitTs.Format("2006-01-02"), humanizeMoney(trade.ExitPrice.InexactFloat64())))
		sb.WriteString(fmt.Sprintf("Held:        %s\n", formatDuration(trade.HoldDuration())))
		sb.WriteString(fmt.Sprintf("Realized P&L: %s (fees %s)\n",
			humanizeMoney(trade.RealizedPnL.InexactFloat64()), humanizeMoney(trade.FeesTotal.InexactFloat64())))
		if trade.IsWinning() {
			sb.WriteString("Result:      WIN\n")
		} else {
			sb.WriteString("Result:      LOSS\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// SaveToFile writes the console report and trade log to a timestamped
// file under outputDir.
func (r *ReportGenerator) SaveToFile(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	filename := fmt.Sprintf("backtest_%s.txt", time.Now().Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	var report strings.Builder
	report.WriteString(r.GenerateConsoleReport())
	report.WriteString("\n")
	report.WriteString(r.GenerateTradeLog())

	if err := os.WriteFile(path, []byte(report.String()), 0644); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	return nil
}

func humanizeMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s¥%s", sign, humanize.CommafWithDigits(v, 2))
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatRatio(v float64) string {
	if math.IsNaN(v) {
		return "undefined"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return d.Round(time.Minute).String()
}
