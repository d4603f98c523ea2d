package backtest

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateConsoleReportIncludesKeyFields(t *testing.T) {
	result := sampleResult(t)
	report := NewReportGenerator(result).GenerateConsoleReport()

	for _, want := range []string{"BACKTEST RESULTS", "Top-K:", "Final Equity:", "Win Rate:", "Sharpe Ratio:"} {
		if !strings.Contains(report, want) {
			t.Errorf("console report missing %q", want)
		}
	}
}

func TestGenerateConsoleReportMarksCanceledRuns(t *testing.T) {
	result := sampleResult(t)
	result.Canceled = true
	report := NewReportGenerator(result).GenerateConsoleReport()
	if !strings.Contains(report, "CANCELED") {
		t.Error("expected a canceled report to mention CANCELED")
	}
}

func TestGenerateTradeLogListsEveryTrade(t *testing.T) {
	result := sampleResult(t)
	log := NewReportGenerator(result).GenerateTradeLog()
	if !strings.Contains(log, "Trade #1") {
		t.Error("trade log missing Trade #1")
	}
	if !strings.Contains(log, "WIN") {
		t.Error("expected the sample trade's positive P&L to be reported as a WIN")
	}
}

func TestGenerateTradeLogEmptyWhenNoTrades(t *testing.T) {
	result := sampleResult(t)
	result.Trades = nil
	log := NewReportGenerator(result).GenerateTradeLog()
	if !strings.Contains(log, "No trades executed") {
		t.Error("expected an explicit no-trades message")
	}
}

func TestSaveToFileWritesReport(t *testing.T) {
	dir := t.TempDir()
	result := sampleResult(t)
	if err := NewReportGenerator(result).SaveToFile(dir); err != nil {
		t.Fatalf("SaveToFile: unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one report file, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "BACKTEST RESULTS") {
		t.Error("saved report file missing expected content")
	}
}

func TestFormatRatioUndefinedOnNaN(t *testing.T) {
	if got := formatRatio(math.NaN()); got != "undefined" {
		t.Errorf("formatRatio(NaN) = %q, want %q", got, "undefined")
	}
	if got := formatRatio(1.5); got != "1.50" {
		t.Errorf("formatRatio(1.5) = %q, want %q", got, "1.50")
	}
}

func TestFormatDurationDaysVsMinutes(t *testing.T) {
	if got := formatDuration(48 * time.Hour); got != "2d" {
		t.Errorf("formatDuration(48h) = %q, want %q", got, "2d")
	}
	if got := formatDuration(90 * time.Minute); got != "1h30m0s" {
		t.Errorf("formatDuration(90m) = %q, want %q", got, "1h30m0s")
	}
}

func TestHumanizeMoneyHandlesNegative(t *testing.T) {
	got := humanizeMoney(-1234.5)
	if !strings.HasPrefix(got, "-¥") {
		t.Errorf("humanizeMoney(-1234.5) = %q, want a leading -¥", got)
	}
}

func TestFormatPct(t *testing.T) {
	if got := formatPct(0.1234); got != "12.34%" {
		t.Errorf("formatPct(0.1234) = %q, want 12.34%%", got)
	}
}
