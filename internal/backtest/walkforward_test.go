package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/internal/barstore"
	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

func walkForwardFixture(t *testing.T, days int) (*scoretable.ScoreTable, *topk.Index, barstore.Store, time.Time) {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var sb strings.Builder
	sb.WriteString("date,instrument,score\n")
	closes := make([]float64, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		score := 0.5
		if i%2 == 1 {
			score = -0.5
		}
		sb.WriteString(fmt.Sprintf("%s,sh600519,%.1f\n", date, score))
		closes[i] = 10 + float64(i%3)
	}

	path := filepath.Join(t.TempDir(), "scores.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	table, err := scoretable.Load(path)
	if err != nil {
		t.Fatalf("scoretable.Load: %v", err)
	}

	store := barstore.NewMemoryStore()
	store.LoadBars("sh600519", dailyBars("sh600519", start, closes))
	index := topk.Build(table, 1)
	return table, index, store, start
}

func TestWalkForwardAnalyzeProducesExpectedPeriodCount(t *testing.T) {
	const days = 20
	table, index, store, start := walkForwardFixture(t, days)
	end := start.AddDate(0, 0, days-1)

	dr, err := types.NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	backCfg := DefaultConfig()
	backCfg.DateRange = dr
	backCfg.InitialCapital = decimal.NewFromInt(1000000)
	backCfg.TopK = 1
	sigCfg := signal.Config{Strategy: signal.StrategyThreshold, StrengthBandUnit: 0.1}

	wfConfig := &WalkForwardConfig{
		BacktestConfig: &backCfg,
		SignalConfig:   &sigCfg,
		ParameterRanges: []ParameterRange{
			GenerateParameterRangeValues("buy_threshold", 0.2),
			GenerateParameterRangeValues("sell_threshold", -0.2),
		},
		OptimizationMetric: "total_return",
		InSampleDays:        5,
		OutOfSampleDays:     3,
		StepDays:            4,
		Workers:             2,
	}

	analyzer := NewWalkForwardAnalyzer(wfConfig, table, index, store, nil, zerolog.Nop())
	result, err := analyzer.Analyze(context.Background(), []types.InstrumentCode{"sh600519"})
	if err != nil {
		t.Fatalf("Analyze: unexpected error: %v", err)
	}
	if result.TotalPeriods == 0 {
		t.Fatal("expected at least one walk-forward period")
	}
	if len(result.Periods) != result.TotalPeriods {
		t.Errorf("len(Periods) = %d, want %d", len(result.Periods), result.TotalPeriods)
	}
	for i, p := range result.Periods {
		if !p.OutOfSampleStart.Equal(p.InSampleEnd) {
			t.Errorf("period %d: out-of-sample window should start where in-sample ends", i)
		}
		if p.OutOfSampleEnd.After(end) {
			t.Errorf("period %d: out-of-sample window extends past the configured date range", i)
		}
	}
}

func TestWalkForwardAnalyzeAnchoredKeepsInSampleStartFixed(t *testing.T) {
	const days = 20
	table, index, store, start := walkForwardFixture(t, days)
	end := start.AddDate(0, 0, days-1)

	dr, err := types.NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	backCfg := DefaultConfig()
	backCfg.DateRange = dr
	backCfg.InitialCapital = decimal.NewFromInt(1000000)
	backCfg.TopK = 1
	sigCfg := signal.Config{Strategy: signal.StrategyThreshold, StrengthBandUnit: 0.1}

	wfConfig := &WalkForwardConfig{
		BacktestConfig: &backCfg,
		SignalConfig:   &sigCfg,
		ParameterRanges: []ParameterRange{
			GenerateParameterRangeValues("buy_threshold", 0.2),
			GenerateParameterRangeValues("sell_threshold", -0.2),
		},
		OptimizationMetric: "total_return",
		InSampleDays:        5,
		OutOfSampleDays:     3,
		StepDays:            4,
		Anchored:            true,
		Workers:             2,
	}

	analyzer := NewWalkForwardAnalyzer(wfConfig, table, index, store, nil, zerolog.Nop())
	result, err := analyzer.Analyze(context.Background(), []types.InstrumentCode{"sh600519"})
	if err != nil {
		t.Fatalf("Analyze: unexpected error: %v", err)
	}
	for i, p := range result.Periods {
		if !p.InSampleStart.Equal(start) {
			t.Errorf("anchored period %d: InSampleStart = %v, want %v", i, p.InSampleStart, start)
		}
	}
}

func TestPrintWalkForwardResultsIncludesAggregates(t *testing.T) {
	result := &WalkForwardResult{
		Config: &WalkForwardConfig{InSampleDays: 5, OutOfSampleDays: 3, StepDays: 4, OptimizationMetric: "sharpe"},
		Periods: []WalkForwardPeriod{
			{PeriodNumber: 1, InSampleStart: time.Now(), InSampleEnd: time.Now(), OutOfSampleStart: time.Now(), OutOfSampleEnd: time.Now()},
		},
		TotalPeriods: 1,
	}
	out := PrintWalkForwardResults(result)
	for _, want := range []string{"WALK-FORWARD ANALYSIS RESULTS", "AGGREGATE RESULTS", "PERIOD DETAILS"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output", want)
		}
	}
}
