package backtest

import (
	"context"
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

func optimizerFixture(t *testing.T) (*scoretable.ScoreTable, *topk.Index, barstore.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scores.csv")
	content := "date,instrument,score\n2024-01-01,sh600519,0.5\n2024-01-02,sh600519,-0.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	table, err := scoretable.Load(path)
	if err != nil {
		t.Fatalf("scoretable.Load: %v", err)
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := barstore.NewMemoryStore()
	store.LoadBars("sh600519", dailyBars("sh600519", start, []float64{10, 10.2, 9.8, 9.5}))
	index := topk.Build(table, 1)
	return table, index, store
}

func TestGenerateParameterRangeFloat(t *testing.T) {
	r := GenerateParameterRangeFloat("buy_threshold", 0.1, 0.3, 0.1)
	want := []float64{0.1, 0.2, 0.3}
	if len(r.Values) != len(want) {
		t.Fatalf("Values = %v, want %v", r.Values, want)
	}
	for i := range want {
		if diff := r.Values[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Values[%d] = %v, want %v", i, r.Values[i], want[i])
		}
	}
}

func TestGenerateParameterRangeValues(t *testing.T) {
	r := GenerateParameterRangeValues("percentile", 0.5, 0.75, 0.9)
	if len(r.Values) != 3 || r.Values[1] != 0.75 {
		t.Errorf("Values = %v, want [0.5 0.75 0.9]", r.Values)
	}
}

func TestOptimizerOptimizeRanksResultsByMetric(t *testing.T) {
	table, index, store := optimizerFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	dr, err := types.NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}

	backCfg := DefaultConfig()
	backCfg.DateRange = dr
	backCfg.InitialCapital = decimal.NewFromInt(1000000)
	backCfg.TopK = 1

	sigCfg := signal.Config{Strategy: signal.StrategyThreshold, StrengthBandUnit: 0.1}

	optConfig := &OptimizationConfig{
		BacktestConfig: &backCfg,
		SignalConfig:   &sigCfg,
		ParameterRanges: []ParameterRange{
			GenerateParameterRangeValues("buy_threshold", 0.1, 0.6),
			GenerateParameterRangeValues("sell_threshold", -0.6, -0.1),
		},
		OptimizationMetric: "total_return",
		Workers:            2,
	}

	optimizer := NewOptimizer(optConfig, table, index, store, nil, zerolog.Nop())
	results, err := optimizer.Optimize(context.Background(), []types.InstrumentCode{"sh600519"})
	if err != nil {
		t.Fatalf("Optimize: unexpected error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Optimize returned %d results, want 4 (2x2 grid)", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].MetricValue < results[i].MetricValue {
			t.Errorf("results not sorted descending by MetricValue at index %d", i)
		}
		if results[i-1].Rank != i {
			t.Errorf("Rank at index %d = %d, want %d", i-1, results[i-1].Rank, i)
		}
	}
}

func TestOptimizerOptimizeRespectsMaxCombinations(t *testing.T) {
	table, index, store := optimizerFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	dr, err := types.NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	backCfg := DefaultConfig()
	backCfg.DateRange = dr
	backCfg.InitialCapital = decimal.NewFromInt(1000000)
	backCfg.TopK = 1
	sigCfg := signal.Config{Strategy: signal.StrategyThreshold, StrengthBandUnit: 0.1}

	optConfig := &OptimizationConfig{
		BacktestConfig: &backCfg,
		SignalConfig:   &sigCfg,
		ParameterRanges: []ParameterRange{
			GenerateParameterRangeValues("buy_threshold", 0.1, 0.2, 0.3),
			GenerateParameterRangeValues("sell_threshold", -0.3, -0.2, -0.1),
		},
		OptimizationMetric: "sharpe",
		Workers:            2,
		MaxCombinations:    3,
	}

	optimizer := NewOptimizer(optConfig, table, index, store, nil, zerolog.Nop())
	results, err := optimizer.Optimize(context.Background(), []types.InstrumentCode{"sh600519"})
	if err != nil {
		t.Fatalf("Optimize: unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Optimize returned %d results, want 3 (MaxCombinations cap)", len(results))
	}
}

func TestPrintTopResultsFormatsParameters(t *testing.T) {
	results := []*OptimizationResult{
		{Parameters: ParameterSet{"buy_threshold": 0.2}, MetricValue: 1.5, Rank: 1},
		{Parameters: ParameterSet{"buy_threshold": 0.1}, MetricValue: 0.5, Rank: 2},
	}
	out := PrintTopResults(results, 1)
	if !strings.Contains(out, "Rank #1") {
		t.Error("expected output to include Rank #1")
	}
	if strings.Contains(out, "Rank #2") {
		t.Error("expected output truncated to topN=1, but found Rank #2")
	}
}
