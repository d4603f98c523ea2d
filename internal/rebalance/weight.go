package rebalance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// WeightPolicy selects how target position weights are assigned across
// the held set.
type WeightPolicy string

const (
	PolicyEqualWeight   WeightPolicy = "equal_weight"
	PolicyScoreWeighted WeightPolicy = "score_weighted"
)

// TargetWeights computes the target allocation fraction for every
// instrument in held, under policy, capped at maxPositionPct of equity.
// Any fraction trimmed by the cap is left as cash rather than
// redistributed, per the engine's no-leverage invariant. Equal-weight
// sizing divides by topK, the configured top-K size, not len(held): a
// rebalance date with fewer scored instruments than topK still allocates
// each held position only its 1/topK share, leaving the remainder as cash.
func TargetWeights(held []types.InstrumentCode, table *scoretable.ScoreTable, date time.Time, policy WeightPolicy, maxPositionPct decimal.Decimal, topK int) map[types.InstrumentCode]decimal.Decimal {
	out := make(map[types.InstrumentCode]decimal.Decimal, len(held))
	if len(held) == 0 {
		return out
	}

	switch policy {
	case PolicyScoreWeighted:
		scores := make(map[types.InstrumentCode]float64, len(held))
		for _, i := range held {
			if s, ok := table.At(date, i); ok {
				scores[i] = s.Value
			}
		}
		weights := softmax(held, scores)
		for i, w := range weights {
			out[i] = capWeight(decimal.NewFromFloat(w), maxPositionPct)
		}
	default: // PolicyEqualWeight
		k := topK
		if k < 1 {
			k = len(held)
		}
		equal := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(k)))
		for _, i := range held {
			out[i] = capWeight(equal, maxPositionPct)
		}
	}
	return out
}

func capWeight(w, maxPositionPct decimal.Decimal) decimal.Decimal {
	if w.GreaterThan(maxPositionPct) {
		return maxPositionPct
	}
	return w
}

// softmax converts raw scores into a probability-simplex weight per
// instrument; instruments with no score on the date get zero weight.
func softmax(held []types.InstrumentCode, scores map[types.InstrumentCode]float64) map[types.InstrumentCode]float64 {
	maxScore := math.Inf(-1)
	for _, i := range held {
		if s, ok := scores[i]; ok && s > maxScore {
			maxScore = s
		}
	}
	sum := 0.0
	exp := make(map[types.InstrumentCode]float64, len(held))
	for _, i := range held {
		s, ok := scores[i]
		if !ok {
			exp[i] = 0
			continue
		}
		e := math.Exp(s - maxScore)
		exp[i] = e
		sum += e
	}
	out := make(map[types.InstrumentCode]float64, len(held))
	if sum == 0 {
		return out
	}
	for i, e := range exp {
		out[i] = e / sum
	}
	return out
}
