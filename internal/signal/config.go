package signal

import (
	"github.com/bikeshrana/ashare-backtest-go/internal/runerr"
)

// Strategy selects which scoring rule the Signal Adapter applies.
type Strategy string

const (
	StrategyThreshold  Strategy = "threshold"
	StrategyTopK       Strategy = "top_k"
	StrategyPercentile Strategy = "percentile"
)

// Config configures one Signal Adapter. StrengthBandUnit has no default:
// an unset (zero) value is a configuration error, since the spec leaves
// the band width unspecified rather than implying a safe default.
type Config struct {
	Strategy Strategy

	// threshold strategy
	BuyThreshold  float64
	SellThreshold float64

	// percentile strategy; Percentile is P in "Pth percentile" (50, 100).
	Percentile float64

	// StrengthBandUnit is the unit x in the |score| banding rule:
	// |s| < x -> WEAK, x <= |s| < 2x -> MEDIUM, 2x <= |s| -> STRONG.
	StrengthBandUnit float64
}

// Validate checks that the configuration is complete and internally
// consistent for the selected strategy, returning a runerr.RunError of
// kind ConfigInvalid on any defect.
func (c Config) Validate() error {
	if c.StrengthBandUnit <= 0 {
		return runerr.New(runerr.KindConfigInvalid, "strength_band_unit must be a positive number; it has no default", nil)
	}
	switch c.Strategy {
	case StrategyThreshold:
		if c.BuyThreshold <= c.SellThreshold {
			return runerr.New(runerr.KindConfigInvalid, "buy_threshold must exceed sell_threshold", nil)
		}
	case StrategyTopK:
		// no additional fields required; Top-K membership comes from the shared index.
	case StrategyPercentile:
		if c.Percentile <= 50 || c.Percentile >= 100 {
			return runerr.New(runerr.KindConfigInvalid, "percentile must be in (50, 100)", nil)
		}
	default:
		return runerr.New(runerr.KindConfigInvalid, "unknown signal strategy: "+string(c.Strategy), nil)
	}
	return nil
}

// classifyStrength bands |score| into WEAK/MEDIUM/STRONG using the
// configured unit x: |s|<x -> WEAK, x<=|s|<2x -> MEDIUM, 2x<=|s| -> STRONG.
func classifyStrength(score, unit float64) Strength {
	abs := score
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 2*unit:
		return Strong
	case abs >= unit:
		return Medium
	default:
		return Weak
	}
}
