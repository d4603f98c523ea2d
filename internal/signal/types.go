// Package signal converts a score table and a per-instrument bar stream
// into trading signals suitable for consumption by the backtest engine.
package signal

import (
	"time"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Kind is the action a TradingSignal recommends.
type Kind int

const (
	Hold Kind = iota
	Buy
	Sell
)

func (k Kind) String() string {
	switch k {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Strength bands the magnitude of the score that produced a BUY/SELL.
type Strength int

const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Medium:
		return "MEDIUM"
	case Strong:
		return "STRONG"
	default:
		return "WEAK"
	}
}

// TradingSignal is one adapter decision for one instrument at one bar
// timestamp. Kind=Hold carries no tradable effect.
type TradingSignal struct {
	Instrument types.InstrumentCode
	Timestamp  time.Time
	Kind       Kind
	Strength   Strength
	Score      float64
}

// SignalBatch is an ordered collection of signals sharing an aggregate
// date, with strictly non-decreasing timestamps.
type SignalBatch struct {
	Date    time.Time
	Signals []TradingSignal
}
