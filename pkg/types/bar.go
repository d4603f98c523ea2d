package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV observation for one instrument. Bars are produced
// by the Bar Store and never mutated once constructed.
type Bar struct {
	Instrument InstrumentCode
	Timestamp  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Amount     decimal.Decimal
}

// Validate checks the OHLC invariant: high is at least max(open, close)
// and low is at most min(open, close), and volume is non-negative. A
// violation here is fatal for a run (BarDataInvalid).
func (b Bar) Validate() error {
	maxOC := decimal.Max(b.Open, b.Close)
	minOC := decimal.Min(b.Open, b.Close)
	if b.High.LessThan(maxOC) {
		return fmt.Errorf("bar %s %s: high %s below max(open,close) %s", b.Instrument, b.Timestamp.Format(time.RFC3339), b.High, maxOC)
	}
	if b.Low.GreaterThan(minOC) {
		return fmt.Errorf("bar %s %s: low %s above min(open,close) %s", b.Instrument, b.Timestamp.Format(time.RFC3339), b.Low, minOC)
	}
	if b.Volume.IsNegative() {
		return fmt.Errorf("bar %s %s: negative volume %s", b.Instrument, b.Timestamp.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Date returns the normalized calendar date of the bar's timestamp, used
// to align bars against score-table dates.
func (b Bar) Date() time.Time {
	return NormalizeDate(b.Timestamp)
}
