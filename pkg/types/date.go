package types

import (
	"fmt"
	"time"
)

// NormalizeDate strips any time-of-day component from t, returning a
// UTC midnight instant. Score dates and bar-to-score comparisons are
// always made on normalized dates, never on wall-clock timestamps.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive, immutable span of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes start and end to calendar dates and validates
// that start does not fall after end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("date range: start %s after end %s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return r, nil
}

// Contains reports whether the normalized date of t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := NormalizeDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Period identifies the bar granularity or rebalance cadence requested
// from the Bar Store and the Top-K Index respectively.
type Period int

const (
	PeriodDay Period = iota
	PeriodWeek
	PeriodMonth
	PeriodMin1
	PeriodMin5
	PeriodMin15
	PeriodMin30
	PeriodMin60
)

func (p Period) String() string {
	switch p {
	case PeriodDay:
		return "DAY"
	case PeriodWeek:
		return "WEEK"
	case PeriodMonth:
		return "MONTH"
	case PeriodMin1:
		return "MIN1"
	case PeriodMin5:
		return "MIN5"
	case PeriodMin15:
		return "MIN15"
	case PeriodMin30:
		return "MIN30"
	case PeriodMin60:
		return "MIN60"
	default:
		return "UNKNOWN"
	}
}

// ParsePeriod parses the textual period names used in config and CLI flags.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "DAY":
		return PeriodDay, nil
	case "WEEK":
		return PeriodWeek, nil
	case "MONTH":
		return PeriodMonth, nil
	case "MIN1":
		return PeriodMin1, nil
	case "MIN5":
		return PeriodMin5, nil
	case "MIN15":
		return PeriodMin15, nil
	case "MIN30":
		return PeriodMin30, nil
	case "MIN60":
		return PeriodMin60, nil
	default:
		return 0, fmt.Errorf("unknown period %q", s)
	}
}
