// Package topk precomputes, for every date in a score table, the K
// highest-scoring instruments and derives rebalance-date schedules.
package topk

import (
	"sort"
	"time"

	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Index is the immutable, precomputed mapping from date to its top-K
// instrument list, descending by score with ties broken lexicographically
// by instrument code.
type Index struct {
	k        int
	byDate   map[int64][]types.InstrumentCode
	datesAsc []time.Time
}

// Build precomputes the top-K list for every date present in the table.
// Memory footprint is O(dates * k).
func Build(table *scoretable.ScoreTable, k int) *Index {
	idx := &Index{
		k:      k,
		byDate: make(map[int64][]types.InstrumentCode),
	}
	for _, d := range table.Dates() {
		scores := table.ForDate(d)
		ranked := make([]scoretable.Score, len(scores))
		copy(ranked, scores)
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Value != ranked[j].Value {
				return ranked[i].Value > ranked[j].Value
			}
			return ranked[i].Instrument < ranked[j].Instrument
		})
		n := k
		if n > len(ranked) {
			n = len(ranked)
		}
		top := make([]types.InstrumentCode, n)
		for i := 0; i < n; i++ {
			top[i] = ranked[i].Instrument
		}
		idx.byDate[d.Unix()] = top
		idx.datesAsc = append(idx.datesAsc, d)
	}
	sort.Slice(idx.datesAsc, func(i, j int) bool { return idx.datesAsc[i].Before(idx.datesAsc[j]) })
	return idx
}

// TopKAt returns the cached top-K list for date, or an empty list if the
// date is absent from the underlying score table.
func (idx *Index) TopKAt(date time.Time) []types.InstrumentCode {
	return idx.byDate[types.NormalizeDate(date).Unix()]
}

// K returns the configured K.
func (idx *Index) K() int {
	return idx.k
}

// RebalanceDates returns the ordered subset of the index's dates falling
// within r that satisfy the cadence implied by period. DAY returns every
// date; WEEK returns the first date of each ISO calendar week; MONTH
// returns the first date of each calendar month. Pure and deterministic.
func (idx *Index) RebalanceDates(r types.DateRange, period types.Period) []time.Time {
	var out []time.Time
	var lastWeekYear, lastWeek int
	var lastMonthYear int
	var lastMonth time.Month
	sawWeek, sawMonth := false, false

	for _, d := range idx.datesAsc {
		if !r.Contains(d) {
			continue
		}
		switch period {
		case types.PeriodDay:
			out = append(out, d)
		case types.PeriodWeek:
			y, w := d.ISOWeek()
			if !sawWeek || y != lastWeekYear || w != lastWeek {
				out = append(out, d)
				lastWeekYear, lastWeek = y, w
				sawWeek = true
			}
		case types.PeriodMonth:
			y, m, _ := d.Date()
			if !sawMonth || y != lastMonthYear || m != lastMonth {
				out = append(out, d)
				lastMonthYear, lastMonth = y, m
				sawMonth = true
			}
		default:
			out = append(out, d)
		}
	}
	return out
}
