// Package scoretable materializes and indexes the model-produced score
// artifact that drives the Signal Adapter and Top-K Index.
package scoretable

import (
	"sort"
	"time"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Score is one (date, instrument) → value observation produced by the
// model trainer. Confidence is optional and carried through unvalidated.
type Score struct {
	Date       time.Time
	Instrument types.InstrumentCode
	Value      float64
	Confidence float64
	HasConf    bool
}

// ScoreTable is the immutable, indexed materialization of a score
// artifact: every (date, instrument) pair appears at most once, with
// secondary indices ordered by date and by instrument.
type ScoreTable struct {
	byKey        map[tableKey]Score
	datesAsc     []time.Time
	byDate       map[int64][]Score // keyed by date.Unix(), each slice sorted by instrument
	byInstrument map[types.InstrumentCode][]Score
}

type tableKey struct {
	date       int64
	instrument types.InstrumentCode
}

// newScoreTable builds the by-date and by-instrument indices from a flat
// slice of rows in a single pass, as required by the loader contract:
// downstream hot paths must see an already-indexed structure.
func newScoreTable(rows []Score) *ScoreTable {
	t := &ScoreTable{
		byKey:        make(map[tableKey]Score, len(rows)),
		byDate:       make(map[int64][]Score),
		byInstrument: make(map[types.InstrumentCode][]Score),
	}
	dateSet := make(map[int64]time.Time)
	for _, r := range rows {
		d := types.NormalizeDate(r.Date)
		r.Date = d
		k := tableKey{date: d.Unix(), instrument: r.Instrument}
		t.byKey[k] = r
		t.byDate[k.date] = append(t.byDate[k.date], r)
		t.byInstrument[r.Instrument] = append(t.byInstrument[r.Instrument], r)
		dateSet[k.date] = d
	}
	t.datesAsc = make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		t.datesAsc = append(t.datesAsc, d)
	}
	sort.Slice(t.datesAsc, func(i, j int) bool { return t.datesAsc[i].Before(t.datesAsc[j]) })

	for _, rows := range t.byDate {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Instrument < rows[j].Instrument })
	}
	for _, rows := range t.byInstrument {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	return t
}

// At returns the score for (date, instrument) and whether it was present.
func (t *ScoreTable) At(date time.Time, instrument types.InstrumentCode) (Score, bool) {
	s, ok := t.byKey[tableKey{date: types.NormalizeDate(date).Unix(), instrument: instrument}]
	return s, ok
}

// ForDate returns all scores on the given date, ordered by instrument
// code ascending.
func (t *ScoreTable) ForDate(date time.Time) []Score {
	return t.byDate[types.NormalizeDate(date).Unix()]
}

// ForInstrument returns all scores for the given instrument, ordered by
// date ascending.
func (t *ScoreTable) ForInstrument(instrument types.InstrumentCode) []Score {
	return t.byInstrument[instrument]
}

// Dates returns every date present in the table, ascending.
func (t *ScoreTable) Dates() []time.Time {
	return t.datesAsc
}

// Len returns the total number of score rows in the table.
func (t *ScoreTable) Len() int {
	return len(t.byKey)
}

// Instruments returns every instrument appearing anywhere in the table,
// sorted ascending.
func (t *ScoreTable) Instruments() []types.InstrumentCode {
	out := make([]types.InstrumentCode, 0, len(t.byInstrument))
	for inst := range t.byInstrument {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
