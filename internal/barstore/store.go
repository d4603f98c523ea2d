// Package barstore defines the contract the engine uses to pull bar
// data and index membership from an externally-owned data service, and
// provides a reference in-memory implementation for tests and local runs.
package barstore

import (
	"context"
	"sort"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Store is the Bar-Store contract (§6): a read-only source of OHLCV
// bars and index membership. Implementations are expected to be owned
// and operated outside this module; this package only defines the
// boundary and a reference implementation for tests.
type Store interface {
	// Bars returns bars for instrument over r at the given period,
	// ordered ascending by timestamp.
	Bars(ctx context.Context, instrument types.InstrumentCode, r types.DateRange, period types.Period) ([]types.Bar, error)

	// Instruments lists every instrument code traded on market
	// ("sh", "sz", "bj").
	Instruments(ctx context.Context, market string) ([]types.InstrumentCode, error)

	// Members lists the constituent instruments of a named index or
	// stock pool (e.g. "csi300") as of the store's current snapshot.
	Members(ctx context.Context, indexName string) ([]types.InstrumentCode, error)
}

// MemoryStore is an in-process Store backed by preloaded bars, useful
// for tests and for running the engine against a fixture dataset
// without a live data service.
type MemoryStore struct {
	bars        map[types.InstrumentCode][]types.Bar
	instruments map[string][]types.InstrumentCode
	members     map[string][]types.InstrumentCode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars:        make(map[types.InstrumentCode][]types.Bar),
		instruments: make(map[string][]types.InstrumentCode),
		members:     make(map[string][]types.InstrumentCode),
	}
}

// LoadBars registers bars for instrument, sorted ascending by timestamp.
func (s *MemoryStore) LoadBars(instrument types.InstrumentCode, bars []types.Bar) {
	sorted := make([]types.Bar, len(bars))
	copy(sorted, bars)
	sortBarsByTime(sorted)
	s.bars[instrument] = sorted
}

// SetMembers registers the constituents of a named index or pool.
func (s *MemoryStore) SetMembers(indexName string, members []types.InstrumentCode) {
	s.members[indexName] = members
}

// SetInstruments registers the instrument universe for a market.
func (s *MemoryStore) SetInstruments(market string, instruments []types.InstrumentCode) {
	s.instruments[market] = instruments
}

func (s *MemoryStore) Bars(ctx context.Context, instrument types.InstrumentCode, r types.DateRange, period types.Period) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := s.bars[instrument]
	out := make([]types.Bar, 0, len(all))
	for _, b := range all {
		if r.Contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) Instruments(ctx context.Context, market string) ([]types.InstrumentCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.instruments[market], nil
}

func (s *MemoryStore) Members(ctx context.Context, indexName string) ([]types.InstrumentCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.members[indexName], nil
}

func sortBarsByTime(bars []types.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
}
