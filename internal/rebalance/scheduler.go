// Package rebalance maintains the held instrument set for the top_k
// strategy and emits entry/exit transitions at each rebalance date.
package rebalance

import (
	"sort"
	"time"

	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Transition is one BUY (entry) or SELL (exit) emitted at a rebalance
// date, before target weights are assigned.
type Transition struct {
	Instrument types.InstrumentCode
	IsEntry    bool // true=entry(BUY), false=exit(SELL)
}

// Scheduler tracks the held set across rebalance dates for the top_k
// strategy. It implements signal.HeldChecker so the Signal Adapter can
// classify top_k exits without duplicating held-set state.
type Scheduler struct {
	index           *topk.Index
	held            map[types.InstrumentCode]bool
	lastRebalanceAt time.Time
	hasRebalanced   bool
}

// NewScheduler constructs a Scheduler over a shared, immutable Top-K Index.
func NewScheduler(index *topk.Index) *Scheduler {
	return &Scheduler{
		index: index,
		held:  make(map[types.InstrumentCode]bool),
	}
}

// IsHeld reports whether instrument is in the current held set.
func (s *Scheduler) IsHeld(instrument types.InstrumentCode) bool {
	return s.held[instrument]
}

// Held returns a snapshot of the current held set, sorted by instrument
// code for deterministic iteration.
func (s *Scheduler) Held() []types.InstrumentCode {
	out := make([]types.InstrumentCode, 0, len(s.held))
	for i := range s.held {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Rebalance computes the held-set transition at date D:
//  1. new_set = TopKAt(D)
//  2. entries = new_set \ held, each an entry (BUY)
//  3. exits   = held \ new_set, each an exit (SELL)
//  4. held = new_set; last_rebalance_date = D
//
// The first rebalance of a run starts from an empty held set, so every
// member of the top-K list is an entry and no exits are emitted. Two
// consecutive rebalances with an identical top-K produce zero transitions.
func (s *Scheduler) Rebalance(date time.Time) []Transition {
	newSet := s.index.TopKAt(date)
	newMember := make(map[types.InstrumentCode]bool, len(newSet))
	for _, i := range newSet {
		newMember[i] = true
	}

	exits := make([]types.InstrumentCode, 0, len(s.held))
	for i := range s.held {
		if !newMember[i] {
			exits = append(exits, i)
		}
	}
	sort.Slice(exits, func(a, b int) bool { return exits[a] < exits[b] })

	var transitions []Transition
	for _, i := range newSet {
		if !s.held[i] {
			transitions = append(transitions, Transition{Instrument: i, IsEntry: true})
		}
	}
	for _, i := range exits {
		transitions = append(transitions, Transition{Instrument: i, IsEntry: false})
	}

	s.held = newMember
	s.lastRebalanceAt = date
	s.hasRebalanced = true
	return transitions
}

// LastRebalanceDate returns the most recent rebalance date, and false if
// no rebalance has occurred yet this run.
func (s *Scheduler) LastRebalanceDate() (time.Time, bool) {
	return s.lastRebalanceAt, s.hasRebalanced
}
