package types

import (
	"fmt"
	"strings"
)

// InstrumentCode identifies an A-share instrument: a two-letter market
// prefix (sh/sz/bj) followed by a six-digit ticker number, e.g. "sh600519".
type InstrumentCode string

var validMarketPrefixes = map[string]bool{
	"sh": true,
	"sz": true,
	"bj": true,
}

// NewInstrumentCode normalizes and validates a raw instrument string.
// Input is lower-cased before validation so loaders need not pre-normalize.
func NewInstrumentCode(raw string) (InstrumentCode, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) != 8 {
		return "", fmt.Errorf("instrument code %q: want 8 characters, got %d", raw, len(s))
	}
	prefix, digits := s[:2], s[2:]
	if !validMarketPrefixes[prefix] {
		return "", fmt.Errorf("instrument code %q: unknown market prefix %q", raw, prefix)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("instrument code %q: non-numeric ticker %q", raw, digits)
		}
	}
	return InstrumentCode(s), nil
}

// Market returns the two-letter market prefix (sh, sz, or bj).
func (c InstrumentCode) Market() string {
	if len(c) < 2 {
		return ""
	}
	return string(c[:2])
}

// IsShanghai reports whether the instrument trades on the SH market,
// the only market that the transfer fee leg of the cost model applies to.
func (c InstrumentCode) IsShanghai() bool {
	return c.Market() == "sh"
}

func (c InstrumentCode) String() string {
	return string(c)
}
