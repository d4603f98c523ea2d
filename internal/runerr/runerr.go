// Package runerr defines the typed error taxonomy shared by every
// component of a backtest run (§7), so packages that need to report a
// configuration or execution defect don't have to import the engine
// package itself.
package runerr

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a run failure. Each kind maps to
// a distinct identifier surfaced to the caller, per the engine's error
// handling design: some kinds are locally recoverable (downgraded at
// the bar boundary), others propagate and abort the run.
type ErrorKind int

const (
	KindConfigInvalid ErrorKind = iota
	KindArtifactMissing
	KindArtifactCorrupt
	KindBarFetchFailed
	KindBarFetchTimeout
	KindBarDataInvalid
	KindCanceled
	KindNumericAnomaly
	KindInsufficientCash
	KindPolicyViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindArtifactMissing:
		return "ArtifactMissing"
	case KindArtifactCorrupt:
		return "ArtifactCorrupt"
	case KindBarFetchFailed:
		return "BarFetchFailed"
	case KindBarFetchTimeout:
		return "BarFetchTimeout"
	case KindBarDataInvalid:
		return "BarDataInvalid"
	case KindCanceled:
		return "Canceled"
	case KindNumericAnomaly:
		return "NumericAnomaly"
	case KindInsufficientCash:
		return "InsufficientCash"
	case KindPolicyViolation:
		return "PolicyViolation"
	default:
		return "Unknown"
	}
}

// Fatal reports whether this kind aborts the run when it reaches the
// caller. ConfigInvalid, ArtifactMissing/Corrupt, BarDataInvalid, and
// post-budget BarFetch* are the only kinds that propagate; everything
// else is downgraded to a local recovery at the bar boundary.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindConfigInvalid, KindArtifactMissing, KindArtifactCorrupt, KindBarDataInvalid, KindBarFetchFailed, KindBarFetchTimeout:
		return true
	default:
		return false
	}
}

// RunError is the typed error surfaced to a backtest caller. It always
// carries a Kind; Unwrap exposes the underlying cause where one exists.
type RunError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// New constructs a RunError of the given kind.
func New(kind ErrorKind, msg string, cause error) *RunError {
	return &RunError{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the ErrorKind from err, reporting ok=false if err (or
// anything it wraps) is not a *RunError.
func KindOf(err error) (ErrorKind, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// ErrCanceled is returned (wrapped in a RunError) when the run observes
// an external cancellation; the caller still receives the partial result.
var ErrCanceled = errors.New("backtest run canceled")
