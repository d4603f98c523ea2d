package backtest

import (
	"github.com/bikeshrana/ashare-backtest-go/internal/runerr"
)

// The error taxonomy lives in package runerr so that other per-run
// components (the signal adapter's config validation, in particular)
// can construct typed errors without importing the engine package
// itself. These aliases let the rest of this package keep using the
// unqualified names.
type ErrorKind = runerr.ErrorKind

const (
	KindConfigInvalid    = runerr.KindConfigInvalid
	KindArtifactMissing  = runerr.KindArtifactMissing
	KindArtifactCorrupt  = runerr.KindArtifactCorrupt
	KindBarFetchFailed   = runerr.KindBarFetchFailed
	KindBarFetchTimeout  = runerr.KindBarFetchTimeout
	KindBarDataInvalid   = runerr.KindBarDataInvalid
	KindCanceled         = runerr.KindCanceled
	KindNumericAnomaly   = runerr.KindNumericAnomaly
	KindInsufficientCash = runerr.KindInsufficientCash
	KindPolicyViolation  = runerr.KindPolicyViolation
)

type RunError = runerr.RunError

var (
	NewRunError = runerr.New
	KindOf      = runerr.KindOf
	ErrCanceled = runerr.ErrCanceled
)
