// Package report holds the error taxonomy shared by every pipeline stage and
// the collector that gathers per-trial diagnostics for end-of-run reporting.
package report

import "errors"

// Recoverable failures are isolated to one table, column or trial pair and
// end up as a Diagnostic. StructuralViolation aborts the call that hit it.
var (
	ErrMissingColumn        = errors.New("missing column")
	ErrUnresolvableIdentity = errors.New("unresolvable trial identity")
	ErrNoOffsetFound        = errors.New("no offset found")
	ErrEmptyPeakSet         = errors.New("empty peak set")
	ErrEstimatorFailure     = errors.New("estimator failure")
	ErrStructuralViolation  = errors.New("structural violation")
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindMissingColumn        Kind = "missing_column"
	KindUnresolvableIdentity Kind = "unresolvable_identity"
	KindNoOffsetFound        Kind = "no_offset_found"
	KindEmptyPeakSet         Kind = "empty_peak_set"
	KindEstimatorFailure     Kind = "estimator_failure"
	KindStructuralViolation  Kind = "structural_violation"
	KindInput                Kind = "input"
	KindOther                Kind = "other"
)

// KindOf maps an error onto the taxonomy using errors.Is.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrMissingColumn):
		return KindMissingColumn
	case errors.Is(err, ErrUnresolvableIdentity):
		return KindUnresolvableIdentity
	case errors.Is(err, ErrNoOffsetFound):
		return KindNoOffsetFound
	case errors.Is(err, ErrEmptyPeakSet):
		return KindEmptyPeakSet
	case errors.Is(err, ErrEstimatorFailure):
		return KindEstimatorFailure
	case errors.Is(err, ErrStructuralViolation):
		return KindStructuralViolation
	default:
		return KindOther
	}
}
