package diffgraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/diffgraph/cluster"
	"github.com/hupe1980/diffgraph/kernel"
	"github.com/hupe1980/diffgraph/neighbors"
	"github.com/hupe1980/diffgraph/operator"
)

var (
	// ErrNotLandmarkGraph is returned by landmark accessors on graphs
	// built without the landmark strategy.
	ErrNotLandmarkGraph = errors.New("graph was not built with the landmark strategy")
)

// ConfigurationError indicates invalid or contradictory construction
// parameters. It is raised before any expensive computation starts.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type ConfigurationError struct {
	Param  string
	Reason string
	cause  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Param, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

// InsufficientDataError indicates that the data set cannot satisfy the
// requested neighbor or landmark counts.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type InsufficientDataError struct {
	Need  int
	Have  int
	cause error
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d points, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Unwrap() error { return e.cause }

// DegenerateRowError indicates a kernel row summing to zero, which
// signals disconnected or malformed input rather than an expected edge
// case.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type DegenerateRowError struct {
	Row   int
	cause error
}

func (e *DegenerateRowError) Error() string {
	return fmt.Sprintf("degenerate kernel row %d: row sum is zero", e.Row)
}

func (e *DegenerateRowError) Unwrap() error { return e.cause }

// translateError unifies subsystem errors into the package taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var eid *neighbors.ErrInsufficientData
	if errors.As(err, &eid) {
		return &InsufficientDataError{Need: eid.Need, Have: eid.Have, cause: err}
	}

	var edm *neighbors.ErrDimensionMismatch
	if errors.As(err, &edm) {
		return &ConfigurationError{
			Param:  "data",
			Reason: fmt.Sprintf("dimension mismatch: expected %d, got %d", edm.Expected, edm.Actual),
			cause:  err,
		}
	}

	var eio *kernel.ErrInvalidOption
	if errors.As(err, &eio) {
		return &ConfigurationError{Param: eio.Option, Reason: eio.Reason, cause: err}
	}

	var esl *kernel.ErrExactSizeLimit
	if errors.As(err, &esl) {
		return &ConfigurationError{
			Param:  "Strategy",
			Reason: esl.Error(),
			cause:  err,
		}
	}

	var eic *cluster.ErrInvalidClusterCount
	if errors.As(err, &eic) {
		return &ConfigurationError{
			Param:  "Landmarks",
			Reason: eic.Error(),
			cause:  err,
		}
	}

	var eil *operator.ErrInvalidLandmarkCount
	if errors.As(err, &eil) {
		return &ConfigurationError{
			Param:  "Landmarks",
			Reason: eil.Error(),
			cause:  err,
		}
	}

	var edr *operator.ErrDegenerateRow
	if errors.As(err, &edr) {
		return &DegenerateRowError{Row: edr.Row, cause: err}
	}

	return err
}
