package operator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/diffgraph/cluster"
)

// ErrInvalidLandmarkCount indicates a landmark count that cannot
// genuinely compress the graph.
type ErrInvalidLandmarkCount struct {
	Requested int
	Points    int
}

func (e *ErrInvalidLandmarkCount) Error() string {
	return fmt.Sprintf("invalid landmark count: %d landmarks for %d points (need 1 <= landmarks < points)", e.Requested, e.Points)
}

// ReducerOptions contains configuration options for landmark
// reduction.
type ReducerOptions struct {
	// Normalization is the rule applied to the aggregated landmark
	// operator; it should match the rule used for the full diffusion
	// operator so the two stay algebraically consistent.
	Normalization Normalization

	// Logger receives reduction debug output. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// DefaultReducerOptions contains the default configuration options for
// landmark reduction.
var DefaultReducerOptions = ReducerOptions{
	Normalization: NormalizationRow,
}

// Reducer compresses a graph to a small set of landmarks: points are
// partitioned by the clustering provider and the kernel is aggregated
// through the cluster memberships.
type Reducer struct {
	provider  cluster.Provider
	nLandmark int
	opts      ReducerOptions
}

// NewReducer creates a landmark reducer producing nLandmark landmarks.
func NewReducer(provider cluster.Provider, nLandmark int, optFns ...func(o *ReducerOptions)) (*Reducer, error) {
	opts := DefaultReducerOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if provider == nil {
		return nil, fmt.Errorf("operator: clustering provider must not be nil")
	}
	if nLandmark < 1 {
		return nil, &ErrInvalidLandmarkCount{Requested: nLandmark, Points: 0}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reducer{
		provider:  provider,
		nLandmark: nLandmark,
		opts:      opts,
	}, nil
}

// Reduction is the compressed landmark representation of a graph.
type Reduction struct {
	// Labels assigns every original point to one landmark.
	Labels []int

	// Landmarks is the landmark count L.
	Landmarks int

	// Transitions is the N×L row-stochastic interpolation matrix:
	// row i distributes point i's kernel mass across landmarks.
	Transitions *mat.Dense

	// Op is the L×L normalized landmark-to-landmark operator.
	Op *mat.Dense

	// Degrees holds the degree vector of the aggregated landmark
	// kernel (divisors for row normalization, degrees for symmetric).
	Degrees []float64
}

// Reduce partitions the rows of data into landmarks and aggregates the
// kernel through the memberships: with indicator membership matrix M,
// the landmark kernel is Mᵀ·K·M, normalized by the configured rule.
func (r *Reducer) Reduce(ctx context.Context, data *mat.Dense, k mat.Matrix) (*Reduction, error) {
	n, _ := k.Dims()
	if r.nLandmark >= n {
		return nil, &ErrInvalidLandmarkCount{Requested: r.nLandmark, Points: n}
	}

	labels, err := r.provider.Cluster(ctx, data, r.nLandmark)
	if err != nil {
		return nil, err
	}
	if len(labels) != n {
		return nil, fmt.Errorf("operator: clustering provider returned %d labels for %d points", len(labels), n)
	}
	for i, c := range labels {
		if c < 0 || c >= r.nLandmark {
			return nil, fmt.Errorf("operator: clustering provider returned out-of-range label %d for point %d", c, i)
		}
	}

	l := r.nLandmark
	r.opts.Logger.Debug("landmark reduction", "points", n, "landmarks", l, "normalization", r.opts.Normalization.String())

	// pnm[i][c] = kernel mass from point i into cluster c;
	// agg = Mᵀ·K·M aggregated landmark kernel.
	pnm := mat.NewDense(n, l, nil)
	agg := mat.NewDense(l, l, nil)
	forEachNonZero(k, func(i, j int, v float64) {
		cj := labels[j]
		pnm.Set(i, cj, pnm.At(i, cj)+v)
		agg.Set(labels[i], cj, agg.At(labels[i], cj)+v)
	})

	transitions, err := RowNormalize(pnm)
	if err != nil {
		return nil, err
	}

	op, degrees, err := Normalize(agg, r.opts.Normalization)
	if err != nil {
		return nil, err
	}

	return &Reduction{
		Labels:      labels,
		Landmarks:   l,
		Transitions: transitions.(*mat.Dense),
		Op:          op.(*mat.Dense),
		Degrees:     degrees,
	}, nil
}

// Extend maps row-stochastic transitions from new points into
// reference space (N_y×N) through the landmark memberships, yielding
// N_y×L rows over landmark space. Rows stay row-stochastic.
func (red *Reduction) Extend(transitions mat.Matrix) *mat.Dense {
	ny, _ := transitions.Dims()
	out := mat.NewDense(ny, red.Landmarks, nil)
	out.Mul(transitions, red.Transitions)
	return out
}
