package diffgraph

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/diffgraph/cluster"
	"github.com/hupe1980/diffgraph/kernel"
	"github.com/hupe1980/diffgraph/neighbors"
	"github.com/hupe1980/diffgraph/operator"
)

// Params is a read-only snapshot of the effective construction
// configuration of a graph.
type Params struct {
	Strategy       Strategy
	K              int
	Alpha          float64
	Bandwidth      kernel.BandwidthMode
	FixedBandwidth float64
	Symmetrize     kernel.SymmetrizeMode
	Normalization  operator.Normalization
	Landmarks      int
}

// constructionStrategy builds the base kernel for one strategy
// variant. The variant is fixed at construction and never switched.
type constructionStrategy interface {
	buildKernel(ctx context.Context) (mat.Matrix, error)
}

type exactStrategy struct {
	builder *kernel.Builder
}

func (s *exactStrategy) buildKernel(ctx context.Context) (mat.Matrix, error) {
	return s.builder.Exact(ctx)
}

type knnStrategy struct {
	builder *kernel.Builder
}

func (s *knnStrategy) buildKernel(ctx context.Context) (mat.Matrix, error) {
	return s.builder.KNN(ctx)
}

// Graph is a similarity graph over an immutable data matrix. All
// derived matrices are computed lazily on first access and cached for
// the lifetime of the graph; a different configuration requires
// constructing a new Graph.
//
// A Graph must not be shared across goroutines while accessors are
// still computing; once a matrix is cached it may be read freely.
type Graph struct {
	opts     options
	strategy Strategy
	data     *mat.Dense
	n, dim   int

	builder  *kernel.Builder
	strat    constructionStrategy
	searcher neighbors.Searcher
	reducer  *operator.Reducer

	// Compute-once slots; nil until first access.
	kernelMat mat.Matrix
	diffOp    mat.Matrix
	degrees   []float64
	reduction *operator.Reduction
}

// New constructs a graph over the rows of data. Configuration is
// validated before any neighbor query or kernel computation; the
// returned graph computes its matrices lazily.
//
// The data matrix is referenced, not copied, and must not be mutated
// for the lifetime of the graph.
func New(data *mat.Dense, optFns ...Option) (*Graph, error) {
	o := applyOptions(optFns)

	if data == nil {
		return nil, &ConfigurationError{Param: "data", Reason: "must not be nil"}
	}
	n, dim := data.Dims()
	if n == 0 || dim == 0 {
		return nil, &ConfigurationError{Param: "data", Reason: fmt.Sprintf("empty data matrix (%dx%d)", n, dim)}
	}
	if o.k < 1 {
		return nil, &ConfigurationError{Param: "K", Reason: fmt.Sprintf("must be positive, got %d", o.k)}
	}
	if o.k >= n {
		return nil, &ConfigurationError{Param: "K", Reason: fmt.Sprintf("k (%d) must be below the point count (%d)", o.k, n)}
	}
	if o.alpha <= 0 {
		return nil, &ConfigurationError{Param: "Alpha", Reason: fmt.Sprintf("must be positive, got %g", o.alpha)}
	}
	if o.bandwidth == kernel.BandwidthFixed && o.fixedBandwidth <= 0 {
		return nil, &ConfigurationError{Param: "FixedBandwidth", Reason: fmt.Sprintf("must be positive, got %g", o.fixedBandwidth)}
	}
	if o.landmarks != 0 && (o.landmarks < 1 || o.landmarks >= n) {
		return nil, &ConfigurationError{Param: "Landmarks", Reason: fmt.Sprintf("landmark count %d cannot compress %d points (need 1 <= landmarks < points)", o.landmarks, n)}
	}

	strategy, base, err := resolveStrategy(o, n)
	if err != nil {
		return nil, err
	}

	symmetrize := o.symmetrize
	if base == StrategyMNN {
		symmetrize = kernel.SymmetrizeMNN
	}
	if base == StrategyExact && o.exactSizeLimit > 0 && n > o.exactSizeLimit {
		return nil, &ConfigurationError{
			Param:  "Strategy",
			Reason: fmt.Sprintf("exact kernel over %d points exceeds the size limit %d: use a k-NN strategy or WithExactSizeLimit", n, o.exactSizeLimit),
		}
	}

	searcher := o.searcher
	if searcher == nil {
		searcher, err = neighbors.New(data, func(no *neighbors.Options) {
			no.Parallelism = o.parallelism
		})
		if err != nil {
			return nil, translateError(err)
		}
	}

	builder, err := kernel.NewBuilder(data, searcher, func(ko *kernel.Options) {
		ko.K = o.k
		ko.Alpha = o.alpha
		ko.Bandwidth = o.bandwidth
		ko.FixedBandwidth = o.fixedBandwidth
		ko.Symmetrize = symmetrize
		ko.ExactSizeLimit = o.exactSizeLimit
		ko.Parallelism = o.parallelism
		ko.Logger = o.logger.Logger
	})
	if err != nil {
		return nil, translateError(err)
	}

	g := &Graph{
		opts:     o,
		strategy: strategy,
		data:     data,
		n:        n,
		dim:      dim,
		builder:  builder,
		searcher: searcher,
	}

	switch base {
	case StrategyExact:
		g.strat = &exactStrategy{builder: builder}
	default:
		g.strat = &knnStrategy{builder: builder}
	}

	if strategy == StrategyLandmark {
		clusterer := o.clusterer
		if clusterer == nil {
			clusterer, err = cluster.NewKMeans(func(co *cluster.Options) {
				co.Seed = o.seed
			})
			if err != nil {
				return nil, translateError(err)
			}
		}
		g.reducer, err = operator.NewReducer(clusterer, o.landmarks, func(ro *operator.ReducerOptions) {
			ro.Normalization = o.normalization
			ro.Logger = o.logger.Logger
		})
		if err != nil {
			return nil, translateError(err)
		}
	}

	g.opts.logger.WithStrategy(strategy).WithSize(n, dim).Debug("graph constructed")

	return g, nil
}

// resolveStrategy picks the construction strategy and the base kernel
// variant it builds on.
func resolveStrategy(o options, n int) (strategy, base Strategy, err error) {
	switch {
	case o.strategySet && o.strategy == StrategyLandmark:
		if o.landmarks < 1 {
			return 0, 0, &ConfigurationError{Param: "Landmarks", Reason: "landmark strategy requires WithLandmarks"}
		}
		return StrategyLandmark, StrategyKNN, nil
	case o.strategySet:
		if o.landmarks > 0 && n > o.landmarks {
			// Explicit base strategy, compressed through landmarks.
			return StrategyLandmark, o.strategy, nil
		}
		return o.strategy, o.strategy, nil
	case o.landmarks > 0 && n > o.landmarks:
		return StrategyLandmark, StrategyKNN, nil
	default:
		return StrategyKNN, StrategyKNN, nil
	}
}

// Params returns the effective construction parameters.
func (g *Graph) Params() Params {
	return Params{
		Strategy:       g.strategy,
		K:              g.opts.k,
		Alpha:          g.opts.alpha,
		Bandwidth:      g.opts.bandwidth,
		FixedBandwidth: g.opts.fixedBandwidth,
		Symmetrize:     g.opts.symmetrize,
		Normalization:  g.opts.normalization,
		Landmarks:      g.opts.landmarks,
	}
}

// Len returns the number of points in the graph.
func (g *Graph) Len() int { return g.n }

// Dim returns the feature dimension of the graph's data.
func (g *Graph) Dim() int { return g.dim }

// Data returns the data matrix the graph was built over. Callers must
// not mutate it.
func (g *Graph) Data() *mat.Dense { return g.data }

// Kernel returns the affinity matrix, computing it on first access and
// caching it for the lifetime of the graph. The returned matrix is
// shared; callers must treat it as read-only.
func (g *Graph) Kernel(ctx context.Context) (mat.Matrix, error) {
	if g.kernelMat != nil {
		return g.kernelMat, nil
	}

	start := time.Now()
	k, err := g.strat.buildKernel(ctx)
	g.opts.metrics.RecordKernelBuild(g.n, time.Since(start), err)
	g.opts.logger.LogKernelBuild(g.strategy, g.n, time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}

	g.checkKernelHealth(k)
	g.kernelMat = k

	return g.kernelMat, nil
}

// checkKernelHealth warns about kernels that violate the construction
// guarantees without failing the build.
func (g *Graph) checkKernelHealth(k mat.Matrix) {
	r, _ := k.Dims()
	for i := 0; i < r; i++ {
		if k.At(i, i) == 0 {
			g.opts.logger.Warn("kernel has a zero diagonal entry", "row", i)
			return
		}
	}

	if g.opts.symmetrize == kernel.SymmetrizeNone {
		return
	}
	if dense, ok := k.(*mat.Dense); ok {
		for i := 0; i < r; i++ {
			for j := i + 1; j < r; j++ {
				if diff := dense.At(i, j) - dense.At(j, i); diff > 1e-5 || diff < -1e-5 {
					g.opts.logger.Warn("kernel should be symmetric", "row", i, "col", j)
					return
				}
			}
		}
	}
}

// DiffusionOperator returns the normalized diffusion operator,
// computing kernel and operator on first access and caching both.
func (g *Graph) DiffusionOperator(ctx context.Context) (mat.Matrix, error) {
	if g.diffOp != nil {
		return g.diffOp, nil
	}

	k, err := g.Kernel(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	op, degrees, err := operator.Normalize(k, g.opts.normalization)
	g.opts.metrics.RecordOperatorBuild(time.Since(start), err)
	g.opts.logger.LogOperatorBuild(g.opts.normalization.String(), time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}

	g.diffOp = op
	g.degrees = degrees

	return g.diffOp, nil
}

// DiffusionDegrees returns the kernel degree vector retained by the
// operator normalization. For the symmetric rule it lets callers
// recover the row-stochastic form algebraically without recomputing
// the kernel.
func (g *Graph) DiffusionDegrees(ctx context.Context) ([]float64, error) {
	if _, err := g.DiffusionOperator(ctx); err != nil {
		return nil, err
	}
	return g.degrees, nil
}

// landmarkReduction computes and caches the landmark compression.
func (g *Graph) landmarkReduction(ctx context.Context) (*operator.Reduction, error) {
	if g.strategy != StrategyLandmark {
		return nil, ErrNotLandmarkGraph
	}
	if g.reduction != nil {
		return g.reduction, nil
	}

	k, err := g.Kernel(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	red, err := g.reducer.Reduce(ctx, g.data, k)
	g.opts.metrics.RecordLandmarkBuild(g.opts.landmarks, time.Since(start), err)
	g.opts.logger.LogLandmarkBuild(g.opts.landmarks, time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}

	g.reduction = red

	return g.reduction, nil
}

// LandmarkOperator returns the compressed landmark-to-landmark
// operator. It is only available on graphs built with the landmark
// strategy; other graphs return ErrNotLandmarkGraph.
func (g *Graph) LandmarkOperator(ctx context.Context) (*mat.Dense, error) {
	red, err := g.landmarkReduction(ctx)
	if err != nil {
		return nil, err
	}
	return red.Op, nil
}

// Transitions returns the row-stochastic interpolation matrix mapping
// full-resolution points into landmark space.
func (g *Graph) Transitions(ctx context.Context) (*mat.Dense, error) {
	red, err := g.landmarkReduction(ctx)
	if err != nil {
		return nil, err
	}
	return red.Transitions, nil
}

// Clusters returns the landmark assignment of every point.
func (g *Graph) Clusters(ctx context.Context) ([]int, error) {
	red, err := g.landmarkReduction(ctx)
	if err != nil {
		return nil, err
	}
	return red.Labels, nil
}

// ExtendToNewPoints builds row-stochastic transition rows from new
// out-of-sample points into the graph: one row per point of y, over
// the original points (or over the landmarks for landmark graphs).
// The recorded kernel bandwidth policy is reused so the new weights
// stay commensurable with the original graph.
func (g *Graph) ExtendToNewPoints(ctx context.Context, y *mat.Dense) (*mat.Dense, error) {
	if y == nil {
		return nil, &ConfigurationError{Param: "y", Reason: "must not be nil"}
	}
	ny, yd := y.Dims()
	if ny == 0 || yd != g.dim {
		return nil, &ConfigurationError{Param: "y", Reason: fmt.Sprintf("expected shape (n, %d), got (%d, %d)", g.dim, ny, yd)}
	}

	// The kernel must exist first so the bandwidth policy is recorded.
	if _, err := g.Kernel(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := g.extend(ctx, y)
	g.opts.metrics.RecordExtension(ny, time.Since(start), err)
	g.opts.logger.LogExtension(ny, time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}

	return out, nil
}

func (g *Graph) extend(ctx context.Context, y *mat.Dense) (*mat.Dense, error) {
	rows, err := g.builder.ToData(ctx, y)
	if err != nil {
		return nil, err
	}

	transitions, err := operator.RowNormalize(rows)
	if err != nil {
		return nil, err
	}

	if g.strategy == StrategyLandmark {
		red, err := g.landmarkReduction(ctx)
		if err != nil {
			return nil, err
		}
		return red.Extend(transitions), nil
	}

	ny, _ := y.Dims()
	out := mat.NewDense(ny, g.n, nil)
	out.Copy(transitions)
	return out, nil
}

// Interpolate maps a per-point transform (one row per graph point, or
// per landmark for landmark graphs) through transition rows produced
// by ExtendToNewPoints: out = transitions · transform.
func (g *Graph) Interpolate(transform *mat.Dense, transitions *mat.Dense) (*mat.Dense, error) {
	if transform == nil || transitions == nil {
		return nil, &ConfigurationError{Param: "transform", Reason: "transform and transitions must not be nil"}
	}
	_, tc := transitions.Dims()
	tr, _ := transform.Dims()
	if tc != tr {
		return nil, &ConfigurationError{Param: "transform", Reason: fmt.Sprintf("transitions columns (%d) must match transform rows (%d)", tc, tr)}
	}

	ny, _ := transitions.Dims()
	_, fc := transform.Dims()
	out := mat.NewDense(ny, fc, nil)
	out.Mul(transitions, transform)
	return out, nil
}
