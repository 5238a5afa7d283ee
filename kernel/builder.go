package kernel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"

	"github.com/james-bowman/sparse"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/diffgraph/distance"
	"github.com/hupe1980/diffgraph/neighbors"
)

// ErrInvalidOption indicates an invalid or contradictory builder
// option.
type ErrInvalidOption struct {
	Option string
	Reason string
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Option, e.Reason)
}

// ErrExactSizeLimit indicates that an exact (full pairwise) kernel was
// requested for more points than the configured soft limit allows.
type ErrExactSizeLimit struct {
	N     int
	Limit int
}

func (e *ErrExactSizeLimit) Error() string {
	return fmt.Sprintf("exact kernel over %d points exceeds the size limit %d: use a k-NN strategy or raise the limit", e.N, e.Limit)
}

// Options contains configuration options for the kernel builder.
type Options struct {
	// K is the neighbor count for k-NN kernels and the adaptive
	// bandwidth rule.
	K int

	// Alpha is the order of the alpha-decaying kernel exp(-x^alpha).
	Alpha float64

	// Bandwidth selects the bandwidth rule.
	Bandwidth BandwidthMode

	// FixedBandwidth is the bandwidth used when Bandwidth is
	// BandwidthFixed. Must be > 0 in that mode.
	FixedBandwidth float64

	// Symmetrize selects how directed k-NN affinities become an
	// undirected kernel.
	Symmetrize SymmetrizeMode

	// ExactSizeLimit is the soft point-count limit for exact kernels.
	// Values <= 0 disable the check.
	ExactSizeLimit int

	// BandwidthFloor replaces bandwidths that underflow it. Underflow
	// is reported through the logger at Warn level and computation
	// proceeds.
	BandwidthFloor float64

	// Parallelism bounds concurrent pairwise-distance rows. Values < 1
	// default to GOMAXPROCS.
	Parallelism int

	// Logger receives construction debug output and numeric
	// instability warnings. Defaults to a discard logger.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the
// kernel builder.
var DefaultOptions = Options{
	K:              5,
	Alpha:          2,
	Bandwidth:      BandwidthAdaptive,
	Symmetrize:     SymmetrizeUnion,
	ExactSizeLimit: 2000,
	BandwidthFloor: 1e-12,
}

// Builder computes kernel matrices over a fixed reference data set.
// The bandwidth policy of the first build is recorded so that
// out-of-sample rows (ToData) stay commensurable with the original
// kernel.
type Builder struct {
	data     *mat.Dense
	searcher neighbors.Searcher
	n, dim   int
	opts     Options
	decay    Decay
	logger   *slog.Logger

	// Recorded by Exact: the single global bandwidth.
	globalBandwidth float64

	// Recorded by KNN: per-point adaptive bandwidths.
	bandwidths []float64
}

// NewBuilder creates a kernel builder over the rows of data. The
// searcher must answer queries against the same rows.
func NewBuilder(data *mat.Dense, searcher neighbors.Searcher, optFns ...func(o *Options)) (*Builder, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	n, dim := data.Dims()
	if n == 0 || dim == 0 {
		return nil, &ErrInvalidOption{Option: "data", Reason: fmt.Sprintf("empty data matrix (%dx%d)", n, dim)}
	}
	if opts.K < 1 {
		return nil, &ErrInvalidOption{Option: "K", Reason: fmt.Sprintf("must be positive, got %d", opts.K)}
	}
	if opts.K >= n {
		return nil, &ErrInvalidOption{Option: "K", Reason: fmt.Sprintf("must be below the point count %d, got %d", n, opts.K)}
	}
	if opts.Alpha <= 0 {
		return nil, &ErrInvalidOption{Option: "Alpha", Reason: fmt.Sprintf("must be positive, got %g", opts.Alpha)}
	}
	if opts.Bandwidth == BandwidthFixed && opts.FixedBandwidth <= 0 {
		return nil, &ErrInvalidOption{Option: "FixedBandwidth", Reason: fmt.Sprintf("must be positive in fixed mode, got %g", opts.FixedBandwidth)}
	}
	if !validSymmetrizeMode(opts.Symmetrize) {
		return nil, &ErrInvalidOption{Option: "Symmetrize", Reason: fmt.Sprintf("unknown mode %d", opts.Symmetrize)}
	}
	if opts.BandwidthFloor <= 0 {
		opts.BandwidthFloor = DefaultOptions.BandwidthFloor
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Builder{
		data:     data,
		searcher: searcher,
		n:        n,
		dim:      dim,
		opts:     opts,
		decay:    Decay{Alpha: opts.Alpha},
		logger:   opts.Logger,
	}, nil
}

// Exact computes the dense kernel from all pairwise distances with a
// single global bandwidth. It fails with ErrExactSizeLimit when the
// point count exceeds the configured soft limit.
func (b *Builder) Exact(ctx context.Context) (*mat.Dense, error) {
	if b.opts.ExactSizeLimit > 0 && b.n > b.opts.ExactSizeLimit {
		return nil, &ErrExactSizeLimit{N: b.n, Limit: b.opts.ExactSizeLimit}
	}

	dists, err := b.pairwiseDistances(ctx)
	if err != nil {
		return nil, err
	}

	bw := b.opts.FixedBandwidth
	if b.opts.Bandwidth == BandwidthAdaptive {
		bw = medianKthDistance(dists, b.opts.K)
	}
	bw = b.floorBandwidth(bw, 1)
	b.globalBandwidth = bw

	b.logger.Debug("exact kernel", "n", b.n, "bandwidth", bw, "alpha", b.opts.Alpha)

	k := mat.NewDense(b.n, b.n, nil)
	for i := 0; i < b.n; i++ {
		row := dists.RawRowView(i)
		for j := 0; j < b.n; j++ {
			k.Set(i, j, b.decay.Weight(row[j]/bw))
		}
	}

	return k, nil
}

// KNN computes the sparse k-NN kernel: per-point adaptive (or fixed)
// bandwidths, alpha-decay weights on the directed k edges, then the
// configured symmetrization.
func (b *Builder) KNN(ctx context.Context) (*sparse.CSR, error) {
	idx, dst, err := b.searcher.QuerySelf(ctx, b.opts.K, false)
	if err != nil {
		return nil, err
	}

	bandwidths := make([]float64, b.n)
	floored := 0
	for i := 0; i < b.n; i++ {
		bw := b.opts.FixedBandwidth
		if b.opts.Bandwidth == BandwidthAdaptive {
			bw = dst[i][b.opts.K-1]
		}
		if bw < b.opts.BandwidthFloor {
			bw = b.opts.BandwidthFloor
			floored++
		}
		bandwidths[i] = bw
	}
	if floored > 0 {
		b.logger.Warn("bandwidth underflow: clamped to floor",
			"points", floored,
			"floor", b.opts.BandwidthFloor,
		)
	}
	b.bandwidths = bandwidths

	b.logger.Debug("knn kernel", "n", b.n, "k", b.opts.K, "symmetrize", b.opts.Symmetrize.String())

	directed := newDirectedKernel(b.n)
	for i := 0; i < b.n; i++ {
		for j, nbr := range idx[i] {
			directed.add(i, nbr, b.decay.Weight(dst[i][j]/bandwidths[i]))
		}
	}

	return directed.symmetrize(b.opts.Symmetrize)
}

// ToData computes out-of-sample kernel rows from the rows of y to the
// reference points, reusing the recorded bandwidth policy: the global
// bandwidth for exact-built kernels, the fixed bandwidth in fixed
// mode, and per-query k-th-neighbor bandwidths otherwise.
func (b *Builder) ToData(ctx context.Context, y *mat.Dense) (*sparse.CSR, error) {
	idx, dst, err := b.searcher.Query(ctx, y, b.opts.K)
	if err != nil {
		return nil, err
	}

	ny, _ := y.Dims()
	dok := sparse.NewDOK(ny, b.n)
	floored := 0
	for i := 0; i < ny; i++ {
		var bw float64
		switch {
		case b.opts.Bandwidth == BandwidthFixed:
			bw = b.opts.FixedBandwidth
		case b.globalBandwidth > 0:
			bw = b.globalBandwidth
		default:
			bw = dst[i][b.opts.K-1]
		}
		if bw < b.opts.BandwidthFloor {
			bw = b.opts.BandwidthFloor
			floored++
		}
		for j, nbr := range idx[i] {
			dok.Set(i, nbr, b.decay.Weight(dst[i][j]/bw))
		}
	}
	if floored > 0 {
		b.logger.Warn("bandwidth underflow: clamped to floor",
			"points", floored,
			"floor", b.opts.BandwidthFloor,
		)
	}

	return dok.ToCSR(), nil
}

// Bandwidths returns the per-point adaptive bandwidths recorded by the
// last KNN build, or nil when none has run.
func (b *Builder) Bandwidths() []float64 { return b.bandwidths }

// GlobalBandwidth returns the global bandwidth recorded by the last
// Exact build, or 0 when none has run.
func (b *Builder) GlobalBandwidth() float64 { return b.globalBandwidth }

func (b *Builder) floorBandwidth(bw float64, points int) float64 {
	if bw >= b.opts.BandwidthFloor {
		return bw
	}
	b.logger.Warn("bandwidth underflow: clamped to floor",
		"points", points,
		"floor", b.opts.BandwidthFloor,
	)
	return b.opts.BandwidthFloor
}

// pairwiseDistances computes the full N×N distance matrix, one row per
// worker.
func (b *Builder) pairwiseDistances(ctx context.Context) (*mat.Dense, error) {
	dists := mat.NewDense(b.n, b.n, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Parallelism)

	for i := 0; i < b.n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vi := b.data.RawRowView(i)
			row := dists.RawRowView(i)
			for j := 0; j < b.n; j++ {
				row[j] = distance.Euclidean(vi, b.data.RawRowView(j))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dists, nil
}

// medianKthDistance returns the median over all points of the distance
// to the k-th nearest other point.
func medianKthDistance(dists *mat.Dense, k int) float64 {
	n, _ := dists.Dims()
	kth := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(row, dists.RawRowView(i))
		sort.Float64s(row)
		// row[0] is the self distance; the k-th neighbor sits at k.
		kth[i] = row[k]
	}
	sort.Float64s(kth)
	return kth[n/2]
}
