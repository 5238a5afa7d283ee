package diffgraph

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/diffgraph/cluster"
	"github.com/hupe1980/diffgraph/kernel"
	"github.com/hupe1980/diffgraph/neighbors"
	"github.com/hupe1980/diffgraph/operator"
)

// Strategy identifies the kernel construction strategy. Exactly one
// strategy is selected at construction time and never changes for the
// lifetime of the graph.
type Strategy int

const (
	// StrategyKNN builds a sparse k-nearest-neighbor kernel (default).
	StrategyKNN Strategy = iota

	// StrategyMNN builds a k-NN kernel restricted to mutual edges.
	StrategyMNN

	// StrategyExact builds the full pairwise kernel; intended for
	// small inputs and guarded by a soft size limit.
	StrategyExact

	// StrategyLandmark compresses a base kernel through landmark
	// clustering. Selected automatically when WithLandmarks(n) is set
	// and the data exceeds n points.
	StrategyLandmark
)

func (s Strategy) String() string {
	switch s {
	case StrategyKNN:
		return "KNN"
	case StrategyMNN:
		return "MNN"
	case StrategyExact:
		return "Exact"
	case StrategyLandmark:
		return "Landmark"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

type options struct {
	strategy       Strategy
	strategySet    bool
	k              int
	alpha          float64
	bandwidth      kernel.BandwidthMode
	fixedBandwidth float64
	symmetrize     kernel.SymmetrizeMode
	normalization  operator.Normalization
	landmarks      int
	exactSizeLimit int
	seed           int64
	parallelism    int
	searcher       neighbors.Searcher
	clusterer      cluster.Provider
	metrics        MetricsCollector
	logger         *Logger
}

// Option configures graph construction.
//
// All defaults are literal values applied at construction; graph
// behavior is fully determined by its constructor arguments.
type Option func(*options)

// WithStrategy selects the kernel construction strategy explicitly.
// Without it, the strategy is derived from the configuration:
// landmark when WithLandmarks applies, k-NN otherwise.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
		o.strategySet = true
	}
}

// WithK sets the neighbor count for k-NN kernels and the adaptive
// bandwidth rule.
func WithK(k int) Option {
	return func(o *options) {
		o.k = k
	}
}

// WithAlpha sets the order of the alpha-decaying kernel exp(-x^alpha).
// Alpha 2 is the standard Gaussian kernel, 1 is exponential decay.
func WithAlpha(alpha float64) Option {
	return func(o *options) {
		o.alpha = alpha
	}
}

// WithFixedBandwidth disables the adaptive bandwidth rule and uses one
// global bandwidth for every kernel weight.
func WithFixedBandwidth(bandwidth float64) Option {
	return func(o *options) {
		o.bandwidth = kernel.BandwidthFixed
		o.fixedBandwidth = bandwidth
	}
}

// WithSymmetrize selects how directed k-NN affinities are combined
// into an undirected kernel.
func WithSymmetrize(mode kernel.SymmetrizeMode) Option {
	return func(o *options) {
		o.symmetrize = mode
	}
}

// WithNormalization selects the diffusion-operator normalization rule
// (row-stochastic or symmetric).
func WithNormalization(rule operator.Normalization) Option {
	return func(o *options) {
		o.normalization = rule
	}
}

// WithLandmarks enables landmark compression: when the data holds more
// than n points, the graph is built with the landmark strategy and
// exposes an n-landmark operator.
func WithLandmarks(n int) Option {
	return func(o *options) {
		o.landmarks = n
	}
}

// WithExactSizeLimit overrides the soft point-count limit for the
// exact strategy. Values <= 0 disable the check entirely.
func WithExactSizeLimit(limit int) Option {
	return func(o *options) {
		o.exactSizeLimit = limit
	}
}

// WithSeed sets the random seed for landmark clustering.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithParallelism bounds the concurrency of internal distance scans.
// Values < 1 default to GOMAXPROCS.
func WithParallelism(p int) Option {
	return func(o *options) {
		o.parallelism = p
	}
}

// WithSearcher supplies a custom nearest-neighbor searcher (e.g. an
// approximate index). If nil, an exact brute-force searcher over the
// data is used.
func WithSearcher(s neighbors.Searcher) Option {
	return func(o *options) {
		o.searcher = s
	}
}

// WithClusterer supplies a custom clustering provider for landmark
// selection. If nil, seeded k-means is used.
func WithClusterer(c cluster.Provider) Option {
	return func(o *options) {
		o.clusterer = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// construction. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithLogger configures structured logging for construction.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets
// it. Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		strategy:       StrategyKNN,
		k:              5,
		alpha:          2,
		bandwidth:      kernel.BandwidthAdaptive,
		symmetrize:     kernel.SymmetrizeUnion,
		normalization:  operator.NormalizationRow,
		exactSizeLimit: 2000,
		seed:           42,
		metrics:        NoopMetricsCollector{},
		logger:         NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
