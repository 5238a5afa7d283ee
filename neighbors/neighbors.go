package neighbors

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/diffgraph/distance"
)

// Searcher is the nearest-neighbor contract consumed by the graph
// engine. Implementations must return results ordered by increasing
// distance with ties broken by ascending reference index, and must
// not mutate the reference set after construction.
type Searcher interface {
	// QuerySelf returns the k nearest reference points for every
	// reference point. When includeSelf is false, each point's own
	// zero-distance match is excluded from its result row.
	QuerySelf(ctx context.Context, k int, includeSelf bool) (indices [][]int, distances [][]float64, err error)

	// Query returns the k nearest reference points for every row of
	// queries (out-of-sample search against the fixed reference set).
	Query(ctx context.Context, queries *mat.Dense, k int) (indices [][]int, distances [][]float64, err error)

	// Len returns the number of reference points.
	Len() int
}

// ErrInsufficientData indicates that k exceeds the number of available
// reference points.
type ErrInsufficientData struct {
	Need int // Requested neighbors
	Have int // Available reference points
}

func (e *ErrInsufficientData) Error() string {
	return fmt.Sprintf("insufficient data: need %d reference points, have %d", e.Need, e.Have)
}

// ErrDimensionMismatch indicates a query/reference dimensionality
// mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options contains configuration options for the brute-force searcher.
type Options struct {
	// Metric is the distance metric used for neighbor ranking.
	Metric distance.Metric

	// Parallelism bounds the number of concurrently scanned query
	// rows. Values < 1 default to GOMAXPROCS.
	Parallelism int
}

// DefaultOptions contains the default configuration options for the
// brute-force searcher.
var DefaultOptions = Options{
	Metric:      distance.MetricEuclidean,
	Parallelism: 0,
}

// Compile-time check to ensure BruteForce satisfies the Searcher contract.
var _ Searcher = (*BruteForce)(nil)

// BruteForce is an exact nearest-neighbor searcher over an in-memory
// reference matrix. It trades scan cost for exactness and fully
// deterministic ordering, which is what kernel construction needs.
type BruteForce struct {
	ref      *mat.Dense
	n, dim   int
	distFunc distance.Func
	opts     Options
}

// New creates a brute-force searcher over the rows of ref.
// The reference matrix is referenced, not copied; callers must not
// mutate it afterwards.
func New(ref *mat.Dense, optFns ...func(o *Options)) (*BruteForce, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	n, dim := ref.Dims()
	if n == 0 || dim == 0 {
		return nil, fmt.Errorf("neighbors: empty reference matrix (%dx%d)", n, dim)
	}

	if opts.Parallelism < 1 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	return &BruteForce{
		ref:      ref,
		n:        n,
		dim:      dim,
		distFunc: distFunc,
		opts:     opts,
	}, nil
}

// Len returns the number of reference points.
func (b *BruteForce) Len() int { return b.n }

// QuerySelf implements Searcher.
func (b *BruteForce) QuerySelf(ctx context.Context, k int, includeSelf bool) ([][]int, [][]float64, error) {
	available := b.n
	if !includeSelf {
		available--
	}
	if k > available {
		return nil, nil, &ErrInsufficientData{Need: k, Have: available}
	}

	return b.scan(ctx, b.ref, k, !includeSelf)
}

// Query implements Searcher.
func (b *BruteForce) Query(ctx context.Context, queries *mat.Dense, k int) ([][]int, [][]float64, error) {
	_, qd := queries.Dims()
	if qd != b.dim {
		return nil, nil, &ErrDimensionMismatch{Expected: b.dim, Actual: qd}
	}
	if k > b.n {
		return nil, nil, &ErrInsufficientData{Need: k, Have: b.n}
	}

	return b.scan(ctx, queries, k, false)
}

// scan runs the exact k-NN scan for every row of queries. When
// excludeSelf is set, row i skips reference index i (valid only for
// self-queries where queries == b.ref).
func (b *BruteForce) scan(ctx context.Context, queries *mat.Dense, k int, excludeSelf bool) ([][]int, [][]float64, error) {
	nq, _ := queries.Dims()

	indices := make([][]int, nq)
	distances := make([][]float64, nq)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Parallelism)

	for i := 0; i < nq; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			q := queries.RawRowView(i)

			type cand struct {
				idx  int
				dist float64
			}
			cands := make([]cand, 0, b.n)
			for j := 0; j < b.n; j++ {
				if excludeSelf && j == i {
					continue
				}
				cands = append(cands, cand{idx: j, dist: b.distFunc(q, b.ref.RawRowView(j))})
			}

			sort.Slice(cands, func(a, c int) bool {
				if cands[a].dist != cands[c].dist {
					return cands[a].dist < cands[c].dist
				}
				return cands[a].idx < cands[c].idx
			})

			idx := make([]int, k)
			dst := make([]float64, k)
			for j := 0; j < k; j++ {
				idx[j] = cands[j].idx
				dst[j] = cands[j].dist
			}
			indices[i] = idx
			distances[i] = dst

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return indices, distances, nil
}
