package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/diffgraph/distance"
)

// Provider is the clustering contract consumed by landmark reduction:
// partition the rows of points into nClusters groups and return one
// label per row, labels in [0, nClusters).
type Provider interface {
	Cluster(ctx context.Context, points *mat.Dense, nClusters int) ([]int, error)
}

// ErrInvalidClusterCount indicates a cluster count that the point set
// cannot satisfy.
type ErrInvalidClusterCount struct {
	Requested int
	Points    int
}

func (e *ErrInvalidClusterCount) Error() string {
	return fmt.Sprintf("invalid cluster count: requested %d clusters for %d points", e.Requested, e.Points)
}

// Options contains configuration options for k-means.
type Options struct {
	// MaxIter bounds the number of Lloyd iterations.
	MaxIter int

	// Seed makes centroid initialization and empty-cluster re-seeding
	// deterministic. Behavior is fully determined by constructor
	// arguments; no ambient randomness is consulted.
	Seed int64

	// Metric is the distance metric used for assignment.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options for k-means.
var DefaultOptions = Options{
	MaxIter: 100,
	Seed:    42,
	Metric:  distance.MetricSquaredL2,
}

// Compile-time check to ensure KMeans satisfies the Provider contract.
var _ Provider = (*KMeans)(nil)

// KMeans partitions points with Lloyd's algorithm. Centroids are
// initialized from a seeded permutation of the input points; empty
// clusters are re-seeded from the point farthest from its centroid.
type KMeans struct {
	opts Options
}

// NewKMeans creates a k-means provider.
func NewKMeans(optFns ...func(o *Options)) (*KMeans, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIter < 1 {
		return nil, fmt.Errorf("cluster: MaxIter must be positive, got %d", opts.MaxIter)
	}
	if _, err := distance.Provider(opts.Metric); err != nil {
		return nil, err
	}

	return &KMeans{opts: opts}, nil
}

// Cluster implements Provider.
func (km *KMeans) Cluster(ctx context.Context, points *mat.Dense, nClusters int) ([]int, error) {
	n, dim := points.Dims()
	if nClusters < 1 || nClusters > n {
		return nil, &ErrInvalidClusterCount{Requested: nClusters, Points: n}
	}

	distFunc, err := distance.Provider(km.opts.Metric)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(km.opts.Seed))

	// Initialize centroids from distinct data points.
	centroids := make([][]float64, nClusters)
	perm := rng.Perm(n)
	for c := 0; c < nClusters; c++ {
		centroids[c] = append([]float64(nil), points.RawRowView(perm[c])...)
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	counts := make([]int, nClusters)
	sums := make([][]float64, nClusters)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for iter := 0; iter < km.opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Assignment step.
		changed := false
		for i := 0; i < n; i++ {
			vec := points.RawRowView(i)
			best := -1
			minDist := math.MaxFloat64
			for c := 0; c < nClusters; c++ {
				if d := distFunc(vec, centroids[c]); d < minDist {
					minDist = d
					best = c
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step.
		for c := range sums {
			counts[c] = 0
			for d := range sums[c] {
				sums[c][d] = 0
			}
		}
		for i := 0; i < n; i++ {
			c := labels[i]
			vec := points.RawRowView(i)
			for d := 0; d < dim; d++ {
				sums[c][d] += vec[d]
			}
			counts[c]++
		}

		for c := 0; c < nClusters; c++ {
			if counts[c] > 0 {
				scale := 1 / float64(counts[c])
				for d := 0; d < dim; d++ {
					centroids[c][d] = sums[c][d] * scale
				}
			} else {
				// Re-seed empty cluster with a random point so every
				// landmark keeps at least one member.
				copy(centroids[c], points.RawRowView(rng.Intn(n)))
			}
		}
	}

	// Labels must cover every cluster: steal the closest point for any
	// cluster that ended empty so the landmark invariant holds.
	for c := range counts {
		counts[c] = 0
	}
	for _, c := range labels {
		counts[c]++
	}
	for c := 0; c < nClusters; c++ {
		if counts[c] > 0 {
			continue
		}
		best, minDist := -1, math.MaxFloat64
		for i := 0; i < n; i++ {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := distFunc(points.RawRowView(i), centroids[c]); d < minDist {
				minDist = d
				best = i
			}
		}
		counts[labels[best]]--
		labels[best] = c
		counts[c] = 1
	}

	return labels, nil
}
