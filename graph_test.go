package diffgraph

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/diffgraph/kernel"
	"github.com/hupe1980/diffgraph/neighbors"
	"github.com/hupe1980/diffgraph/operator"
)

// countingSearcher wraps a real searcher and counts queries, so tests
// can assert the compute-once contract.
type countingSearcher struct {
	neighbors.Searcher
	querySelfCalls int
	queryCalls     int
}

func (c *countingSearcher) QuerySelf(ctx context.Context, k int, includeSelf bool) ([][]int, [][]float64, error) {
	c.querySelfCalls++
	return c.Searcher.QuerySelf(ctx, k, includeSelf)
}

func (c *countingSearcher) Query(ctx context.Context, queries *mat.Dense, k int) ([][]int, [][]float64, error) {
	c.queryCalls++
	return c.Searcher.Query(ctx, queries, k)
}

// explodingSearcher fails the test if any query runs. Used to verify
// that configuration validation never touches the data.
type explodingSearcher struct {
	t *testing.T
	n int
}

func (s *explodingSearcher) QuerySelf(context.Context, int, bool) ([][]int, [][]float64, error) {
	s.t.Fatal("searcher must not be invoked during validation")
	return nil, nil, nil
}

func (s *explodingSearcher) Query(context.Context, *mat.Dense, int) ([][]int, [][]float64, error) {
	s.t.Fatal("searcher must not be invoked during validation")
	return nil, nil, nil
}

func (s *explodingSearcher) Len() int { return s.n }

func smallData() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
}

// twoClusters lays out two well-separated grids of perCluster points
// each: one near the origin, one near (10, 10).
func twoClusters(perCluster int) *mat.Dense {
	data := mat.NewDense(2*perCluster, 2, nil)
	for i := 0; i < perCluster; i++ {
		x := 0.1 * float64(i%5)
		y := 0.1 * float64(i/5)
		data.Set(i, 0, x)
		data.Set(i, 1, y)
		data.Set(perCluster+i, 0, 10+x)
		data.Set(perCluster+i, 1, 10+y)
	}
	return data
}

func TestNew_Validation(t *testing.T) {
	data := smallData()

	testCases := []struct {
		name  string
		data  *mat.Dense
		opts  []Option
		param string
	}{
		{name: "nil data", data: nil, param: "data"},
		{name: "empty data", data: &mat.Dense{}, param: "data"},
		{name: "k zero", data: data, opts: []Option{WithK(0)}, param: "K"},
		{name: "k at point count", data: data, opts: []Option{WithK(4)}, param: "K"},
		{name: "negative alpha", data: data, opts: []Option{WithK(2), WithAlpha(-1)}, param: "Alpha"},
		{name: "zero fixed bandwidth", data: data, opts: []Option{WithK(2), WithFixedBandwidth(0)}, param: "FixedBandwidth"},
		{name: "landmarks at point count", data: data, opts: []Option{WithK(2), WithLandmarks(4)}, param: "Landmarks"},
		{name: "landmark strategy without landmarks", data: data, opts: []Option{WithK(2), WithStrategy(StrategyLandmark)}, param: "Landmarks"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]Option{WithSearcher(&explodingSearcher{t: t, n: 4})}, tc.opts...)

			_, err := New(tc.data, opts...)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.param, cfgErr.Param)
		})
	}
}

func TestNew_ExactSizeLimit(t *testing.T) {
	data := twoClusters(10)

	_, err := New(data, WithK(2), WithStrategy(StrategyExact), WithExactSizeLimit(5))
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Strategy", cfgErr.Param)

	// Raising the limit makes the same configuration valid.
	g, err := New(data, WithK(2), WithStrategy(StrategyExact), WithExactSizeLimit(20))
	require.NoError(t, err)

	_, err = g.Kernel(context.Background())
	require.NoError(t, err)
}

func TestGraph_Params(t *testing.T) {
	g, err := New(smallData(),
		WithK(2),
		WithAlpha(3),
		WithFixedBandwidth(0.7),
		WithSymmetrize(kernel.SymmetrizeAverage),
		WithNormalization(operator.NormalizationSymmetric),
	)
	require.NoError(t, err)

	p := g.Params()
	assert.Equal(t, StrategyKNN, p.Strategy)
	assert.Equal(t, 2, p.K)
	assert.Equal(t, 3.0, p.Alpha)
	assert.Equal(t, kernel.BandwidthFixed, p.Bandwidth)
	assert.Equal(t, 0.7, p.FixedBandwidth)
	assert.Equal(t, kernel.SymmetrizeAverage, p.Symmetrize)
	assert.Equal(t, operator.NormalizationSymmetric, p.Normalization)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 2, g.Dim())
}

func TestGraph_KernelComputeOnce(t *testing.T) {
	ctx := context.Background()
	data := smallData()

	base, err := neighbors.New(data)
	require.NoError(t, err)

	counting := &countingSearcher{Searcher: base}

	g, err := New(data, WithK(2), WithSearcher(counting))
	require.NoError(t, err)

	k1, err := g.Kernel(ctx)
	require.NoError(t, err)

	k2, err := g.Kernel(ctx)
	require.NoError(t, err)
	assert.Same(t, k1, k2)

	// The operator reuses the cached kernel.
	op1, err := g.DiffusionOperator(ctx)
	require.NoError(t, err)

	op2, err := g.DiffusionOperator(ctx)
	require.NoError(t, err)
	assert.Same(t, op1, op2)

	assert.Equal(t, 1, counting.querySelfCalls)
}

func TestGraph_ThreePointUnionKernel(t *testing.T) {
	ctx := context.Background()

	// Points 0 and 1 are close; point 2 is far away and points at 1.
	data := mat.NewDense(3, 2, []float64{
		0, 0,
		0, 1,
		10, 10,
	})

	g, err := New(data, WithK(1), WithFixedBandwidth(1))
	require.NoError(t, err)

	k, err := g.Kernel(ctx)
	require.NoError(t, err)

	r, c := k.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, k.At(i, i))
	}

	// The close pair carries the Gaussian weight of distance 1.
	assert.InDelta(t, math.Exp(-1), k.At(0, 1), 1e-12)
	assert.Equal(t, k.At(0, 1), k.At(1, 0))

	// Point 2 reaches point 1 through its own directed edge; the union
	// keeps it even though 1 does not reciprocate.
	assert.Greater(t, k.At(2, 1), 0.0)
	assert.Less(t, k.At(2, 1), 1e-50)
	assert.Equal(t, k.At(2, 1), k.At(1, 2))

	// No edge between 0 and 2 in either direction.
	assert.Equal(t, 0.0, k.At(0, 2))
	assert.Equal(t, 0.0, k.At(2, 0))
}

func TestGraph_MNNDropsOneSidedEdges(t *testing.T) {
	ctx := context.Background()

	// 1-D chain: 0 and 1 are mutual nearest neighbors, 2's edge to 1 is
	// one-sided.
	data := mat.NewDense(3, 1, []float64{0, 1, 3})

	g, err := New(data, WithK(1), WithFixedBandwidth(1), WithStrategy(StrategyMNN))
	require.NoError(t, err)

	k, err := g.Kernel(ctx)
	require.NoError(t, err)

	assert.Greater(t, k.At(0, 1), 0.0)
	assert.Equal(t, k.At(0, 1), k.At(1, 0))
	assert.Equal(t, 0.0, k.At(1, 2))
	assert.Equal(t, 0.0, k.At(2, 1))
}

func TestGraph_DiffusionOperator_RowStochastic(t *testing.T) {
	ctx := context.Background()

	g, err := New(smallData(), WithK(2))
	require.NoError(t, err)

	op, err := g.DiffusionOperator(ctx)
	require.NoError(t, err)

	sums := operator.RowSums(op)
	for i, s := range sums {
		assert.InDelta(t, 1.0, s, 1e-12, "row %d", i)
	}
}

func TestGraph_SymmetricNormalization_DegreeRecovery(t *testing.T) {
	ctx := context.Background()

	g, err := New(smallData(), WithK(2), WithNormalization(operator.NormalizationSymmetric))
	require.NoError(t, err)

	op, err := g.DiffusionOperator(ctx)
	require.NoError(t, err)

	degrees, err := g.DiffusionDegrees(ctx)
	require.NoError(t, err)
	require.Len(t, degrees, 4)

	// P = D^{-1/2} A D^{1/2} must be row-stochastic.
	for i := 0; i < 4; i++ {
		sum := 0.0
		for j := 0; j < 4; j++ {
			sum += op.At(i, j) * math.Sqrt(degrees[j]/degrees[i])
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "row %d", i)
	}
}

func TestGraph_ExactMatchesKNN_FixedBandwidth(t *testing.T) {
	ctx := context.Background()
	data := smallData()

	// With a fixed bandwidth, k = n-1 and union symmetrization, the
	// sparse kernel holds every pairwise weight the dense one does.
	exact, err := New(data, WithK(3), WithFixedBandwidth(0.5), WithStrategy(StrategyExact))
	require.NoError(t, err)

	knn, err := New(data, WithK(3), WithFixedBandwidth(0.5))
	require.NoError(t, err)

	ke, err := exact.Kernel(ctx)
	require.NoError(t, err)

	kk, err := knn.Kernel(ctx)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, ke.At(i, j), kk.At(i, j), 1e-12, "entry (%d,%d)", i, j)
		}
	}
}

func TestGraph_LandmarkAccessorsRequireLandmarkStrategy(t *testing.T) {
	ctx := context.Background()

	g, err := New(smallData(), WithK(2))
	require.NoError(t, err)

	_, err = g.LandmarkOperator(ctx)
	assert.ErrorIs(t, err, ErrNotLandmarkGraph)

	_, err = g.Transitions(ctx)
	assert.ErrorIs(t, err, ErrNotLandmarkGraph)

	_, err = g.Clusters(ctx)
	assert.ErrorIs(t, err, ErrNotLandmarkGraph)
}

func TestGraph_Landmark(t *testing.T) {
	ctx := context.Background()
	data := twoClusters(50)

	g, err := New(data, WithK(5), WithLandmarks(2))
	require.NoError(t, err)
	assert.Equal(t, StrategyLandmark, g.Params().Strategy)

	labels, err := g.Clusters(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 100)

	// The clusters are separated by two orders of magnitude more than
	// their internal spread, so the split must be clean.
	for i := 1; i < 50; i++ {
		assert.Equal(t, labels[0], labels[i], "point %d", i)
	}
	for i := 51; i < 100; i++ {
		assert.Equal(t, labels[50], labels[i], "point %d", i)
	}
	assert.NotEqual(t, labels[0], labels[50])

	op, err := g.LandmarkOperator(ctx)
	require.NoError(t, err)

	r, c := op.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)

	// No kernel edge crosses the gap, so the landmark operator is
	// near-identity after normalization.
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 1.0, op.At(i, 0)+op.At(i, 1), 1e-12)
		assert.Greater(t, op.At(i, i), 0.95)
	}

	transitions, err := g.Transitions(ctx)
	require.NoError(t, err)

	tr, tc := transitions.Dims()
	assert.Equal(t, 100, tr)
	assert.Equal(t, 2, tc)

	for i, s := range operator.RowSums(transitions) {
		assert.InDelta(t, 1.0, s, 1e-12, "row %d", i)
	}
}

func TestGraph_ExtendToNewPoints(t *testing.T) {
	ctx := context.Background()

	g, err := New(smallData(), WithK(2))
	require.NoError(t, err)

	y := mat.NewDense(2, 2, []float64{
		0, 0.1,
		1, 0.9,
	})

	out, err := g.ExtendToNewPoints(ctx, y)
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)

	for i, s := range operator.RowSums(out) {
		assert.InDelta(t, 1.0, s, 1e-12, "row %d", i)
	}

	// The first query sits next to point 0, the second next to point 3.
	assert.Greater(t, out.At(0, 0), out.At(0, 3))
	assert.Greater(t, out.At(1, 3), out.At(1, 0))
}

func TestGraph_ExtendToNewPoints_DimensionMismatch(t *testing.T) {
	ctx := context.Background()

	g, err := New(smallData(), WithK(2))
	require.NoError(t, err)

	y := mat.NewDense(1, 3, []float64{0, 0, 0})

	_, err = g.ExtendToNewPoints(ctx, y)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestGraph_ExtendToNewPoints_Landmark(t *testing.T) {
	ctx := context.Background()
	data := twoClusters(50)

	g, err := New(data, WithK(5), WithLandmarks(2))
	require.NoError(t, err)

	labels, err := g.Clusters(ctx)
	require.NoError(t, err)

	// A point inside the origin cluster must put essentially all of its
	// interpolation mass on that cluster's landmark.
	y := mat.NewDense(1, 2, []float64{0.2, 0.3})

	out, err := g.ExtendToNewPoints(ctx, y)
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, c)

	assert.InDelta(t, 1.0, out.At(0, 0)+out.At(0, 1), 1e-12)
	assert.Greater(t, out.At(0, labels[0]), 0.95)
}

func TestGraph_Interpolate(t *testing.T) {
	ctx := context.Background()
	data := twoClusters(50)

	g, err := New(data, WithK(5), WithLandmarks(2))
	require.NoError(t, err)

	labels, err := g.Clusters(ctx)
	require.NoError(t, err)

	// One scalar feature per landmark; interpolation carries it to the
	// new point through its transition row.
	transform := mat.NewDense(2, 1, nil)
	transform.Set(labels[0], 0, 1)
	transform.Set(labels[50], 0, -1)

	y := mat.NewDense(1, 2, []float64{0.2, 0.3})

	transitions, err := g.ExtendToNewPoints(ctx, y)
	require.NoError(t, err)

	out, err := g.Interpolate(transform, transitions)
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 1, c)
	assert.Greater(t, out.At(0, 0), 0.9)
}

func TestGraph_Interpolate_ShapeMismatch(t *testing.T) {
	g, err := New(smallData(), WithK(2))
	require.NoError(t, err)

	transitions := mat.NewDense(1, 4, []float64{0.25, 0.25, 0.25, 0.25})
	transform := mat.NewDense(3, 1, []float64{1, 2, 3})

	_, err = g.Interpolate(transform, transitions)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestGraph_Metrics(t *testing.T) {
	ctx := context.Background()

	mc := &BasicMetricsCollector{}

	g, err := New(twoClusters(10), WithK(3), WithLandmarks(2), WithMetricsCollector(mc))
	require.NoError(t, err)

	_, err = g.DiffusionOperator(ctx)
	require.NoError(t, err)

	_, err = g.LandmarkOperator(ctx)
	require.NoError(t, err)

	y := mat.NewDense(1, 2, []float64{0, 0})
	_, err = g.ExtendToNewPoints(ctx, y)
	require.NoError(t, err)

	assert.Equal(t, int64(1), mc.KernelBuilds.Load())
	assert.Equal(t, int64(1), mc.OperatorBuilds.Load())
	assert.Equal(t, int64(1), mc.LandmarkBuilds.Load())
	assert.Equal(t, int64(1), mc.Extensions.Load())
	assert.Equal(t, int64(1), mc.ExtensionPoints.Load())
	assert.Equal(t, int64(0), mc.KernelBuildErrors.Load())
}

func TestGraph_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := New(smallData(), WithK(2))
	require.NoError(t, err)

	_, err = g.Kernel(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
