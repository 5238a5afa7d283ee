// Package diffgraph builds similarity graphs over point-cloud data and
// derives the normalized operators used by manifold-learning and
// diffusion-geometry methods (diffusion maps, PHATE and relatives).
//
// A Graph is constructed once over an immutable data matrix and serves
// its derived matrices through compute-once, cache-forever accessors:
//
//   - Kernel: the affinity matrix (dense for the exact strategy,
//     sparse for k-NN strategies)
//   - DiffusionOperator: the row-stochastic or symmetric-normalized
//     transition operator
//   - LandmarkOperator / Transitions: the compressed landmark
//     representation for large inputs
//
// # Construction Strategies
//
// Exactly one strategy is selected at construction time:
//
//   - StrategyKNN (default): sparse k-nearest-neighbor kernel with
//     adaptive per-point bandwidths and configurable symmetrization
//   - StrategyMNN: k-NN restricted to mutual edges
//   - StrategyExact: full pairwise kernel for small inputs
//   - StrategyLandmark: a base kernel compressed through landmark
//     clustering, selected automatically when WithLandmarks(n) is set
//     and the data exceeds n points
//
// # Quick Start
//
//	ctx := context.Background()
//	g, err := diffgraph.New(data,
//	    diffgraph.WithK(10),
//	    diffgraph.WithAlpha(2),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := g.DiffusionOperator(ctx)
//
// Large inputs compress through landmarks:
//
//	g, err := diffgraph.New(data, diffgraph.WithLandmarks(500))
//	lop, err := g.LandmarkOperator(ctx)
//
// Out-of-sample points extend onto an existing graph without
// rebuilding it:
//
//	transitions, err := g.ExtendToNewPoints(ctx, newData)
//	embedded, err := g.Interpolate(transform, transitions)
//
// Graphs are immutable after construction: requesting a different
// strategy or parameter set means constructing a new Graph.
package diffgraph
