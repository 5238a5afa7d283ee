// Package distance provides vector distance calculations for graph
// construction.
//
// All functions operate on float64 vectors so that downstream operator
// algebra (row normalization, landmark aggregation) stays in double
// precision. The heavy lifting is delegated to SIMD-accelerated
// primitives where available.
//
// # Supported Metrics
//
//   - MetricEuclidean: Euclidean distance (default for kernel bandwidths)
//   - MetricSquaredL2: Squared Euclidean distance
//
// # Usage
//
//	d := distance.Euclidean(a, b)
//	fn, err := distance.Provider(distance.MetricEuclidean)
package distance
