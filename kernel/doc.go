// Package kernel builds affinity (kernel) matrices from point-cloud
// data.
//
// A Builder produces either a dense exact kernel (full pairwise
// distances, small inputs) or a sparse k-nearest-neighbor kernel with
// per-point adaptive bandwidths. Weights follow the alpha-decaying
// kernel exp(-(d/bandwidth)^alpha); directed k-NN edges are combined
// into an undirected kernel by one of five symmetrization modes.
//
// The kernel matrix is the input to operator normalization (package
// operator) and landmark compression. All kernels keep a unit
// diagonal: a point's self-affinity is kernel(0) = 1.
package kernel
