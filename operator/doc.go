// Package operator derives normalized diffusion operators from kernel
// matrices.
//
// RowNormalize turns a kernel into the row-stochastic transition
// matrix of a random walk over the graph; SymmetricNormalize produces
// the symmetric conjugate D^{-1/2} K D^{-1/2} together with the degree
// vector that algebraically relates the two forms.
//
// The Reducer compresses large graphs: points are partitioned into
// landmark clusters, the kernel is aggregated through the cluster
// memberships into a small landmark-to-landmark operator, and a
// row-stochastic transition matrix maps full-resolution points into
// landmark space.
package operator
