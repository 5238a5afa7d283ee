// Package neighbors provides k-nearest-neighbor search for graph
// construction.
//
// The Searcher interface is the contract the graph engine consumes:
// any index that can answer deterministic k-NN queries against a fixed
// reference set can back a graph. The package ships BruteForce, an
// exact scan provider that satisfies the contract out of the box.
//
// Ordering is part of the contract: results are sorted by increasing
// distance, and equal distances are broken by ascending reference
// index. Downstream symmetrization relies on this determinism.
package neighbors
