// Package cluster provides the point-partitioning contract used for
// landmark graph compression, plus a seeded Lloyd's k-means provider.
package cluster
