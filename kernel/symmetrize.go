package kernel

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/james-bowman/sparse"
)

// SymmetrizeMode defines how directed k-NN affinities are combined
// into an undirected kernel.
type SymmetrizeMode int

const (
	// SymmetrizeUnion keeps an edge when either direction exists and
	// takes the larger weight (elementwise max of K and Kᵀ).
	SymmetrizeUnion SymmetrizeMode = iota

	// SymmetrizeIntersection takes the smaller weight (elementwise min
	// of K and Kᵀ); edges present in only one direction vanish.
	SymmetrizeIntersection

	// SymmetrizeMNN keeps only mutual edges (each endpoint lists the
	// other among its k nearest) at the larger of the two weights.
	// Self-edges are trivially mutual.
	SymmetrizeMNN

	// SymmetrizeAverage averages the two directed weights, counting a
	// missing direction as zero ((K + Kᵀ)/2).
	SymmetrizeAverage

	// SymmetrizeNone leaves the directed affinities untouched; the
	// resulting kernel may be asymmetric.
	SymmetrizeNone
)

func (m SymmetrizeMode) String() string {
	switch m {
	case SymmetrizeUnion:
		return "Union"
	case SymmetrizeIntersection:
		return "Intersection"
	case SymmetrizeMNN:
		return "MNN"
	case SymmetrizeAverage:
		return "Average"
	case SymmetrizeNone:
		return "None"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

func validSymmetrizeMode(m SymmetrizeMode) bool {
	switch m {
	case SymmetrizeUnion, SymmetrizeIntersection, SymmetrizeMNN, SymmetrizeAverage, SymmetrizeNone:
		return true
	default:
		return false
	}
}

// directedKernel holds the raw k-NN affinities before symmetrization:
// one weight map per source point plus a bitmap of its out-neighbors
// for fast mutual-edge membership tests.
type directedKernel struct {
	n       int
	weights []map[int]float64
	sets    []*roaring.Bitmap
}

func newDirectedKernel(n int) *directedKernel {
	d := &directedKernel{
		n:       n,
		weights: make([]map[int]float64, n),
		sets:    make([]*roaring.Bitmap, n),
	}
	for i := 0; i < n; i++ {
		d.weights[i] = make(map[int]float64)
		d.sets[i] = roaring.New()
	}
	return d
}

func (d *directedKernel) add(i, j int, w float64) {
	d.weights[i][j] = w
	d.sets[i].Add(uint32(j))
}

func (d *directedKernel) mutual(i, j int) bool {
	return d.sets[i].Contains(uint32(j)) && d.sets[j].Contains(uint32(i))
}

// symmetrize combines the directed affinities into the final sparse
// kernel. The diagonal is always set to kernel(0) = 1.
func (d *directedKernel) symmetrize(mode SymmetrizeMode) (*sparse.CSR, error) {
	if !validSymmetrizeMode(mode) {
		return nil, &ErrInvalidOption{Option: "Symmetrize", Reason: fmt.Sprintf("unknown mode %d", mode)}
	}

	dok := sparse.NewDOK(d.n, d.n)
	for i := 0; i < d.n; i++ {
		dok.Set(i, i, 1)
	}

	for i, row := range d.weights {
		for j, w := range row {
			if i == j {
				continue
			}
			rev, hasRev := d.weights[j][i]

			switch mode {
			case SymmetrizeNone:
				dok.Set(i, j, w)
			case SymmetrizeUnion:
				m := w
				if hasRev {
					m = math.Max(w, rev)
				}
				dok.Set(i, j, m)
				dok.Set(j, i, m)
			case SymmetrizeIntersection:
				if d.mutual(i, j) {
					m := math.Min(w, rev)
					dok.Set(i, j, m)
					dok.Set(j, i, m)
				}
			case SymmetrizeMNN:
				if d.mutual(i, j) {
					m := math.Max(w, rev)
					dok.Set(i, j, m)
					dok.Set(j, i, m)
				}
			case SymmetrizeAverage:
				m := w / 2
				if hasRev {
					m = (w + rev) / 2
				}
				dok.Set(i, j, m)
				dok.Set(j, i, m)
			}
		}
	}

	return dok.ToCSR(), nil
}
