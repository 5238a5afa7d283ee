package kernel

import (
	"fmt"
	"math"
)

// Decay is the alpha-decaying kernel weight function exp(-x^alpha).
// Alpha = 2 is the standard Gaussian kernel, alpha = 1 is
// exponential (Laplacian-like) decay.
type Decay struct {
	Alpha float64
}

// Weight evaluates the decay at the bandwidth-scaled distance x.
// Weight(0) = 1, so duplicate points saturate at full affinity.
func (d Decay) Weight(x float64) float64 {
	if x <= 0 {
		return 1
	}
	return math.Exp(-math.Pow(x, d.Alpha))
}

// BandwidthMode selects how the kernel bandwidth is chosen.
type BandwidthMode int

const (
	// BandwidthAdaptive scales each point's edges by the distance to
	// its k-th nearest neighbor (a single median-of-k-th-distances
	// bandwidth for exact kernels).
	BandwidthAdaptive BandwidthMode = iota

	// BandwidthFixed uses one caller-supplied bandwidth everywhere.
	BandwidthFixed
)

func (m BandwidthMode) String() string {
	switch m {
	case BandwidthAdaptive:
		return "Adaptive"
	case BandwidthFixed:
		return "Fixed"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}
