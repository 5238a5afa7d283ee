package operator

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateRow indicates a kernel row whose sum is exactly zero,
// which no normalization can turn into a transition probability
// distribution. It signals disconnected or malformed input.
type ErrDegenerateRow struct {
	Row int
}

func (e *ErrDegenerateRow) Error() string {
	return fmt.Sprintf("degenerate kernel row %d: row sum is zero", e.Row)
}

// Normalization selects the operator normalization rule.
type Normalization int

const (
	// NormalizationRow divides each kernel row by its sum, yielding a
	// row-stochastic transition operator.
	NormalizationRow Normalization = iota

	// NormalizationSymmetric conjugates the kernel by the inverse
	// square root of its degrees: D^{-1/2} K D^{-1/2}.
	NormalizationSymmetric
)

func (n Normalization) String() string {
	switch n {
	case NormalizationRow:
		return "Row"
	case NormalizationSymmetric:
		return "Symmetric"
	default:
		return fmt.Sprintf("Unknown(%d)", n)
	}
}

// nonZeroDoer is satisfied by the sparse types; it lets normalization
// walk only stored entries.
type nonZeroDoer interface {
	DoNonZero(fn func(i, j int, v float64))
}

// forEachNonZero visits every structurally non-zero entry of m.
func forEachNonZero(m mat.Matrix, fn func(i, j int, v float64)) {
	if nz, ok := m.(nonZeroDoer); ok {
		nz.DoNonZero(fn)
		return
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				fn(i, j, v)
			}
		}
	}
}

// RowSums returns the per-row sums of m.
func RowSums(m mat.Matrix) []float64 {
	r, _ := m.Dims()
	sums := make([]float64, r)
	forEachNonZero(m, func(i, _ int, v float64) {
		sums[i] += v
	})
	return sums
}

// RowNormalize divides each row of the kernel by its row sum,
// producing a row-stochastic operator. Sparse kernels stay sparse.
// A row summing to exactly zero yields ErrDegenerateRow.
func RowNormalize(k mat.Matrix) (mat.Matrix, error) {
	sums := RowSums(k)
	for i, s := range sums {
		if s == 0 {
			return nil, &ErrDegenerateRow{Row: i}
		}
	}

	r, c := k.Dims()
	if _, ok := k.(nonZeroDoer); ok {
		dok := sparse.NewDOK(r, c)
		forEachNonZero(k, func(i, j int, v float64) {
			dok.Set(i, j, v/sums[i])
		})
		return dok.ToCSR(), nil
	}

	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, k.At(i, j)/sums[i])
		}
	}
	return out, nil
}

// SymmetricNormalize conjugates the kernel by its inverse square-root
// degrees, returning D^{-1/2} K D^{-1/2} and the degree vector. The
// row-stochastic form is recoverable as D^{-1/2} A D^{1/2} without
// touching the kernel again.
func SymmetricNormalize(k mat.Matrix) (mat.Matrix, []float64, error) {
	degrees := RowSums(k)
	invSqrt := make([]float64, len(degrees))
	for i, d := range degrees {
		if d == 0 {
			return nil, nil, &ErrDegenerateRow{Row: i}
		}
		invSqrt[i] = 1 / math.Sqrt(d)
	}

	r, c := k.Dims()
	if _, ok := k.(nonZeroDoer); ok {
		dok := sparse.NewDOK(r, c)
		forEachNonZero(k, func(i, j int, v float64) {
			dok.Set(i, j, v*invSqrt[i]*invSqrt[j])
		})
		return dok.ToCSR(), degrees, nil
	}

	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, k.At(i, j)*invSqrt[i]*invSqrt[j])
		}
	}
	return out, degrees, nil
}

// Normalize applies the selected normalization rule. The degree vector
// is returned for both rules (for NormalizationRow it holds the row
// sums used as divisors).
func Normalize(k mat.Matrix, rule Normalization) (mat.Matrix, []float64, error) {
	switch rule {
	case NormalizationRow:
		degrees := RowSums(k)
		op, err := RowNormalize(k)
		if err != nil {
			return nil, nil, err
		}
		return op, degrees, nil
	case NormalizationSymmetric:
		return SymmetricNormalize(k)
	default:
		return nil, nil, fmt.Errorf("operator: unknown normalization %d", rule)
	}
}
