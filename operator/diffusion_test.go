package operator

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newDenseKernel() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0.5, 0.1,
		0.5, 1, 0.2,
		0.1, 0.2, 1,
	})
}

func newSparseKernel() *sparse.CSR {
	dok := sparse.NewDOK(3, 3)
	dok.Set(0, 0, 1)
	dok.Set(1, 1, 1)
	dok.Set(2, 2, 1)
	dok.Set(0, 1, 0.5)
	dok.Set(1, 0, 0.5)
	dok.Set(1, 2, 0.2)
	dok.Set(2, 1, 0.2)
	return dok.ToCSR()
}

func assertRowStochastic(t *testing.T, m mat.Matrix) {
	t.Helper()
	r, _ := m.Dims()
	for i, s := range RowSums(m) {
		assert.InDelta(t, 1, s, 1e-9, "row %d of %d", i, r)
	}
}

func TestRowNormalize_Dense(t *testing.T) {
	p, err := RowNormalize(newDenseKernel())
	require.NoError(t, err)

	assertRowStochastic(t, p)
	assert.InDelta(t, 1/1.6, p.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5/1.6, p.At(0, 1), 1e-12)
}

func TestRowNormalize_SparseStaysSparse(t *testing.T) {
	p, err := RowNormalize(newSparseKernel())
	require.NoError(t, err)

	_, ok := p.(*sparse.CSR)
	assert.True(t, ok, "sparse kernels keep a sparse operator")
	assertRowStochastic(t, p)
}

func TestRowNormalize_DegenerateRow(t *testing.T) {
	k := mat.NewDense(2, 2, []float64{1, 0, 0, 0})

	_, err := RowNormalize(k)
	var edr *ErrDegenerateRow
	require.ErrorAs(t, err, &edr)
	assert.Equal(t, 1, edr.Row)
}

func TestSymmetricNormalize(t *testing.T) {
	k := newDenseKernel()
	a, degrees, err := SymmetricNormalize(k)
	require.NoError(t, err)
	require.Len(t, degrees, 3)

	// Output is symmetric.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, a.At(i, j), a.At(j, i), 1e-12)
		}
	}

	// D^{1/2} A D^{-1/2} recovers the row-stochastic form.
	p, err := RowNormalize(k)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			recovered := a.At(i, j) * math.Sqrt(degrees[j]) / math.Sqrt(degrees[i])
			assert.InDelta(t, p.At(i, j), recovered, 1e-9, "entry (%d,%d)", i, j)
		}
	}
}

func TestSymmetricNormalize_DegenerateRow(t *testing.T) {
	k := mat.NewDense(2, 2, []float64{0, 0, 0, 1})
	_, _, err := SymmetricNormalize(k)
	var edr *ErrDegenerateRow
	require.ErrorAs(t, err, &edr)
	assert.Equal(t, 0, edr.Row)
}

func TestNormalize(t *testing.T) {
	op, degrees, err := Normalize(newDenseKernel(), NormalizationRow)
	require.NoError(t, err)
	assertRowStochastic(t, op)
	assert.InDelta(t, 1.6, degrees[0], 1e-12, "row rule reports the divisors")

	_, _, err = Normalize(newDenseKernel(), Normalization(99))
	assert.Error(t, err)
}

func TestRowNormalize_Rectangular(t *testing.T) {
	k := mat.NewDense(2, 3, []float64{1, 1, 2, 0.5, 0, 0.5})
	p, err := RowNormalize(k)
	require.NoError(t, err)
	assertRowStochastic(t, p)
	assert.InDelta(t, 0.25, p.At(0, 0), 1e-12)
}

func TestNormalizationString(t *testing.T) {
	assert.Equal(t, "Row", NormalizationRow.String())
	assert.Equal(t, "Symmetric", NormalizationSymmetric.String())
	assert.Equal(t, "Unknown(99)", Normalization(99).String())
}
