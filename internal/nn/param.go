// Package nn implements the trainable layers of the translation model on top
// of gonum dense matrices: embedding lookup, a single-layer LSTM, a linear
// projection, masked cross-entropy and the Adam optimizer. Each layer caches
// what its backward pass needs and accumulates parameter gradients in place.
package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable matrix and its accumulated gradient. Bias vectors are
// stored as 1×n matrices.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense

	vector bool
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

func newBias(name string, n int) *Param {
	p := newParam(name, 1, n)
	p.vector = true

	return p
}

// ZeroGrad resets the accumulated gradient.
func (p *Param) ZeroGrad() { p.Grad.Zero() }

// Shape returns the parameter shape as stored in checkpoints. 1×n biases
// report a rank-1 shape.
func (p *Param) Shape() []int64 {
	r, c := p.Value.Dims()
	if p.vector {
		return []int64{int64(c)}
	}

	return []int64{int64(r), int64(c)}
}

// Float32 returns a row-major float32 copy of the parameter values.
func (p *Param) Float32() []float32 {
	r, c := p.Value.Dims()
	out := make([]float32, 0, r*c)

	for i := range r {
		for _, v := range p.Value.RawRowView(i) {
			out = append(out, float32(v))
		}
	}

	return out
}

// SetFloat32 overwrites the parameter values from row-major float32 data.
func (p *Param) SetFloat32(data []float32) bool {
	r, c := p.Value.Dims()
	if len(data) != r*c {
		return false
	}

	for i := range r {
		row := p.Value.RawRowView(i)
		for j := range row {
			row[j] = float64(data[i*c+j])
		}
	}

	return true
}

func fillUniform(m *mat.Dense, bound float64, rng *rand.Rand) {
	r, _ := m.Dims()
	for i := range r {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * bound
		}
	}
}

func fillNormal(m *mat.Dense, rng *rand.Rand) {
	r, _ := m.Dims()
	for i := range r {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// accumulate adds a·b into dst, where a and b may be transposed views.
func accumulate(dst *mat.Dense, a, b mat.Matrix) {
	var tmp mat.Dense
	tmp.Mul(a, b)
	dst.Add(dst, &tmp)
}

// addColumnSums adds the column sums of m to the 1×n row vector dst.
func addColumnSums(dst *mat.Dense, m *mat.Dense) {
	out := dst.RawRowView(0)

	r, _ := m.Dims()
	for i := range r {
		for j, v := range m.RawRowView(i) {
			out[j] += v
		}
	}
}
