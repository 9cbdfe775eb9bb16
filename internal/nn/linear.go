package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Linear computes y = x·Wᵀ + b with W shaped [out, in].
type Linear struct {
	Weight *Param
	Bias   *Param
}

// NewLinear draws weights and bias from U(-1/√in, 1/√in).
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))

	w := newParam(name+".weight", out, in)
	fillUniform(w.Value, bound, rng)

	b := newBias(name+".bias", out)
	fillUniform(b.Value, bound, rng)

	return &Linear{Weight: w, Bias: b}
}

// Forward applies the projection to every row of x.
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.Weight.Value.T())

	bias := l.Bias.Value.RawRowView(0)

	r, _ := y.Dims()
	for i := range r {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}

	return &y
}

// Backward accumulates weight and bias gradients for the input x that
// produced the output gradient dy, and returns the gradient w.r.t. x.
func (l *Linear) Backward(x, dy *mat.Dense) *mat.Dense {
	accumulate(l.Weight.Grad, dy.T(), x)
	addColumnSums(l.Bias.Grad, dy)

	var dx mat.Dense
	dx.Mul(dy, l.Weight.Value)

	return &dx
}

// Params returns the trainable parameters.
func (l *Linear) Params() []*Param { return []*Param{l.Weight, l.Bias} }
