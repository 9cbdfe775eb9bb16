package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam is the Adam optimizer with bias-corrected moment estimates.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m map[*Param]*mat.Dense
	v map[*Param]*mat.Dense
}

// NewAdam returns an optimizer with β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make(map[*Param]*mat.Dense),
		v:            make(map[*Param]*mat.Dense),
	}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

// Step applies one update to every parameter from its accumulated gradient.
func (a *Adam) Step(params []*Param) {
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for _, p := range params {
		m, ok := a.m[p]
		if !ok {
			r, c := p.Value.Dims()
			m = mat.NewDense(r, c, nil)
			a.m[p] = m
			a.v[p] = mat.NewDense(r, c, nil)
		}

		v := a.v[p]

		r, _ := p.Value.Dims()
		for i := range r {
			val, g := p.Value.RawRowView(i), p.Grad.RawRowView(i)
			mr, vr := m.RawRowView(i), v.RawRowView(i)

			for j, gj := range g {
				mr[j] = a.Beta1*mr[j] + (1-a.Beta1)*gj
				vr[j] = a.Beta2*vr[j] + (1-a.Beta2)*gj*gj
				val[j] -= a.LearningRate * (mr[j] / bc1) / (math.Sqrt(vr[j]/bc2) + a.Epsilon)
			}
		}
	}
}
