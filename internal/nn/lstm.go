package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// State is the recurrent (hidden, cell) pair, each batch×hidden.
type State struct {
	H *mat.Dense
	C *mat.Dense
}

// ZeroState returns an all-zero state.
func ZeroState(batch, hidden int) State {
	return State{
		H: mat.NewDense(batch, hidden, nil),
		C: mat.NewDense(batch, hidden, nil),
	}
}

// LSTM is a single-layer long short-term memory layer. The stacked gate
// weights are ordered input, forget, cell, output.
type LSTM struct {
	WeightIH *Param // [4H, in]
	WeightHH *Param // [4H, H]
	BiasIH   *Param // [4H]
	BiasHH   *Param // [4H]

	InputSize  int
	HiddenSize int
}

// NewLSTM draws every parameter from U(-1/√hidden, 1/√hidden).
func NewLSTM(name string, in, hidden int, rng *rand.Rand) *LSTM {
	bound := 1 / math.Sqrt(float64(hidden))

	l := &LSTM{
		WeightIH:   newParam(name+".weight_ih_l0", 4*hidden, in),
		WeightHH:   newParam(name+".weight_hh_l0", 4*hidden, hidden),
		BiasIH:     newBias(name+".bias_ih_l0", 4*hidden),
		BiasHH:     newBias(name+".bias_hh_l0", 4*hidden),
		InputSize:  in,
		HiddenSize: hidden,
	}

	for _, p := range l.Params() {
		fillUniform(p.Value, bound, rng)
	}

	return l
}

// Params returns the trainable parameters.
func (l *LSTM) Params() []*Param {
	return []*Param{l.WeightIH, l.WeightHH, l.BiasIH, l.BiasHH}
}

type lstmStep struct {
	x, hPrev, cPrev *mat.Dense
	i, f, g, o      *mat.Dense
	tanhC           *mat.Dense
}

// Trace records the activations of one Forward call for Backward.
type Trace struct {
	steps []lstmStep
}

// Forward runs the layer over xs (one batch×in matrix per time step) starting
// from init. It returns the hidden output of every step and the final state.
// When trace is non-nil the activations are appended to it.
func (l *LSTM) Forward(xs []*mat.Dense, init State, trace *Trace) ([]*mat.Dense, State) {
	hid := l.HiddenSize
	h, c := init.H, init.C
	outs := make([]*mat.Dense, len(xs))

	bih := l.BiasIH.Value.RawRowView(0)
	bhh := l.BiasHH.Value.RawRowView(0)

	for t, x := range xs {
		var gates mat.Dense
		gates.Mul(x, l.WeightIH.Value.T())
		accumulate(&gates, h, l.WeightHH.Value.T())

		batch, _ := gates.Dims()
		ig := mat.NewDense(batch, hid, nil)
		fg := mat.NewDense(batch, hid, nil)
		gg := mat.NewDense(batch, hid, nil)
		og := mat.NewDense(batch, hid, nil)
		cNew := mat.NewDense(batch, hid, nil)
		hNew := mat.NewDense(batch, hid, nil)
		tc := mat.NewDense(batch, hid, nil)

		for b := range batch {
			row := gates.RawRowView(b)
			cp := c.RawRowView(b)
			iRow, fRow, gRow, oRow := ig.RawRowView(b), fg.RawRowView(b), gg.RawRowView(b), og.RawRowView(b)
			cRow, hRow, tRow := cNew.RawRowView(b), hNew.RawRowView(b), tc.RawRowView(b)

			for k := range hid {
				iv := sigmoid(row[k] + bih[k] + bhh[k])
				fv := sigmoid(row[hid+k] + bih[hid+k] + bhh[hid+k])
				gv := math.Tanh(row[2*hid+k] + bih[2*hid+k] + bhh[2*hid+k])
				ov := sigmoid(row[3*hid+k] + bih[3*hid+k] + bhh[3*hid+k])

				cv := fv*cp[k] + iv*gv
				tv := math.Tanh(cv)

				iRow[k], fRow[k], gRow[k], oRow[k] = iv, fv, gv, ov
				cRow[k], tRow[k] = cv, tv
				hRow[k] = ov * tv
			}
		}

		if trace != nil {
			trace.steps = append(trace.steps, lstmStep{
				x: x, hPrev: h, cPrev: c,
				i: ig, f: fg, g: gg, o: og,
				tanhC: tc,
			})
		}

		h, c = hNew, cNew
		outs[t] = hNew
	}

	return outs, State{H: h, C: c}
}

// Backward propagates gradients through the steps recorded in trace.
// dOuts holds the gradient of each step's hidden output (nil entries, or a
// nil slice, mean zero) and dFinal the gradient of the final state (nil
// members mean zero). Parameter gradients are accumulated; the returned
// values are the input gradients per step and the initial-state gradient.
func (l *LSTM) Backward(trace *Trace, dOuts []*mat.Dense, dFinal State) ([]*mat.Dense, State) {
	steps := trace.steps
	if len(steps) == 0 {
		return nil, dFinal
	}

	hid := l.HiddenSize
	batch, _ := steps[0].x.Dims()

	dh := mat.NewDense(batch, hid, nil)
	if dFinal.H != nil {
		dh.Add(dh, dFinal.H)
	}

	dc := mat.NewDense(batch, hid, nil)
	if dFinal.C != nil {
		dc.Add(dc, dFinal.C)
	}

	dXs := make([]*mat.Dense, len(steps))

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]

		if t < len(dOuts) && dOuts[t] != nil {
			dh.Add(dh, dOuts[t])
		}

		dA := mat.NewDense(batch, 4*hid, nil)
		dcPrev := mat.NewDense(batch, hid, nil)

		for b := range batch {
			iRow, fRow, gRow, oRow := s.i.RawRowView(b), s.f.RawRowView(b), s.g.RawRowView(b), s.o.RawRowView(b)
			tRow, cpRow := s.tanhC.RawRowView(b), s.cPrev.RawRowView(b)
			dhRow, dcRow := dh.RawRowView(b), dc.RawRowView(b)
			aRow, dcpRow := dA.RawRowView(b), dcPrev.RawRowView(b)

			for k := range hid {
				iv, fv, gv, ov, tv := iRow[k], fRow[k], gRow[k], oRow[k], tRow[k]

				dcv := dcRow[k] + dhRow[k]*ov*(1-tv*tv)
				dov := dhRow[k] * tv

				aRow[k] = dcv * gv * iv * (1 - iv)
				aRow[hid+k] = dcv * cpRow[k] * fv * (1 - fv)
				aRow[2*hid+k] = dcv * iv * (1 - gv*gv)
				aRow[3*hid+k] = dov * ov * (1 - ov)

				dcpRow[k] = dcv * fv
			}
		}

		accumulate(l.WeightIH.Grad, dA.T(), s.x)
		accumulate(l.WeightHH.Grad, dA.T(), s.hPrev)
		addColumnSums(l.BiasIH.Grad, dA)
		addColumnSums(l.BiasHH.Grad, dA)

		var dx mat.Dense
		dx.Mul(dA, l.WeightIH.Value)
		dXs[t] = &dx

		var dhPrev mat.Dense
		dhPrev.Mul(dA, l.WeightHH.Value)

		dh, dc = &dhPrev, dcPrev
	}

	return dXs, State{H: dh, C: dc}
}
