package native

import (
	"errors"
	"fmt"

	"github.com/example/go-nmt/internal/runtime/tensor"
)

// Linear is a dense projection y = x·Wᵀ + b.
type Linear struct {
	Weight *tensor.Tensor // [out, in]
	Bias   *tensor.Tensor // [out]
}

func loadLinear(vb *VarBuilder) (*Linear, error) {
	w, err := vb.Tensor("weight")
	if err != nil {
		return nil, err
	}

	if w.Rank() != 2 {
		return nil, fmt.Errorf("native: linear %q weight must be rank-2, got %v", vb.prefix, w.Shape())
	}

	b, err := vb.Tensor("bias", w.Shape()[0])
	if err != nil {
		return nil, err
	}

	return &Linear{Weight: w, Bias: b}, nil
}

// Forward applies the projection to every row of x.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if l == nil || l.Weight == nil {
		return nil, errors.New("native: linear is not initialized")
	}

	return tensor.Linear(x, l.Weight, l.Bias)
}

// Embedding is a [num, dim] lookup table.
type Embedding struct {
	Weight *tensor.Tensor
}

func loadEmbedding(vb *VarBuilder) (*Embedding, error) {
	w, err := vb.Tensor("weight")
	if err != nil {
		return nil, err
	}

	if w.Rank() != 2 {
		return nil, fmt.Errorf("native: embedding %q weight must be rank-2, got %v", vb.prefix, w.Shape())
	}

	return &Embedding{Weight: w}, nil
}

// Num returns the table size.
func (e *Embedding) Num() int { return int(e.Weight.Shape()[0]) }

// Forward returns the [len(ids), dim] rows for ids.
func (e *Embedding) Forward(ids []int) (*tensor.Tensor, error) {
	idx := make([]int64, len(ids))
	for i, id := range ids {
		idx[i] = int64(id)
	}

	return e.Weight.Gather(0, idx)
}

// LSTMState is the [batch, hidden] recurrent state.
type LSTMState struct {
	H *tensor.Tensor
	C *tensor.Tensor
}

// LSTM is a single-layer LSTM with gate order input, forget, cell, output.
type LSTM struct {
	WeightIH *tensor.Tensor // [4H, in]
	WeightHH *tensor.Tensor // [4H, H]
	BiasIH   *tensor.Tensor // [4H]
	BiasHH   *tensor.Tensor // [4H]
	Hidden   int64
}

func loadLSTM(vb *VarBuilder) (*LSTM, error) {
	hh, err := vb.Tensor("weight_hh_l0")
	if err != nil {
		return nil, err
	}

	shape := hh.Shape()
	if len(shape) != 2 || shape[0] != 4*shape[1] {
		return nil, fmt.Errorf("native: lstm %q recurrent weight shape %v, want [4H, H]", vb.prefix, shape)
	}

	hidden := shape[1]

	ih, err := vb.Tensor("weight_ih_l0")
	if err != nil {
		return nil, err
	}

	if ih.Rank() != 2 || ih.Shape()[0] != 4*hidden {
		return nil, fmt.Errorf("native: lstm %q input weight shape %v, want [%d, in]", vb.prefix, ih.Shape(), 4*hidden)
	}

	bih, err := vb.Tensor("bias_ih_l0", 4*hidden)
	if err != nil {
		return nil, err
	}

	bhh, err := vb.Tensor("bias_hh_l0", 4*hidden)
	if err != nil {
		return nil, err
	}

	return &LSTM{WeightIH: ih, WeightHH: hh, BiasIH: bih, BiasHH: bhh, Hidden: hidden}, nil
}

// ZeroState returns an all-zero state for batch rows.
func (l *LSTM) ZeroState(batch int) LSTMState {
	h, _ := tensor.Zeros([]int64{int64(batch), l.Hidden})
	c, _ := tensor.Zeros([]int64{int64(batch), l.Hidden})

	return LSTMState{H: h, C: c}
}

// Step advances the state by one [batch, in] input.
func (l *LSTM) Step(x *tensor.Tensor, s LSTMState) (LSTMState, error) {
	gx, err := tensor.Linear(x, l.WeightIH, l.BiasIH)
	if err != nil {
		return LSTMState{}, err
	}

	gh, err := tensor.Linear(s.H, l.WeightHH, l.BiasHH)
	if err != nil {
		return LSTMState{}, err
	}

	gates, err := tensor.Add(gx, gh)
	if err != nil {
		return LSTMState{}, err
	}

	gate := func(k int64) (*tensor.Tensor, error) {
		return gates.Narrow(1, k*l.Hidden, l.Hidden)
	}

	i, err := gate(0)
	if err != nil {
		return LSTMState{}, err
	}

	f, err := gate(1)
	if err != nil {
		return LSTMState{}, err
	}

	g, err := gate(2)
	if err != nil {
		return LSTMState{}, err
	}

	o, err := gate(3)
	if err != nil {
		return LSTMState{}, err
	}

	fc, err := tensor.Mul(tensor.Sigmoid(f), s.C)
	if err != nil {
		return LSTMState{}, err
	}

	ig, err := tensor.Mul(tensor.Sigmoid(i), tensor.Tanh(g))
	if err != nil {
		return LSTMState{}, err
	}

	c, err := tensor.Add(fc, ig)
	if err != nil {
		return LSTMState{}, err
	}

	h, err := tensor.Mul(tensor.Sigmoid(o), tensor.Tanh(c))
	if err != nil {
		return LSTMState{}, err
	}

	return LSTMState{H: h, C: c}, nil
}
