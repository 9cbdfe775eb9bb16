package nn

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Embedding maps integer ids to dense rows. The row at PaddingIdx starts at
// zero and never receives gradient.
type Embedding struct {
	Weight     *Param
	PaddingIdx int
}

// NewEmbedding creates a num×dim table initialized from N(0, 1).
func NewEmbedding(name string, num, dim, paddingIdx int, rng *rand.Rand) *Embedding {
	w := newParam(name+".weight", num, dim)
	fillNormal(w.Value, rng)

	if paddingIdx >= 0 && paddingIdx < num {
		clear(w.Value.RawRowView(paddingIdx))
	}

	return &Embedding{Weight: w, PaddingIdx: paddingIdx}
}

// Num returns the number of rows in the table.
func (e *Embedding) Num() int {
	r, _ := e.Weight.Value.Dims()
	return r
}

// Dim returns the embedding width.
func (e *Embedding) Dim() int {
	_, c := e.Weight.Value.Dims()
	return c
}

// Forward gathers one row per id into a len(ids)×Dim matrix.
func (e *Embedding) Forward(ids []int) (*mat.Dense, error) {
	if len(ids) == 0 {
		return nil, errors.New("nn: embedding lookup with no ids")
	}

	num := e.Num()
	out := mat.NewDense(len(ids), e.Dim(), nil)

	for b, id := range ids {
		if id < 0 || id >= num {
			return nil, fmt.Errorf("nn: embedding id %d out of range [0, %d)", id, num)
		}

		copy(out.RawRowView(b), e.Weight.Value.RawRowView(id))
	}

	return out, nil
}

// Backward scatters grad rows back onto the table gradient.
func (e *Embedding) Backward(ids []int, grad *mat.Dense) {
	for b, id := range ids {
		if id == e.PaddingIdx {
			continue
		}

		dst := e.Weight.Grad.RawRowView(id)
		for j, v := range grad.RawRowView(b) {
			dst[j] += v
		}
	}
}

// Params returns the trainable parameters.
func (e *Embedding) Params() []*Param { return []*Param{e.Weight} }
