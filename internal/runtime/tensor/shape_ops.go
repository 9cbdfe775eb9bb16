package tensor

import (
	"errors"
	"fmt"
)

// Narrow returns elements [start, start+length) along dim.
func (t *Tensor) Narrow(dim int, start, length int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: narrow on nil tensor")
	}

	dim, err := normalizeDim(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("tensor: narrow: %w", err)
	}

	if start < 0 || length < 0 || start+length > t.shape[dim] {
		return nil, fmt.Errorf("tensor: narrow: range [%d:%d] out of bounds for dim %d size %d", start, start+length, dim, t.shape[dim])
	}

	outer, size, inner := splitAt(t.shape, dim)
	block := int(length) * inner
	out := make([]float32, 0, outer*block)

	for o := range outer {
		base := (o*size + int(start)) * inner
		out = append(out, t.data[base:base+block]...)
	}

	outShape := append([]int64(nil), t.shape...)
	outShape[dim] = length

	return newOwned(out, outShape), nil
}

// Gather selects indices along dim, in order. Gather(0, ids) on a
// [vocab, dim] table is an embedding lookup.
func (t *Tensor) Gather(dim int, indices []int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: gather on nil tensor")
	}

	if len(indices) == 0 {
		return nil, errors.New("tensor: gather requires at least one index")
	}

	dim, err := normalizeDim(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("tensor: gather: %w", err)
	}

	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[dim] {
			return nil, fmt.Errorf("tensor: gather index %d (%d) out of range for dim %d size %d", i, idx, dim, t.shape[dim])
		}
	}

	outer, size, inner := splitAt(t.shape, dim)
	out := make([]float32, 0, outer*len(indices)*inner)

	for o := range outer {
		for _, idx := range indices {
			base := (o*size + int(idx)) * inner
			out = append(out, t.data[base:base+inner]...)
		}
	}

	outShape := append([]int64(nil), t.shape...)
	outShape[dim] = int64(len(indices))

	return newOwned(out, outShape), nil
}
