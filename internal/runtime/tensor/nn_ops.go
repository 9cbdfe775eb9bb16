package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Linear applies y = x * W^T + b where weight shape is [out, in]. Output
// units are split across the configured workers.
func Linear(x, weight, bias *Tensor) (*Tensor, error) {
	if x == nil || weight == nil {
		return nil, errors.New("tensor: linear requires non-nil x and weight")
	}

	if x.Rank() < 1 {
		return nil, errors.New("tensor: linear requires x rank >= 1")
	}

	if weight.Rank() != 2 {
		return nil, fmt.Errorf("tensor: linear weight must be rank 2, got %d", weight.Rank())
	}

	in := x.shape[x.Rank()-1]

	out := weight.shape[0]
	if weight.shape[1] != in {
		return nil, fmt.Errorf("tensor: linear mismatch: x last dim %d, weight in dim %d", in, weight.shape[1])
	}

	if bias != nil {
		if bias.Rank() != 1 || bias.shape[0] != out {
			return nil, fmt.Errorf("tensor: linear bias shape %v does not match out dim %d", bias.shape, out)
		}
	}

	inI := int(in)
	outI := int(out)

	batch := 0
	if inI > 0 {
		batch = len(x.data) / inI
	}

	outData := make([]float32, batch*outI)
	wData := weight.data

	parallelFor(outI, getWorkers(), func(lo, hi int) {
		for b := range batch {
			xRow := x.data[b*inI : (b+1)*inI]
			yRow := outData[b*outI : (b+1)*outI]

			for o := lo; o < hi; o++ {
				sum := dotF32(xRow, wData[o*inI:(o+1)*inI])
				if bias != nil {
					sum += bias.data[o]
				}

				yRow[o] = sum
			}
		}
	})

	outShape := make([]int64, x.Rank())
	copy(outShape, x.shape[:x.Rank()-1])
	outShape[x.Rank()-1] = out

	return newOwned(outData, outShape), nil
}

// Add returns a + b for tensors of identical shape.
func Add(a, b *Tensor) (*Tensor, error) {
	return zipSameShape(a, b, "add", func(x, y float32) float32 { return x + y })
}

// Mul returns the elementwise product of tensors of identical shape.
func Mul(a, b *Tensor) (*Tensor, error) {
	return zipSameShape(a, b, "mul", func(x, y float32) float32 { return x * y })
}

// Sigmoid returns the logistic function of every element.
func Sigmoid(x *Tensor) *Tensor {
	return mapElems(x, func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	})
}

// Tanh returns the hyperbolic tangent of every element.
func Tanh(x *Tensor) *Tensor {
	return mapElems(x, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// ArgmaxLastDim returns, for every row of the last dimension, the index of
// its largest value. Ties resolve to the lowest index.
func ArgmaxLastDim(x *Tensor) ([]int, error) {
	if x == nil || x.Rank() < 1 {
		return nil, errors.New("tensor: argmax requires rank >= 1")
	}

	width := int(x.shape[x.Rank()-1])
	if width == 0 {
		return nil, errors.New("tensor: argmax over empty dimension")
	}

	rows := len(x.data) / width
	out := make([]int, rows)

	for r := range rows {
		row := x.data[r*width : (r+1)*width]
		best := 0

		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}

		out[r] = best
	}

	return out, nil
}

func zipSameShape(a, b *Tensor, op string, fn func(x, y float32) float32) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("tensor: %s requires non-nil tensors", op)
	}

	if !equalShape(a.shape, b.shape) {
		return nil, fmt.Errorf("tensor: %s shape mismatch %v vs %v", op, a.shape, b.shape)
	}

	out := make([]float32, len(a.data))
	for i := range out {
		out[i] = fn(a.data[i], b.data[i])
	}

	return newOwned(out, a.Shape()), nil
}

func mapElems(x *Tensor, fn func(float32) float32) *Tensor {
	if x == nil {
		return nil
	}

	out := make([]float32, len(x.data))
	for i, v := range x.data {
		out[i] = fn(v)
	}

	return newOwned(out, x.Shape())
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
