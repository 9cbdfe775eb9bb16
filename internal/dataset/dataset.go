// Package dataset turns encoded token sequences into padded, batched
// training tensors.
package dataset

import (
	"fmt"
	"math/rand/v2"
)

// Dataset holds the padded encoder inputs, decoder inputs and decoder
// targets of a set of samples. Row i of each slice belongs to sample i.
type Dataset struct {
	Source    [][]int
	TargetIn  [][]int
	TargetOut [][]int
}

// New pads the three encoded columns. Each column is padded to its own
// longest row.
func New(source, targetIn, targetOut [][]int) (*Dataset, error) {
	if len(source) != len(targetIn) || len(source) != len(targetOut) {
		return nil, fmt.Errorf("dataset: column lengths differ: source=%d targetIn=%d targetOut=%d",
			len(source), len(targetIn), len(targetOut))
	}

	return &Dataset{
		Source:    Pad(source, 0),
		TargetIn:  Pad(targetIn, 0),
		TargetOut: Pad(targetOut, 0),
	}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Source) }

// Subset returns a dataset holding the rows at indices, in that order. Rows
// are shared, not copied.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{
		Source:    make([][]int, len(indices)),
		TargetIn:  make([][]int, len(indices)),
		TargetOut: make([][]int, len(indices)),
	}

	for i, idx := range indices {
		out.Source[i] = d.Source[idx]
		out.TargetIn[i] = d.TargetIn[idx]
		out.TargetOut[i] = d.TargetOut[idx]
	}

	return out
}

// Batch is a slice of rows from a Dataset.
type Batch struct {
	Source    [][]int
	TargetIn  [][]int
	TargetOut [][]int
}

// Size returns the number of rows in the batch.
func (b Batch) Size() int { return len(b.Source) }

// Batches cuts the dataset into batches of at most size rows. A non-nil rng
// reshuffles the row order first; nil keeps the stored order.
func (d *Dataset) Batches(size int, rng *rand.Rand) []Batch {
	n := d.Len()
	if n == 0 {
		return nil
	}

	if size <= 0 {
		size = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	if rng != nil {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]Batch, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		sub := d.Subset(order[lo:hi])
		batches = append(batches, Batch{Source: sub.Source, TargetIn: sub.TargetIn, TargetOut: sub.TargetOut})
	}

	return batches
}
