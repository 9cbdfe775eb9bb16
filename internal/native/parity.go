package native

import (
	"fmt"
	"math"

	"github.com/example/go-nmt/internal/runtime/tensor"
)

// Tolerance bounds the numeric drift accepted between two computations of
// the same tensor.
type Tolerance struct {
	Abs float64
	Rel float64
}

// CheckpointTolerance covers float32 storage of float64-trained weights.
var CheckpointTolerance = Tolerance{Abs: 1e-4, Rel: 1e-3}

type TensorParityReport struct {
	Name       string
	ShapeMatch bool
	MaxAbsErr  float64
	MaxRelErr  float64
	Tolerance  Tolerance
	Pass       bool
}

// CompareTensor reports the largest absolute and relative differences
// between got and want. An element passes when it is within either bound,
// so near-zero values are judged by Abs alone.
func CompareTensor(name string, got, want *tensor.Tensor, tol Tolerance) (TensorParityReport, error) {
	r := TensorParityReport{Name: name, Tolerance: tol, Pass: true}
	if got == nil || want == nil {
		return r, fmt.Errorf("native parity: %s got/want tensor must be non-nil", name)
	}

	if !equalShape(got.Shape(), want.Shape()) {
		r.Pass = false
		return r, nil
	}

	r.ShapeMatch = true

	gd := got.RawData()
	wd := want.RawData()

	for i := range gd {
		a := float64(gd[i])
		b := float64(wd[i])

		absErr := math.Abs(a - b)
		r.MaxAbsErr = max(r.MaxAbsErr, absErr)

		relErr := absErr
		if den := math.Abs(b); den > 0 {
			relErr = absErr / den
		}

		r.MaxRelErr = max(r.MaxRelErr, relErr)

		if absErr > tol.Abs && relErr > tol.Rel {
			r.Pass = false
		}
	}

	return r, nil
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
