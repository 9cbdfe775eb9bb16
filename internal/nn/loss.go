package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LossStats aggregates cross-entropy over the rows that were not ignored.
type LossStats struct {
	Sum     float64 // summed negative log-likelihood
	Count   int     // rows whose target is not the ignore index
	Correct int     // counted rows whose argmax equals the target
}

// Add merges o into s.
func (s *LossStats) Add(o LossStats) {
	s.Sum += o.Sum
	s.Count += o.Count
	s.Correct += o.Correct
}

// Mean returns Sum/Count, or 0 when nothing was counted.
func (s LossStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}

	return s.Sum / float64(s.Count)
}

// Accuracy returns Correct/Count, or 0 when nothing was counted.
func (s LossStats) Accuracy() float64 {
	if s.Count == 0 {
		return 0
	}

	return float64(s.Correct) / float64(s.Count)
}

// CrossEntropy scores every row of logits (batch×classes) against targets.
// Rows whose target equals ignore contribute neither loss nor gradient.
// When withGrad is set it also returns the gradient of scale·Sum w.r.t. the
// logits.
func CrossEntropy(logits *mat.Dense, targets []int, ignore int, scale float64, withGrad bool) (LossStats, *mat.Dense, error) {
	rows, classes := logits.Dims()
	if len(targets) != rows {
		return LossStats{}, nil, fmt.Errorf("nn: %d targets for %d logit rows", len(targets), rows)
	}

	var grad *mat.Dense
	if withGrad {
		grad = mat.NewDense(rows, classes, nil)
	}

	var st LossStats

	for b, target := range targets {
		if target == ignore {
			continue
		}

		if target < 0 || target >= classes {
			return LossStats{}, nil, fmt.Errorf("nn: target %d out of range [0, %d)", target, classes)
		}

		row := logits.RawRowView(b)

		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}

		maxV := row[best]

		var sum float64
		for _, v := range row {
			sum += math.Exp(v - maxV)
		}

		logZ := math.Log(sum) + maxV

		st.Sum += logZ - row[target]
		st.Count++

		if best == target {
			st.Correct++
		}

		if withGrad {
			g := grad.RawRowView(b)
			for j, v := range row {
				g[j] = math.Exp(v-logZ) * scale
			}

			g[target] -= scale
		}
	}

	return st, grad, nil
}
