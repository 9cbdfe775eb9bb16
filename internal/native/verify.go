package native

import (
	"fmt"

	"github.com/example/go-nmt/internal/runtime/tensor"
	"github.com/example/go-nmt/internal/seq2seq"
)

// VerifyCheckpoint loads path with both the training model and the float32
// runtime, runs a fixed teacher-forced probe batch through each and compares
// the logits step by step.
func VerifyCheckpoint(path string) ([]TensorParityReport, error) {
	ref, _, err := seq2seq.LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}

	m, err := LoadModel(path)
	if err != nil {
		return nil, err
	}

	src, tgtIn := probeBatch(ref.Config.SourceVocab, ref.Config.TargetVocab)

	want, err := ref.Forward(src, tgtIn)
	if err != nil {
		return nil, fmt.Errorf("native verify: reference forward: %w", err)
	}

	got, err := m.Forward(src, tgtIn)
	if err != nil {
		return nil, fmt.Errorf("native verify: runtime forward: %w", err)
	}

	reports := make([]TensorParityReport, len(want))

	for step, w := range want {
		r, c := w.Dims()
		data := make([]float32, 0, r*c)

		for i := range r {
			for _, v := range w.RawRowView(i) {
				data = append(data, float32(v))
			}
		}

		wt, err := tensor.New(data, []int64{int64(r), int64(c)})
		if err != nil {
			return nil, err
		}

		if reports[step], err = CompareTensor(fmt.Sprintf("logits[%d]", step), got[step], wt, CheckpointTolerance); err != nil {
			return nil, err
		}
	}

	return reports, nil
}

// probeBatch returns two rows of source and target ids that walk through
// the vocabularies, with trailing padding in the second row.
func probeBatch(srcVocab, tgtVocab int) (src, tgtIn [][]int) {
	id := func(i, n int) int { return 1 + i%(n-1) }

	src = [][]int{
		{id(1, srcVocab), id(2, srcVocab), id(3, srcVocab), id(4, srcVocab)},
		{id(5, srcVocab), id(6, srcVocab), 0, 0},
	}
	tgtIn = [][]int{
		{id(1, tgtVocab), id(7, tgtVocab), id(8, tgtVocab)},
		{id(1, tgtVocab), id(9, tgtVocab), 0},
	}

	return src, tgtIn
}
