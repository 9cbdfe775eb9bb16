package train

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-nmt/internal/dataset"
	"github.com/example/go-nmt/internal/seq2seq"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// copyTask builds a dataset whose target repeats the source between
// <sos>=2 and <eos>=3.
func copyTask(t *testing.T, n int, rng *rand.Rand) *dataset.Dataset {
	t.Helper()

	var src, tgtIn, tgtOut [][]int

	for range n {
		l := 1 + rng.IntN(3)
		s := make([]int, l)

		for i := range s {
			s[i] = 4 + rng.IntN(4)
		}

		src = append(src, s)
		tgtIn = append(tgtIn, append([]int{2}, s...))
		tgtOut = append(tgtOut, append(append([]int(nil), s...), 3))
	}

	ds, err := dataset.New(src, tgtIn, tgtOut)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}

	return ds
}

func newModel(t *testing.T) *seq2seq.Model {
	t.Helper()

	m, err := seq2seq.New(seq2seq.Config{SourceVocab: 8, TargetVocab: 8, EmbeddingDim: 8, HiddenUnits: 16}, rand.New(rand.NewPCG(5, 6)))
	if err != nil {
		t.Fatalf("seq2seq.New: %v", err)
	}

	return m
}

func TestNew_Validation(t *testing.T) {
	m := newModel(t)
	ds := copyTask(t, 4, rand.New(rand.NewPCG(1, 1)))

	tests := map[string][]Option{
		"batch size": {WithBatchSize(0)},
		"epochs":     {WithEpochs(-1)},
		"lr":         {WithLearningRate(0)},
	}

	for name, opts := range tests {
		if _, err := New(m, ds, ds, opts...); err == nil {
			t.Errorf("%s: New: want error", name)
		}
	}

	if _, err := New(nil, ds, ds); err == nil {
		t.Error("New(nil model): want error")
	}
}

func TestRun_OneEpochWritesCheckpoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	all := copyTask(t, 100, rng)
	trainIdx, valIdx := dataset.Split(all.Len(), 0.1, rng)

	path := filepath.Join(t.TempDir(), "best.safetensors")

	tr, err := New(newModel(t), all.Subset(trainIdx), all.Subset(valIdx),
		WithEpochs(1),
		WithBatchSize(16),
		WithCheckpoint(path),
		WithRand(rng),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reports, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(reports) != 1 {
		t.Fatalf("len(reports) = %d; want 1", len(reports))
	}

	r := reports[0]
	if !r.Saved {
		t.Error("first epoch should always improve on +Inf and save")
	}

	for name, acc := range map[string]float64{"train": r.Train.Accuracy, "val": r.Val.Accuracy} {
		if acc < 0 || acc > 1 {
			t.Errorf("%s accuracy = %v; want within [0,1]", name, acc)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("checkpoint not written: %v", err)
	}

	_, info, err := seq2seq.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}

	if info.Epoch != 1 || info.ValLoss != r.Val.Loss {
		t.Errorf("checkpoint info = %+v; want epoch 1, val loss %v", info, r.Val.Loss)
	}
}

func TestRun_LossDecreases(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	ds := copyTask(t, 16, rng)

	tr, err := New(newModel(t), ds, ds,
		WithEpochs(25),
		WithBatchSize(4),
		WithLearningRate(0.01),
		WithCheckpoint(filepath.Join(t.TempDir(), "best.safetensors")),
		WithRand(rng),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reports, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	first, last := reports[0].Train.Loss, reports[len(reports)-1].Train.Loss
	if last >= first {
		t.Errorf("train loss went from %v to %v; want a decrease", first, last)
	}

	best := reports[0].Val.Loss
	for _, r := range reports[1:] {
		if r.Saved != (r.Val.Loss < best) {
			t.Errorf("epoch %d: Saved = %v with val loss %v against best %v", r.Epoch, r.Saved, r.Val.Loss, best)
		}

		best = min(best, r.Val.Loss)
	}

	if tr.BestLoss() != best {
		t.Errorf("BestLoss() = %v; want %v", tr.BestLoss(), best)
	}
}

func TestRun_Canceled(t *testing.T) {
	ds := copyTask(t, 8, rand.New(rand.NewPCG(1, 2)))

	tr, err := New(newModel(t), ds, ds, WithEpochs(3), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v; want context.Canceled", err)
	}

	if len(reports) != 0 {
		t.Errorf("len(reports) = %d; want 0", len(reports))
	}
}

func TestNew_EmptyDataset(t *testing.T) {
	ds := copyTask(t, 4, rand.New(rand.NewPCG(1, 1)))

	empty, err := dataset.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}

	if _, err := New(newModel(t), ds, empty); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("New(empty val) error = %v; want ErrEmptyDataset", err)
	}

	if _, err := New(newModel(t), empty, ds); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("New(empty train) error = %v; want ErrEmptyDataset", err)
	}
}

func TestEvaluate_Empty(t *testing.T) {
	ds, err := dataset.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}

	got, err := Evaluate(context.Background(), newModel(t), ds, 4)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got != (Metrics{}) {
		t.Errorf("Evaluate(empty) = %+v; want zero", got)
	}
}
