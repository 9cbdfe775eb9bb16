package seq2seq

import (
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-nmt/internal/dataset"
	"github.com/example/go-nmt/internal/safetensors"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()

	m, err := New(Config{SourceVocab: 6, TargetVocab: 7, EmbeddingDim: 3, HiddenUnits: 4}, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return m
}

func testBatch() dataset.Batch {
	return dataset.Batch{
		Source:    [][]int{{2, 3, 4}, {5, 0, 0}},
		TargetIn:  [][]int{{2, 3, 6, 4}, {2, 5, 0, 0}},
		TargetOut: [][]int{{3, 6, 4, 0}, {5, 4, 0, 0}},
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []Config{
		{SourceVocab: 1, TargetVocab: 5, EmbeddingDim: 2, HiddenUnits: 2},
		{SourceVocab: 5, TargetVocab: 5, EmbeddingDim: 0, HiddenUnits: 2},
		{SourceVocab: 5, TargetVocab: 5, EmbeddingDim: 2, HiddenUnits: -1},
	}

	for _, cfg := range tests {
		if _, err := New(cfg, rand.New(rand.NewPCG(1, 1))); err == nil {
			t.Errorf("New(%+v): want error", cfg)
		}
	}
}

func TestForward_LogitShapes(t *testing.T) {
	m := newTestModel(t)
	b := testBatch()

	logits, err := m.Forward(b.Source, b.TargetIn)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if len(logits) != 4 {
		t.Fatalf("len(logits) = %d; want 4 decoder steps", len(logits))
	}

	for i, l := range logits {
		if r, c := l.Dims(); r != 2 || c != 7 {
			t.Errorf("logits[%d] dims = %dx%d; want 2x7", i, r, c)
		}
	}
}

func TestStep_ShapeErrors(t *testing.T) {
	m := newTestModel(t)

	tests := map[string]dataset.Batch{
		"row count": {Source: [][]int{{2}}, TargetIn: [][]int{{2}, {3}}, TargetOut: [][]int{{2}, {3}}},
		"ragged":    {Source: [][]int{{2, 3}, {4}}, TargetIn: [][]int{{2}, {3}}, TargetOut: [][]int{{2}, {3}}},
		"empty":     {},
		"width":     {Source: [][]int{{2}}, TargetIn: [][]int{{2, 3}}, TargetOut: [][]int{{2}}},
	}

	for name, b := range tests {
		if _, err := m.Step(b, false); !errors.Is(err, ErrShape) {
			t.Errorf("%s: Step error = %v; want ErrShape", name, err)
		}
	}
}

func TestStep_AllPaddingTargets(t *testing.T) {
	m := newTestModel(t)
	b := dataset.Batch{
		Source:    [][]int{{2, 3}},
		TargetIn:  [][]int{{0, 0}},
		TargetOut: [][]int{{0, 0}},
	}

	st, err := m.Step(b, true)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if st.Count != 0 || st.Mean() != 0 || st.Accuracy() != 0 {
		t.Fatalf("stats = %+v; want zero", st)
	}

	for _, p := range m.Params() {
		r, c := p.Grad.Dims()
		for i := range r {
			for j := range c {
				if p.Grad.At(i, j) != 0 {
					t.Fatalf("%s received gradient from an all-padding batch", p.Name)
				}
			}
		}
	}
}

func TestStep_EvalMatchesTrainLoss(t *testing.T) {
	m := newTestModel(t)
	b := testBatch()

	eval, err := m.Step(b, false)
	if err != nil {
		t.Fatalf("Step(eval): %v", err)
	}

	train, err := m.Step(b, true)
	if err != nil {
		t.Fatalf("Step(train): %v", err)
	}

	if eval.Count != 5 {
		t.Errorf("Count = %d; want 5 non-pad targets", eval.Count)
	}

	if math.Abs(eval.Mean()-train.Mean()) > 1e-12 {
		t.Errorf("eval loss %v != train loss %v", eval.Mean(), train.Mean())
	}

	if acc := eval.Accuracy(); acc < 0 || acc > 1 {
		t.Errorf("Accuracy = %v; want within [0,1]", acc)
	}
}

func TestStep_GradientCheck(t *testing.T) {
	m := newTestModel(t)
	b := testBatch()

	m.ZeroGrad()

	if _, err := m.Step(b, true); err != nil {
		t.Fatalf("Step: %v", err)
	}

	loss := func() float64 {
		st, err := m.Step(b, false)
		if err != nil {
			t.Fatal(err)
		}

		return st.Mean()
	}

	const eps = 1e-6

	for _, p := range m.Params() {
		r, c := p.Value.Dims()
		for i := range r {
			// Padding rows are frozen and never receive gradient.
			if i == 0 && (p == m.Encoder.Embedding.Weight || p == m.Decoder.Embedding.Weight) {
				continue
			}

			for j := range c {
				orig := p.Value.At(i, j)

				p.Value.Set(i, j, orig+eps)
				plus := loss()
				p.Value.Set(i, j, orig-eps)
				minus := loss()
				p.Value.Set(i, j, orig)

				num := (plus - minus) / (2 * eps)
				ana := p.Grad.At(i, j)

				if math.Abs(num-ana) > 1e-6+1e-4*math.Max(math.Abs(num), math.Abs(ana)) {
					t.Errorf("%s[%d][%d]: analytic %.8g numeric %.8g", p.Name, i, j, ana, num)
				}
			}
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	m := newTestModel(t)
	path := filepath.Join(t.TempDir(), "best.safetensors")

	info := CheckpointInfo{Epoch: 4, ValLoss: 1.25, RunID: "run-1"}
	if err := SaveCheckpoint(path, m, info); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	st, err := safetensors.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	for _, name := range []string{
		"encoder.embedding.weight",
		"encoder.lstm.weight_ih_l0",
		"encoder.lstm.weight_hh_l0",
		"encoder.lstm.bias_ih_l0",
		"encoder.lstm.bias_hh_l0",
		"decoder.embedding.weight",
		"decoder.lstm.weight_ih_l0",
		"decoder.lstm.weight_hh_l0",
		"decoder.lstm.bias_ih_l0",
		"decoder.lstm.bias_hh_l0",
		"decoder.fc.weight",
		"decoder.fc.bias",
	} {
		if !st.Has(name) {
			t.Errorf("checkpoint missing %q", name)
		}
	}

	st.Close()

	loaded, gotInfo, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}

	if gotInfo != info {
		t.Errorf("info = %+v; want %+v", gotInfo, info)
	}

	if loaded.Config != m.Config {
		t.Errorf("Config = %+v; want %+v", loaded.Config, m.Config)
	}

	b := testBatch()

	want, err := m.Step(b, false)
	if err != nil {
		t.Fatal(err)
	}

	got, err := loaded.Step(b, false)
	if err != nil {
		t.Fatal(err)
	}

	// Weights pass through float32 on disk.
	if math.Abs(want.Mean()-got.Mean()) > 1e-5 {
		t.Errorf("loaded loss = %v; want %v", got.Mean(), want.Mean())
	}
}

func TestLoadCheckpoint_Missing(t *testing.T) {
	if _, _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.safetensors")); err == nil {
		t.Fatal("LoadCheckpoint(missing): want error")
	}
}

func TestLoadCheckpoint_RejectsUnexpectedTensor(t *testing.T) {
	m := newTestModel(t)

	tensors := make([]safetensors.Tensor, 0, len(m.Params())+1)
	for _, p := range m.Params() {
		tensors = append(tensors, safetensors.Tensor{Name: p.Name, Shape: p.Shape(), Data: p.Float32()})
	}

	tensors = append(tensors, safetensors.Tensor{Name: "decoder.attention.weight", Shape: []int64{2}, Data: []float32{1, 2}})

	path := filepath.Join(t.TempDir(), "extra.safetensors")
	if err := safetensors.WriteFile(path, tensors, nil); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := LoadCheckpoint(path); err == nil || !strings.Contains(err.Error(), "decoder.attention.weight") {
		t.Fatalf("LoadCheckpoint(extra tensor) error = %v; want unexpected tensor", err)
	}
}
