package seq2seq

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/example/go-nmt/internal/safetensors"
)

// Tensor names that size the network when a checkpoint is loaded.
const (
	sourceEmbeddingName = "encoder.embedding.weight"
	targetEmbeddingName = "decoder.embedding.weight"
	encoderHiddenName   = "encoder.lstm.weight_hh_l0"
)

// CheckpointInfo is the provenance stored in a checkpoint header.
type CheckpointInfo struct {
	Epoch   int
	ValLoss float64
	RunID   string
}

func (i CheckpointInfo) metadata() map[string]string {
	md := map[string]string{
		"epoch":    strconv.Itoa(i.Epoch),
		"val_loss": strconv.FormatFloat(i.ValLoss, 'g', -1, 64),
	}
	if i.RunID != "" {
		md["run_id"] = i.RunID
	}

	return md
}

// SaveCheckpoint writes every parameter of m to path as float32 tensors,
// replacing any existing file atomically.
func SaveCheckpoint(path string, m *Model, info CheckpointInfo) error {
	params := m.Params()
	tensors := make([]safetensors.Tensor, 0, len(params))

	for _, p := range params {
		tensors = append(tensors, safetensors.Tensor{
			Name:  p.Name,
			Shape: p.Shape(),
			Data:  p.Float32(),
		})
	}

	if err := safetensors.WriteFile(path, tensors, info.metadata()); err != nil {
		return fmt.Errorf("seq2seq: save checkpoint: %w", err)
	}

	return nil
}

// InferConfig derives the network dimensions from the tensor shapes in st.
func InferConfig(st *safetensors.Store) (Config, error) {
	src, err := st.Tensor(sourceEmbeddingName)
	if err != nil {
		return Config{}, err
	}

	tgt, err := st.Tensor(targetEmbeddingName)
	if err != nil {
		return Config{}, err
	}

	hh, err := st.Tensor(encoderHiddenName)
	if err != nil {
		return Config{}, err
	}

	if len(src.Shape) != 2 || len(tgt.Shape) != 2 || len(hh.Shape) != 2 {
		return Config{}, fmt.Errorf("seq2seq: checkpoint embeddings and recurrent weights must be rank 2")
	}

	cfg := Config{
		SourceVocab:  int(src.Shape[0]),
		TargetVocab:  int(tgt.Shape[0]),
		EmbeddingDim: int(src.Shape[1]),
		HiddenUnits:  int(hh.Shape[1]),
	}

	return cfg, cfg.validate()
}

// LoadCheckpoint rebuilds a model from a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(path string) (*Model, CheckpointInfo, error) {
	st, err := safetensors.OpenStore(path)
	if err != nil {
		return nil, CheckpointInfo{}, err
	}
	defer st.Close()

	cfg, err := InferConfig(st)
	if err != nil {
		return nil, CheckpointInfo{}, err
	}

	// Every parameter is overwritten below; the seed only fills placeholders.
	m, err := New(cfg, rand.New(rand.NewPCG(0, 0)))
	if err != nil {
		return nil, CheckpointInfo{}, err
	}

	params := m.Params()
	known := make(map[string]bool, len(params))

	for _, p := range params {
		known[p.Name] = true
	}

	for _, name := range st.Names() {
		if !known[name] {
			return nil, CheckpointInfo{}, fmt.Errorf("seq2seq: load checkpoint: unexpected tensor %q", name)
		}
	}

	for _, p := range params {
		t, err := st.TensorWithShape(p.Name, p.Shape())
		if err != nil {
			return nil, CheckpointInfo{}, fmt.Errorf("seq2seq: load checkpoint: %w", err)
		}

		if !p.SetFloat32(t.Data) {
			return nil, CheckpointInfo{}, fmt.Errorf("seq2seq: load checkpoint: tensor %q has %d values", p.Name, len(t.Data))
		}
	}

	var info CheckpointInfo
	if v, ok := st.Metadata("epoch"); ok {
		info.Epoch, _ = strconv.Atoi(v)
	}

	if v, ok := st.Metadata("val_loss"); ok {
		info.ValLoss, _ = strconv.ParseFloat(v, 64)
	}

	info.RunID, _ = st.Metadata("run_id")

	return m, info, nil
}
