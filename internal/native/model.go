// Package native runs saved translation checkpoints on the float32 tensor
// runtime: the encoder-decoder forward pass and greedy decoding.
package native

import (
	"errors"
	"fmt"

	"github.com/example/go-nmt/internal/runtime/tensor"
	"github.com/example/go-nmt/internal/safetensors"
)

// Encoder holds the source embedding and LSTM.
type Encoder struct {
	Embedding *Embedding
	LSTM      *LSTM
}

// Decoder holds the target embedding, LSTM and vocabulary projection.
type Decoder struct {
	Embedding *Embedding
	LSTM      *LSTM
	FC        *Linear
}

// Model is an inference-only copy of a trained encoder-decoder.
type Model struct {
	Encoder *Encoder
	Decoder *Decoder
}

// LoadModel reads a checkpoint file.
func LoadModel(path string) (*Model, error) {
	st, err := safetensors.OpenStore(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return LoadModelFromStore(st)
}

// LoadModelFromStore builds the model from tensors named encoder.* and
// decoder.*.
func LoadModelFromStore(st *safetensors.Store) (*Model, error) {
	vb := NewVarBuilder(st)

	enc, err := loadEncoder(vb.Path("encoder"))
	if err != nil {
		return nil, fmt.Errorf("native: load encoder: %w", err)
	}

	dec, err := loadDecoder(vb.Path("decoder"))
	if err != nil {
		return nil, fmt.Errorf("native: load decoder: %w", err)
	}

	if enc.LSTM.Hidden != dec.LSTM.Hidden {
		return nil, fmt.Errorf("native: encoder hidden %d != decoder hidden %d", enc.LSTM.Hidden, dec.LSTM.Hidden)
	}

	if got := dec.FC.Weight.Shape(); got[1] != dec.LSTM.Hidden || int(got[0]) != dec.Embedding.Num() {
		return nil, fmt.Errorf("native: decoder projection shape %v does not match hidden %d and vocabulary %d",
			got, dec.LSTM.Hidden, dec.Embedding.Num())
	}

	return &Model{Encoder: enc, Decoder: dec}, nil
}

func loadEncoder(vb *VarBuilder) (*Encoder, error) {
	emb, err := loadEmbedding(vb.Path("embedding"))
	if err != nil {
		return nil, err
	}

	lstm, err := loadLSTM(vb.Path("lstm"))
	if err != nil {
		return nil, err
	}

	return &Encoder{Embedding: emb, LSTM: lstm}, nil
}

func loadDecoder(vb *VarBuilder) (*Decoder, error) {
	emb, err := loadEmbedding(vb.Path("embedding"))
	if err != nil {
		return nil, err
	}

	lstm, err := loadLSTM(vb.Path("lstm"))
	if err != nil {
		return nil, err
	}

	if !vb.Has("fc.weight") || !vb.Has("fc.bias") {
		return nil, fmt.Errorf("native: %s.fc projection missing; not a translation checkpoint", vb.prefix)
	}

	fc, err := loadLinear(vb.Path("fc"))
	if err != nil {
		return nil, err
	}

	return &Decoder{Embedding: emb, LSTM: lstm, FC: fc}, nil
}

// Encode runs the encoder over a rectangular batch of source ids and
// returns its final state. Zero-width input yields the zero state.
func (m *Model) Encode(src [][]int) (LSTMState, error) {
	if len(src) == 0 {
		return LSTMState{}, errors.New("native: encode: empty batch")
	}

	state := m.Encoder.LSTM.ZeroState(len(src))
	width := len(src[0])

	for t := range width {
		col, err := column(src, t, width)
		if err != nil {
			return LSTMState{}, fmt.Errorf("native: encode: %w", err)
		}

		x, err := m.Encoder.Embedding.Forward(col)
		if err != nil {
			return LSTMState{}, fmt.Errorf("native: encode step %d: %w", t, err)
		}

		if state, err = m.Encoder.LSTM.Step(x, state); err != nil {
			return LSTMState{}, fmt.Errorf("native: encode step %d: %w", t, err)
		}
	}

	return state, nil
}

// DecodeStep feeds one id per row and returns [batch, vocab] logits and the
// next state.
func (m *Model) DecodeStep(ids []int, state LSTMState) (*tensor.Tensor, LSTMState, error) {
	y, err := m.Decoder.Embedding.Forward(ids)
	if err != nil {
		return nil, LSTMState{}, fmt.Errorf("native: decode: %w", err)
	}

	next, err := m.Decoder.LSTM.Step(y, state)
	if err != nil {
		return nil, LSTMState{}, fmt.Errorf("native: decode: %w", err)
	}

	logits, err := m.Decoder.FC.Forward(next.H)
	if err != nil {
		return nil, LSTMState{}, fmt.Errorf("native: decode: %w", err)
	}

	return logits, next, nil
}

// Forward returns the per-step logits of a teacher-forced pass, the same
// quantity the training model scores.
func (m *Model) Forward(src, tgtIn [][]int) ([]*tensor.Tensor, error) {
	state, err := m.Encode(src)
	if err != nil {
		return nil, err
	}

	if len(tgtIn) != len(src) || len(tgtIn[0]) == 0 {
		return nil, fmt.Errorf("native: forward: target batch %d rows, source %d", len(tgtIn), len(src))
	}

	width := len(tgtIn[0])
	out := make([]*tensor.Tensor, 0, width)

	for t := range width {
		col, err := column(tgtIn, t, width)
		if err != nil {
			return nil, fmt.Errorf("native: forward: %w", err)
		}

		var logits *tensor.Tensor
		if logits, state, err = m.DecodeStep(col, state); err != nil {
			return nil, err
		}

		out = append(out, logits)
	}

	return out, nil
}

func column(rows [][]int, t, width int) ([]int, error) {
	col := make([]int, len(rows))
	for b, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d ids, want %d", b, len(row), width)
		}

		col[b] = row[t]
	}

	return col, nil
}
