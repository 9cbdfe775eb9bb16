// Package seq2seq wires the encoder-decoder translation network: an LSTM
// encoder whose final (hidden, cell) state seeds a teacher-forced LSTM
// decoder with a linear projection onto the target vocabulary.
package seq2seq

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/example/go-nmt/internal/dataset"
	"github.com/example/go-nmt/internal/nn"
	"github.com/example/go-nmt/internal/vocab"
)

// ErrShape is returned for ragged or empty batches.
var ErrShape = errors.New("seq2seq: invalid batch shape")

// Config sizes the network.
type Config struct {
	SourceVocab  int
	TargetVocab  int
	EmbeddingDim int
	HiddenUnits  int
}

func (c Config) validate() error {
	if c.SourceVocab < 2 || c.TargetVocab < 2 {
		return fmt.Errorf("seq2seq: vocabulary sizes %d/%d must include the reserved ids", c.SourceVocab, c.TargetVocab)
	}

	if c.EmbeddingDim <= 0 || c.HiddenUnits <= 0 {
		return fmt.Errorf("seq2seq: embedding dim %d and hidden units %d must be positive", c.EmbeddingDim, c.HiddenUnits)
	}

	return nil
}

// Encoder embeds the padded source batch and runs the LSTM over every
// position, keeping only the final state.
type Encoder struct {
	Embedding *nn.Embedding
	LSTM      *nn.LSTM
}

// Decoder runs the LSTM over the teacher-forced target input from the
// encoder state and scores every step against the target vocabulary.
type Decoder struct {
	Embedding *nn.Embedding
	LSTM      *nn.LSTM
	FC        *nn.Linear
}

// Model is the full encoder-decoder network.
type Model struct {
	Config  Config
	Encoder *Encoder
	Decoder *Decoder
}

// New initializes a model with random weights drawn from rng.
func New(cfg Config, rng *rand.Rand) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Model{
		Config: cfg,
		Encoder: &Encoder{
			Embedding: nn.NewEmbedding("encoder.embedding", cfg.SourceVocab, cfg.EmbeddingDim, vocab.PadID, rng),
			LSTM:      nn.NewLSTM("encoder.lstm", cfg.EmbeddingDim, cfg.HiddenUnits, rng),
		},
		Decoder: &Decoder{
			Embedding: nn.NewEmbedding("decoder.embedding", cfg.TargetVocab, cfg.EmbeddingDim, vocab.PadID, rng),
			LSTM:      nn.NewLSTM("decoder.lstm", cfg.EmbeddingDim, cfg.HiddenUnits, rng),
			FC:        nn.NewLinear("decoder.fc", cfg.HiddenUnits, cfg.TargetVocab, rng),
		},
	}, nil
}

// Params returns every trainable parameter in checkpoint order.
func (m *Model) Params() []*nn.Param {
	ps := m.Encoder.Embedding.Params()
	ps = append(ps, m.Encoder.LSTM.Params()...)
	ps = append(ps, m.Decoder.Embedding.Params()...)
	ps = append(ps, m.Decoder.LSTM.Params()...)

	return append(ps, m.Decoder.FC.Params()...)
}

// ZeroGrad clears every accumulated gradient.
func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// Encode returns the final encoder state for a padded source batch.
func (e *Encoder) Encode(src [][]int, trace *nn.Trace) (nn.State, [][]int, error) {
	cols, err := timeMajor(src)
	if err != nil {
		return nn.State{}, nil, fmt.Errorf("encoder: %w", err)
	}

	xs, err := embed(e.Embedding, cols)
	if err != nil {
		return nn.State{}, nil, fmt.Errorf("encoder: %w", err)
	}

	_, final := e.LSTM.Forward(xs, nn.ZeroState(len(src), e.LSTM.HiddenSize), trace)

	return final, cols, nil
}

// Decode returns per-step hidden outputs and the final state for a padded
// target-input batch starting from init.
func (d *Decoder) Decode(tgtIn [][]int, init nn.State, trace *nn.Trace) ([]*mat.Dense, nn.State, [][]int, error) {
	cols, err := timeMajor(tgtIn)
	if err != nil {
		return nil, nn.State{}, nil, fmt.Errorf("decoder: %w", err)
	}

	if r, _ := init.H.Dims(); r != len(tgtIn) {
		return nil, nn.State{}, nil, fmt.Errorf("decoder: %w: state batch %d, input batch %d", ErrShape, r, len(tgtIn))
	}

	ys, err := embed(d.Embedding, cols)
	if err != nil {
		return nil, nn.State{}, nil, fmt.Errorf("decoder: %w", err)
	}

	outs, final := d.LSTM.Forward(ys, init, trace)

	return outs, final, cols, nil
}

// Forward returns the per-step logits (batch×target vocabulary) of a
// teacher-forced pass.
func (m *Model) Forward(src, tgtIn [][]int) ([]*mat.Dense, error) {
	state, _, err := m.Encoder.Encode(src, nil)
	if err != nil {
		return nil, err
	}

	outs, _, _, err := m.Decoder.Decode(tgtIn, state, nil)
	if err != nil {
		return nil, err
	}

	logits := make([]*mat.Dense, len(outs))
	for t, h := range outs {
		logits[t] = m.Decoder.FC.Forward(h)
	}

	return logits, nil
}

// Step runs one batch. Loss is the mean cross-entropy over non-pad target
// positions. With train set, gradients of that loss are accumulated into the
// parameters; the caller zeroes them and applies the optimizer. A batch with
// no non-pad target yields zero stats and no gradient.
func (m *Model) Step(b dataset.Batch, train bool) (nn.LossStats, error) {
	if len(b.TargetIn) != len(b.Source) || len(b.TargetOut) != len(b.Source) {
		return nn.LossStats{}, fmt.Errorf("%w: %d/%d/%d rows", ErrShape, len(b.Source), len(b.TargetIn), len(b.TargetOut))
	}

	targets, err := timeMajor(b.TargetOut)
	if err != nil {
		return nn.LossStats{}, fmt.Errorf("targets: %w", err)
	}

	var encTrace, decTrace *nn.Trace
	if train {
		encTrace, decTrace = &nn.Trace{}, &nn.Trace{}
	}

	state, srcCols, err := m.Encoder.Encode(b.Source, encTrace)
	if err != nil {
		return nn.LossStats{}, err
	}

	outs, _, tgtCols, err := m.Decoder.Decode(b.TargetIn, state, decTrace)
	if err != nil {
		return nn.LossStats{}, err
	}

	if len(targets) != len(outs) {
		return nn.LossStats{}, fmt.Errorf("%w: target width %d, decoder input width %d", ErrShape, len(targets), len(outs))
	}

	count := 0
	for _, col := range targets {
		for _, id := range col {
			if id != vocab.PadID {
				count++
			}
		}
	}

	if count == 0 {
		return nn.LossStats{}, nil
	}

	scale := 1 / float64(count)

	var total nn.LossStats

	var dOuts []*mat.Dense
	if train {
		dOuts = make([]*mat.Dense, len(outs))
	}

	for t, h := range outs {
		logits := m.Decoder.FC.Forward(h)

		st, dLogits, err := nn.CrossEntropy(logits, targets[t], vocab.PadID, scale, train)
		if err != nil {
			return nn.LossStats{}, fmt.Errorf("step %d: %w", t, err)
		}

		total.Add(st)

		if train {
			dOuts[t] = m.Decoder.FC.Backward(h, dLogits)
		}
	}

	if train {
		dYs, dState := m.Decoder.LSTM.Backward(decTrace, dOuts, nn.State{})
		for t, ids := range tgtCols {
			m.Decoder.Embedding.Backward(ids, dYs[t])
		}

		dXs, _ := m.Encoder.LSTM.Backward(encTrace, nil, dState)
		for t, ids := range srcCols {
			m.Encoder.Embedding.Backward(ids, dXs[t])
		}
	}

	return total, nil
}

// timeMajor transposes a rectangular batch×time id matrix into time×batch
// columns.
func timeMajor(rows [][]int) ([][]int, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrShape)
	}

	width := len(rows[0])
	cols := make([][]int, width)

	for t := range cols {
		cols[t] = make([]int, len(rows))
	}

	for b, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d ids, want %d", ErrShape, b, len(row), width)
		}

		for t, id := range row {
			cols[t][b] = id
		}
	}

	return cols, nil
}

func embed(e *nn.Embedding, cols [][]int) ([]*mat.Dense, error) {
	xs := make([]*mat.Dense, len(cols))
	for t, ids := range cols {
		x, err := e.Forward(ids)
		if err != nil {
			return nil, err
		}

		xs[t] = x
	}

	return xs, nil
}
