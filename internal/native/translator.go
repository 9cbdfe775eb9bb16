package native

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/go-nmt/internal/corpus"
	"github.com/example/go-nmt/internal/runtime/tensor"
	"github.com/example/go-nmt/internal/text"
	"github.com/example/go-nmt/internal/vocab"
)

// DefaultMaxSteps caps the decoded length when no limit is configured.
const DefaultMaxSteps = 50

// Translator greedily decodes sentences with a loaded model.
type Translator struct {
	model    *Model
	src      *vocab.Vocabulary
	tgt      *vocab.Vocabulary
	maxSteps int
	sos, eos int
}

// NewTranslator checks that the vocabularies fit the model. maxSteps <= 0
// selects DefaultMaxSteps.
func NewTranslator(m *Model, src, tgt *vocab.Vocabulary, maxSteps int) (*Translator, error) {
	if m == nil || src == nil || tgt == nil {
		return nil, errors.New("native: translator needs a model and both vocabularies")
	}

	if got, want := src.Size(), m.Encoder.Embedding.Num(); got != want {
		return nil, fmt.Errorf("native: source vocabulary has %d tokens, checkpoint expects %d", got, want)
	}

	if got, want := tgt.Size(), m.Decoder.Embedding.Num(); got != want {
		return nil, fmt.Errorf("native: target vocabulary has %d tokens, checkpoint expects %d", got, want)
	}

	sos, ok := tgt.ID(corpus.StartToken)
	if !ok {
		return nil, fmt.Errorf("native: target vocabulary has no %s token", corpus.StartToken)
	}

	eos, ok := tgt.ID(corpus.EndToken)
	if !ok {
		return nil, fmt.Errorf("native: target vocabulary has no %s token", corpus.EndToken)
	}

	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	return &Translator{model: m, src: src, tgt: tgt, maxSteps: maxSteps, sos: sos, eos: eos}, nil
}

// Translate splits input into sentences and decodes each one.
func (tr *Translator) Translate(ctx context.Context, input string) (string, error) {
	sentences := text.Sentences(input)
	out := make([]string, 0, len(sentences))

	for _, s := range sentences {
		tokens, err := tr.TranslateTokens(ctx, text.Tokenize(s))
		if err != nil {
			return "", err
		}

		if len(tokens) > 0 {
			out = append(out, strings.Join(tokens, " "))
		}
	}

	return strings.Join(out, " "), nil
}

// TranslateTokens decodes one normalized token sequence. Decoding starts
// from the start token and stops at the end token or after maxSteps tokens;
// the end token is not returned.
func (tr *Translator) TranslateTokens(ctx context.Context, tokens []string) ([]string, error) {
	state := tr.model.Encoder.LSTM.ZeroState(1)

	if len(tokens) > 0 {
		var err error
		if state, err = tr.model.Encode([][]int{tr.src.Encode(tokens)}); err != nil {
			return nil, err
		}
	}

	var (
		out    []string
		logits *tensor.Tensor
		err    error
	)

	next := tr.sos
	for range tr.maxSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if logits, state, err = tr.model.DecodeStep([]int{next}, state); err != nil {
			return nil, err
		}

		best, err := tensor.ArgmaxLastDim(logits)
		if err != nil {
			return nil, err
		}

		next = best[0]
		if next == tr.eos {
			break
		}

		out = append(out, tr.tgt.Token(next))
	}

	return out, nil
}
