// Package pipeline assembles a training run from its parts: corpus,
// vocabularies, padded dataset, split, model and trainer, built in that
// order from explicit Options.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/example/go-nmt/internal/config"
	"github.com/example/go-nmt/internal/corpus"
	"github.com/example/go-nmt/internal/dataset"
	"github.com/example/go-nmt/internal/seq2seq"
	"github.com/example/go-nmt/internal/train"
	"github.com/example/go-nmt/internal/vocab"
)

// Vocabulary file names written next to the checkpoint.
const (
	SourceVocabFile = "src_vocab.json"
	TargetVocabFile = "tgt_vocab.json"
)

// ErrEmptySplit is returned when the train/validation split leaves either
// side without samples.
var ErrEmptySplit = errors.New("pipeline: empty train or validation split")

// Options holds everything a run needs. Zero values are not defaulted;
// build Options with FromConfig.
type Options struct {
	CorpusPath     string
	CheckpointPath string
	VocabDir       string

	MaxSamples  int
	ValFraction float64
	Seed        uint64

	EmbeddingDim int
	HiddenUnits  int

	Epochs       int
	BatchSize    int
	LearningRate float64

	Target string
	Logger *slog.Logger
}

// FromConfig maps loaded configuration onto Options.
func FromConfig(cfg config.Config) Options {
	return Options{
		CorpusPath:     cfg.Paths.Corpus,
		CheckpointPath: cfg.Paths.Checkpoint,
		VocabDir:       cfg.Paths.VocabDir,
		MaxSamples:     cfg.Data.MaxSamples,
		ValFraction:    cfg.Data.ValFraction,
		Seed:           cfg.Data.Seed,
		EmbeddingDim:   cfg.Model.EmbeddingDim,
		HiddenUnits:    cfg.Model.HiddenUnits,
		Epochs:         cfg.Train.Epochs,
		BatchSize:      cfg.Train.BatchSize,
		LearningRate:   cfg.Train.LearningRate,
		Target:         cfg.Runtime.Target,
	}
}

// Result summarizes a finished run.
type Result struct {
	RunID           string
	Samples         int
	TrainSize       int
	ValSize         int
	SourceVocab     *vocab.Vocabulary
	TargetVocab     *vocab.Vocabulary
	Reports         []train.EpochReport
	BestValLoss     float64
	CheckpointPath  string
	SourceVocabPath string
	TargetVocabPath string
}

// VocabPaths returns where the source and target vocabularies of a
// checkpoint live. An empty vocabDir means the checkpoint's directory.
func VocabPaths(checkpoint, vocabDir string) (src, tgt string) {
	if vocabDir == "" {
		vocabDir = filepath.Dir(checkpoint)
	}

	return filepath.Join(vocabDir, SourceVocabFile), filepath.Join(vocabDir, TargetVocabFile)
}

// BuildVocabularies builds the source vocabulary from source sentences and
// the target vocabulary from decoder inputs and targets together, so both
// the start and end markers receive ids.
func BuildVocabularies(samples []corpus.Sample) (src, tgt *vocab.Vocabulary) {
	source, targetIn, targetOut := corpus.Columns(samples)

	target := make([][]string, 0, len(targetIn)+len(targetOut))
	target = append(target, targetIn...)
	target = append(target, targetOut...)

	return vocab.Build(source), vocab.Build(target)
}

// Run executes a full training run. On cancellation the partial result is
// returned with the context error; the checkpoint holds the best epoch so
// far.
func Run(ctx context.Context, opts Options) (Result, error) {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: run id: %w", err)
	}

	res := Result{RunID: id.String(), CheckpointPath: opts.CheckpointPath}
	log := base.With("run", res.RunID)

	if opts.CheckpointPath == "" {
		return res, errors.New("pipeline: checkpoint path is required")
	}

	if err := config.ValidateValFraction(opts.ValFraction); err != nil {
		return res, fmt.Errorf("pipeline: %w", err)
	}

	samples, err := corpus.LoadFile(opts.CorpusPath, opts.MaxSamples)
	if err != nil {
		return res, err
	}

	if len(samples) == 0 {
		return res, fmt.Errorf("pipeline: corpus %s has no records", opts.CorpusPath)
	}

	res.Samples = len(samples)
	log.Info("corpus loaded", "path", opts.CorpusPath, "samples", len(samples))

	srcVocab, tgtVocab := BuildVocabularies(samples)
	res.SourceVocab, res.TargetVocab = srcVocab, tgtVocab
	log.Info("vocabularies built", "source", srcVocab.Size(), "target", tgtVocab.Size())

	source, targetIn, targetOut := corpus.Columns(samples)

	all, err := dataset.New(srcVocab.EncodeAll(source), tgtVocab.EncodeAll(targetIn), tgtVocab.EncodeAll(targetOut))
	if err != nil {
		return res, fmt.Errorf("pipeline: %w", err)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	trainIdx, valIdx := dataset.Split(all.Len(), opts.ValFraction, rng)
	res.TrainSize, res.ValSize = len(trainIdx), len(valIdx)

	if res.TrainSize == 0 || res.ValSize == 0 {
		return res, fmt.Errorf("%w: %d samples with val fraction %g give %d train / %d val",
			ErrEmptySplit, all.Len(), opts.ValFraction, res.TrainSize, res.ValSize)
	}

	log.Info("dataset split",
		"train", res.TrainSize,
		"val", res.ValSize,
		"source_len", dataset.MaxLen(all.Source),
		"target_len", dataset.MaxLen(all.TargetIn),
	)

	if err := os.MkdirAll(filepath.Dir(opts.CheckpointPath), 0o755); err != nil {
		return res, fmt.Errorf("pipeline: create checkpoint dir: %w", err)
	}

	res.SourceVocabPath, res.TargetVocabPath = VocabPaths(opts.CheckpointPath, opts.VocabDir)
	if err := os.MkdirAll(filepath.Dir(res.SourceVocabPath), 0o755); err != nil {
		return res, fmt.Errorf("pipeline: create vocab dir: %w", err)
	}

	if err := srcVocab.Save(res.SourceVocabPath); err != nil {
		return res, err
	}

	if err := tgtVocab.Save(res.TargetVocabPath); err != nil {
		return res, err
	}

	model, err := seq2seq.New(seq2seq.Config{
		SourceVocab:  srcVocab.Size(),
		TargetVocab:  tgtVocab.Size(),
		EmbeddingDim: opts.EmbeddingDim,
		HiddenUnits:  opts.HiddenUnits,
	}, rng)
	if err != nil {
		return res, err
	}

	log.Info("training",
		"target", opts.Target,
		"epochs", opts.Epochs,
		"batch_size", opts.BatchSize,
		"learning_rate", opts.LearningRate,
		"embedding_dim", opts.EmbeddingDim,
		"hidden_units", opts.HiddenUnits,
	)

	trainer, err := train.New(model, all.Subset(trainIdx), all.Subset(valIdx),
		train.WithEpochs(opts.Epochs),
		train.WithBatchSize(opts.BatchSize),
		train.WithLearningRate(opts.LearningRate),
		train.WithCheckpoint(opts.CheckpointPath),
		train.WithRunID(res.RunID),
		train.WithRand(rng),
		train.WithLogger(base),
	)
	if err != nil {
		return res, err
	}

	res.Reports, err = trainer.Run(ctx)
	res.BestValLoss = trainer.BestLoss()

	return res, err
}
