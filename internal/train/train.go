// Package train runs the epoch loop of the translation model: shuffled
// mini-batches with Adam updates, evaluation of both splits without
// gradients, and a checkpoint whenever validation loss strictly improves.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/example/go-nmt/internal/dataset"
	"github.com/example/go-nmt/internal/nn"
	"github.com/example/go-nmt/internal/seq2seq"
)

// ErrEmptyDataset is returned by New when the training or validation set
// has no samples.
var ErrEmptyDataset = errors.New("train: empty dataset")

// Defaults of the reference training setup.
const (
	DefaultEpochs       = 30
	DefaultBatchSize    = 128
	DefaultLearningRate = 0.001
)

// Metrics summarizes one pass over a dataset. Loss is the mean of per-batch
// losses; Accuracy is correct predictions over all non-pad targets.
type Metrics struct {
	Loss     float64
	Accuracy float64
}

// EpochReport is the outcome of one epoch.
type EpochReport struct {
	Epoch    int
	Train    Metrics
	Val      Metrics
	Saved    bool
	Duration time.Duration
}

type options struct {
	epochs         int
	batchSize      int
	learningRate   float64
	checkpointPath string
	runID          string
	rng            *rand.Rand
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		epochs:       DefaultEpochs,
		batchSize:    DefaultBatchSize,
		learningRate: DefaultLearningRate,
		logger:       slog.Default(),
	}
}

// Option configures a Trainer.
type Option func(*options)

// WithEpochs sets the fixed number of epochs.
func WithEpochs(n int) Option {
	return func(o *options) { o.epochs = n }
}

// WithBatchSize sets the mini-batch size for training and evaluation.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithLearningRate sets the Adam step size.
func WithLearningRate(lr float64) Option {
	return func(o *options) { o.learningRate = lr }
}

// WithCheckpoint sets where the best model is written. Empty disables
// checkpointing.
func WithCheckpoint(path string) Option {
	return func(o *options) { o.checkpointPath = path }
}

// WithRunID tags checkpoints and log records with a run identifier.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithRand sets the RNG used to shuffle training batches.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithLogger sets the logger for per-epoch records.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Trainer owns the optimizer state for one model.
type Trainer struct {
	model *seq2seq.Model
	train *dataset.Dataset
	val   *dataset.Dataset
	adam  *nn.Adam
	opts  options
	best  float64
}

// New returns a Trainer for model over the given splits.
func New(model *seq2seq.Model, trainSet, valSet *dataset.Dataset, optFns ...Option) (*Trainer, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if model == nil || trainSet == nil || valSet == nil {
		return nil, errors.New("train: model and both datasets are required")
	}

	if trainSet.Len() == 0 || valSet.Len() == 0 {
		return nil, fmt.Errorf("%w: %d train / %d val samples", ErrEmptyDataset, trainSet.Len(), valSet.Len())
	}

	if opts.epochs < 0 {
		return nil, fmt.Errorf("train: epochs must be >= 0, got %d", opts.epochs)
	}

	if opts.batchSize <= 0 {
		return nil, fmt.Errorf("train: batch size must be > 0, got %d", opts.batchSize)
	}

	if opts.learningRate <= 0 {
		return nil, fmt.Errorf("train: learning rate must be > 0, got %g", opts.learningRate)
	}

	if opts.rng == nil {
		opts.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Trainer{
		model: model,
		train: trainSet,
		val:   valSet,
		adam:  nn.NewAdam(opts.learningRate),
		opts:  opts,
		best:  math.Inf(1),
	}, nil
}

// BestLoss returns the lowest validation loss seen so far.
func (t *Trainer) BestLoss() float64 { return t.best }

// Run trains for the configured number of epochs. The context is checked
// between batches; on cancellation the reports of finished epochs are
// returned together with the context error.
func (t *Trainer) Run(ctx context.Context) ([]EpochReport, error) {
	reports := make([]EpochReport, 0, t.opts.epochs)
	log := t.opts.logger
	if t.opts.runID != "" {
		log = log.With("run", t.opts.runID)
	}

	for epoch := 1; epoch <= t.opts.epochs; epoch++ {
		start := time.Now()

		if err := t.epoch(ctx); err != nil {
			return reports, fmt.Errorf("train: epoch %d: %w", epoch, err)
		}

		trainMetrics, err := Evaluate(ctx, t.model, t.train, t.opts.batchSize)
		if err != nil {
			return reports, fmt.Errorf("train: epoch %d: evaluate train: %w", epoch, err)
		}

		valMetrics, err := Evaluate(ctx, t.model, t.val, t.opts.batchSize)
		if err != nil {
			return reports, fmt.Errorf("train: epoch %d: evaluate val: %w", epoch, err)
		}

		report := EpochReport{
			Epoch: epoch,
			Train: trainMetrics,
			Val:   valMetrics,
		}

		if valMetrics.Loss < t.best {
			t.best = valMetrics.Loss

			if t.opts.checkpointPath != "" {
				info := seq2seq.CheckpointInfo{Epoch: epoch, ValLoss: valMetrics.Loss, RunID: t.opts.runID}
				if err := seq2seq.SaveCheckpoint(t.opts.checkpointPath, t.model, info); err != nil {
					return reports, fmt.Errorf("train: epoch %d: %w", epoch, err)
				}

				report.Saved = true
				log.Info("checkpoint saved", "epoch", epoch, "path", t.opts.checkpointPath, "val_loss", valMetrics.Loss)
			}
		}

		report.Duration = time.Since(start)
		reports = append(reports, report)

		log.Info("epoch complete",
			"epoch", epoch,
			"epochs", t.opts.epochs,
			"train_loss", trainMetrics.Loss,
			"train_acc", trainMetrics.Accuracy,
			"val_loss", valMetrics.Loss,
			"val_acc", valMetrics.Accuracy,
			"ms", report.Duration.Milliseconds(),
		)
	}

	return reports, nil
}

func (t *Trainer) epoch(ctx context.Context) error {
	params := t.model.Params()

	for i, b := range t.train.Batches(t.opts.batchSize, t.opts.rng) {
		if err := ctx.Err(); err != nil {
			return err
		}

		t.model.ZeroGrad()

		st, err := t.model.Step(b, true)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}

		if st.Count == 0 {
			continue
		}

		t.adam.Step(params)
	}

	return nil
}

// Evaluate scores model on ds in stored order without touching gradients.
// An empty dataset scores zero loss and zero accuracy.
func Evaluate(ctx context.Context, model *seq2seq.Model, ds *dataset.Dataset, batchSize int) (Metrics, error) {
	batches := ds.Batches(batchSize, nil)
	if len(batches) == 0 {
		return Metrics{}, nil
	}

	var (
		lossSum float64
		total   nn.LossStats
	)

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}

		st, err := model.Step(b, false)
		if err != nil {
			return Metrics{}, fmt.Errorf("batch %d: %w", i, err)
		}

		lossSum += st.Mean()
		total.Add(st)
	}

	return Metrics{
		Loss:     lossSum / float64(len(batches)),
		Accuracy: total.Accuracy(),
	}, nil
}
