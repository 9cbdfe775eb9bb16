// Package doctor provides environment preflight checks for nmt.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/example/go-nmt/internal/corpus"
	"github.com/example/go-nmt/internal/device"
	"github.com/example/go-nmt/internal/native"
	"github.com/example/go-nmt/internal/vocab"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// corpusProbeLines is how many records the corpus check parses.
const corpusProbeLines = 100

// Config holds the inputs and injectable dependencies for each check.
type Config struct {
	// Target is the configured runtime.target value.
	Target string
	// ResolveTarget maps Target to a concrete execution target. Nil uses
	// device.Resolve.
	ResolveTarget func(string) (device.Target, error)
	// CorpusPath is the sentence-pair file training reads.
	CorpusPath string
	// CheckpointPath is the trained model. A missing checkpoint only fails
	// when RequireCheckpoint is set.
	CheckpointPath    string
	RequireCheckpoint bool
	// SourceVocabPath and TargetVocabPath are the vocabularies saved with
	// the checkpoint.
	SourceVocabPath string
	TargetVocabPath string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(w io.Writer, check string, err error) {
	r.failures = append(r.failures, fmt.Sprintf("%s: %v", check, err))
	fmt.Fprintf(w, "%s %s: %v\n", FailMark, check, err)
}

func pass(w io.Writer, check, detail string) {
	fmt.Fprintf(w, "%s %s: %s\n", PassMark, check, detail)
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- execution target -------------------------------------------------
	resolve := cfg.ResolveTarget
	if resolve == nil {
		resolve = device.Resolve
	}

	if target, err := resolve(cfg.Target); err != nil {
		res.fail(w, "execution target", err)
	} else {
		pass(w, "execution target", string(target))
	}

	// ---- corpus -----------------------------------------------------------
	if n, err := probeCorpus(cfg.CorpusPath); err != nil {
		res.fail(w, "corpus "+cfg.CorpusPath, err)
	} else {
		pass(w, "corpus", fmt.Sprintf("%s (first %d records well-formed)", cfg.CorpusPath, n))
	}

	// ---- checkpoint -------------------------------------------------------
	if _, err := os.Stat(cfg.CheckpointPath); errors.Is(err, fs.ErrNotExist) && !cfg.RequireCheckpoint {
		pass(w, "checkpoint", fmt.Sprintf("%s not present yet (run nmt train)", cfg.CheckpointPath))
		return res
	}

	if err := checkCheckpoint(cfg); err != nil {
		res.fail(w, "checkpoint "+cfg.CheckpointPath, err)
	} else {
		pass(w, "checkpoint", cfg.CheckpointPath+" loads and matches the training model")
	}

	return res
}

func probeCorpus(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	samples, err := corpus.Load(f, corpusProbeLines)
	if err != nil {
		return 0, err
	}

	if len(samples) == 0 {
		return 0, errors.New("no records")
	}

	return len(samples), nil
}

func checkCheckpoint(cfg Config) error {
	m, err := native.LoadModel(cfg.CheckpointPath)
	if err != nil {
		return err
	}

	src, err := vocab.Load(cfg.SourceVocabPath)
	if err != nil {
		return err
	}

	tgt, err := vocab.Load(cfg.TargetVocabPath)
	if err != nil {
		return err
	}

	if _, err := native.NewTranslator(m, src, tgt, 0); err != nil {
		return err
	}

	reports, err := native.VerifyCheckpoint(cfg.CheckpointPath)
	if err != nil {
		return err
	}

	for _, r := range reports {
		if !r.Pass {
			return fmt.Errorf("%s drifts from the training model (max abs %.3g, max rel %.3g)", r.Name, r.MaxAbsErr, r.MaxRelErr)
		}
	}

	return nil
}
