// Package corpus reads tab-separated sentence-pair files into token samples.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/go-nmt/internal/text"
)

const (
	// StartToken prefixes every decoder input sequence.
	StartToken = "<sos>"
	// EndToken terminates every decoder target sequence.
	EndToken = "<eos>"

	// DefaultMaxSamples is the number of sentence pairs read when no cap is
	// configured explicitly.
	DefaultMaxSamples = 33000
)

// ErrMalformedRecord is returned when a line does not hold exactly three
// tab-separated fields.
var ErrMalformedRecord = errors.New("corpus: malformed record")

// Sample is one sentence pair.
//
// TargetIn and TargetOut have equal length; TargetOut is TargetIn shifted left
// by one position with EndToken appended.
type Sample struct {
	Source    []string
	TargetIn  []string
	TargetOut []string
}

// NewSample builds a sample from already tokenized source and target
// sentences.
func NewSample(source, target []string) Sample {
	in := make([]string, 0, len(target)+1)
	in = append(in, StartToken)
	in = append(in, target...)

	out := make([]string, 0, len(target)+1)
	out = append(out, target...)
	out = append(out, EndToken)

	return Sample{
		Source:    append([]string(nil), source...),
		TargetIn:  in,
		TargetOut: out,
	}
}

// Load reads up to limit records from r. limit <= 0 reads every record.
func Load(r io.Reader, limit int) ([]Sample, error) {
	samples := make([]Sample, 0, max(limit, 0))

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++

		fields := strings.Split(strings.TrimSpace(sc.Text()), "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d has %d fields, want 3", ErrMalformedRecord, line, len(fields))
		}

		samples = append(samples, NewSample(text.Tokenize(fields[0]), text.Tokenize(fields[1])))

		if limit > 0 && len(samples) == limit {
			break
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read line %d: %w", line+1, err)
	}

	return samples, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string, limit int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", path, err)
	}
	defer f.Close()

	return Load(f, limit)
}

// Columns splits samples into the three parallel token sequence lists.
func Columns(samples []Sample) (source, targetIn, targetOut [][]string) {
	source = make([][]string, len(samples))
	targetIn = make([][]string, len(samples))
	targetOut = make([][]string, len(samples))

	for i, s := range samples {
		source[i] = s.Source
		targetIn[i] = s.TargetIn
		targetOut[i] = s.TargetOut
	}

	return source, targetIn, targetOut
}
