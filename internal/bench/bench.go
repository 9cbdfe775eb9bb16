// Package bench provides timing primitives for the nmt bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// RunResult holds the timing of a single translation run.
type RunResult struct {
	Index        int
	Cold         bool // first run
	Duration     time.Duration
	Tokens       int
	TokensPerSec float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// RunFunc performs one translation and reports how many tokens it emitted.
type RunFunc func(ctx context.Context) (int, error)

// Run calls fn n times and records each run. The first run is marked cold.
// It stops at the first error, returning the runs completed so far.
func Run(ctx context.Context, n int, fn RunFunc) ([]RunResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bench: runs must be > 0, got %d", n)
	}

	runs := make([]RunResult, 0, n)

	for i := range n {
		if err := ctx.Err(); err != nil {
			return runs, err
		}

		start := time.Now()

		tokens, err := fn(ctx)
		if err != nil {
			return runs, fmt.Errorf("bench: run %d: %w", i+1, err)
		}

		d := time.Since(start)
		runs = append(runs, RunResult{
			Index:        i,
			Cold:         i == 0,
			Duration:     d,
			Tokens:       tokens,
			TokensPerSec: Throughput(tokens, d),
		})
	}

	return runs, nil
}

// Durations returns the duration of each run.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}

	return out
}

// ComputeStats calculates min, max and mean over a slice of durations.
// An empty slice yields zero Stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	mn, mx := durations[0], durations[0]

	var sum time.Duration

	for _, d := range durations {
		mn = min(mn, d)
		mx = max(mx, d)
		sum += d
	}

	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Throughput returns emitted tokens per second, or 0 for a zero duration.
func Throughput(tokens int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}

	return float64(tokens) / d.Seconds()
}

// CheckMeanThreshold returns an error if mean exceeds threshold.
// A threshold of 0 disables the gate.
func CheckMeanThreshold(mean, threshold time.Duration) error {
	if threshold <= 0 {
		return nil
	}

	if mean > threshold {
		return fmt.Errorf("mean latency %v exceeds threshold %v", mean, threshold)
	}

	return nil
}

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 2, 64)
}

// FormatTable writes a human-readable table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"RUN", "COLD", "MS", "TOKENS", "TOKENS/S"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}

		table.Append([]string{
			strconv.Itoa(r.Index + 1),
			cold,
			ms(r.Duration),
			strconv.Itoa(r.Tokens),
			strconv.FormatFloat(r.TokensPerSec, 'f', 1, 64),
		})
	}

	table.Render()

	_, _ = fmt.Fprintf(w, "min %s ms  mean %s ms  max %s ms\n", ms(stats.Min), ms(stats.Mean), ms(stats.Max))
}

type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index        int     `json:"index"`
	Cold         bool    `json:"cold"`
	DurationMS   float64 `json:"duration_ms"`
	Tokens       int     `json:"tokens"`
	TokensPerSec float64 `json:"tokens_per_sec"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

func msFloat(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  msFloat(stats.Min),
			MeanMS: msFloat(stats.Mean),
			MaxMS:  msFloat(stats.Max),
		},
	}

	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:        r.Index,
			Cold:         r.Cold,
			DurationMS:   msFloat(r.Duration),
			Tokens:       r.Tokens,
			TokensPerSec: r.TokensPerSec,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jr)
}
