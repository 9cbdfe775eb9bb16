package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-nmt/internal/bench"
)

func newBenchCmd() *cobra.Command {
	var (
		runs      int
		format    string
		maxMeanMS float64
	)

	cmd := &cobra.Command{
		Use:   "bench <sentence>...",
		Short: "Time repeated translations with the trained checkpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q (table|json)", format)
			}

			tr, err := loadTranslator(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			input := strings.Join(args, " ")

			results, err := bench.Run(ctx, runs, func(ctx context.Context) (int, error) {
				out, err := tr.Translate(ctx, input)
				return len(strings.Fields(out)), err
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results))

			w := cmd.OutOrStdout()
			if format == "json" {
				if err := bench.FormatJSON(results, stats, w); err != nil {
					return err
				}
			} else {
				bench.FormatTable(results, stats, w)
			}

			return bench.CheckMeanThreshold(stats.Mean, time.Duration(maxMeanMS*float64(time.Millisecond)))
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of timed translations")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	cmd.Flags().Float64Var(&maxMeanMS, "max-mean-ms", 0, "Fail when mean latency exceeds this many milliseconds (0 = off)")

	return cmd
}
