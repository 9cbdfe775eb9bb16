package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-nmt/internal/device"
	"github.com/example/go-nmt/internal/pipeline"
)

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the translator on the configured corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			target, err := device.Resolve(cfg.Runtime.Target)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := pipeline.FromConfig(cfg)
			opts.Target = string(target)
			opts.Logger = slog.Default()

			res, err := pipeline.Run(ctx, opts)
			if len(res.Reports) > 0 {
				renderEpochTable(cmd.OutOrStdout(), res.Reports)
			}

			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "best validation loss %.4f, checkpoint %s\n", res.BestValLoss, res.CheckpointPath)

			return nil
		},
	}
}
