package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-nmt/internal/config"
	"github.com/example/go-nmt/internal/device"
	"github.com/example/go-nmt/internal/native"
	"github.com/example/go-nmt/internal/pipeline"
	"github.com/example/go-nmt/internal/vocab"
)

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <sentence>...",
		Short: "Translate text with the trained checkpoint (greedy decoding)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			tr, err := loadTranslator(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			out, err := tr.Translate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)

			return nil
		},
	}
}

// loadTranslator resolves the execution target and loads the checkpoint
// with its vocabularies.
func loadTranslator(cfg config.Config) (*native.Translator, error) {
	target, err := device.Resolve(cfg.Runtime.Target)
	if err != nil {
		return nil, err
	}

	m, err := native.LoadModel(cfg.Paths.Checkpoint)
	if err != nil {
		return nil, err
	}

	srcPath, tgtPath := pipeline.VocabPaths(cfg.Paths.Checkpoint, cfg.Paths.VocabDir)

	src, err := vocab.Load(srcPath)
	if err != nil {
		return nil, err
	}

	tgt, err := vocab.Load(tgtPath)
	if err != nil {
		return nil, err
	}

	tr, err := native.NewTranslator(m, src, tgt, cfg.Translate.MaxSteps)
	if err != nil {
		return nil, err
	}

	slog.Debug("translator ready", "checkpoint", cfg.Paths.Checkpoint, "target", target)

	return tr, nil
}
