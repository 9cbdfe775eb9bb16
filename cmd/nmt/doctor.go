package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-nmt/internal/doctor"
	"github.com/example/go-nmt/internal/pipeline"
)

func newDoctorCmd() *cobra.Command {
	var requireCheckpoint bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local environment, corpus and checkpoint checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			srcVocab, tgtVocab := pipeline.VocabPaths(cfg.Paths.Checkpoint, cfg.Paths.VocabDir)
			out := cmd.OutOrStdout()

			result := doctor.Run(doctor.Config{
				Target:            cfg.Runtime.Target,
				CorpusPath:        cfg.Paths.Corpus,
				CheckpointPath:    cfg.Paths.Checkpoint,
				RequireCheckpoint: requireCheckpoint,
				SourceVocabPath:   srcVocab,
				TargetVocabPath:   tgtVocab,
			}, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&requireCheckpoint, "require-checkpoint", false, "Fail when no trained checkpoint exists")

	return cmd
}
