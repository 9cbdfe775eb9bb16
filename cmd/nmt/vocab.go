package main

import (
	"github.com/spf13/cobra"

	"github.com/example/go-nmt/internal/corpus"
	"github.com/example/go-nmt/internal/pipeline"
)

func newVocabCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Build vocabularies from the corpus and print the most frequent tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			samples, err := corpus.LoadFile(cfg.Paths.Corpus, cfg.Data.MaxSamples)
			if err != nil {
				return err
			}

			src, tgt := pipeline.BuildVocabularies(samples)

			w := cmd.OutOrStdout()
			renderVocabTable(w, "source", src, top)
			renderVocabTable(w, "target", tgt, top)

			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 20, "Number of most frequent tokens to list (0 = all)")

	return cmd
}
