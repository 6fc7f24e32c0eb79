package main

import (
	"github.com/pcrane/phylopipe/internal/pipeline"
	"github.com/spf13/cobra"
)

func newSpeciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "species",
		Short: "Infer a species tree from the concatenated alignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, pipeline.ModeSpecies)
		},
	}
}
