package main

import (
	"github.com/pcrane/phylopipe/internal/pipeline"
	"github.com/spf13/cobra"
)

func newGeneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gene",
		Short: "Infer one gene tree per alignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, pipeline.ModeGene)
		},
	}
}
