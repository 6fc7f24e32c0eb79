package main

import (
	"github.com/pcrane/phylopipe/internal/pipeline"
	"github.com/spf13/cobra"
)

func newAutoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto",
		Short: "Run the full pipeline: gene trees, species tree, concordance, coalescence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, pipeline.ModeAuto)
		},
	}
}
