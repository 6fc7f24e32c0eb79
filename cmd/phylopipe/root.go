package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "phylopipe",
		Short:         "Phylopipe drives IQ-TREE and ASTRAL phylogenetic inference pipelines",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.StringP("dir", "d", ".", "directory containing alignment files")
	persistent.String("input-format", "auto", "alignment format (auto|fasta|nexus|phylip)")
	persistent.String("opts", "", "extra parameters passed to iqtree2, replacing the defaults")
	persistent.StringArray("only", nil, "include only matching alignments (repeatable; /regex/ or substring)")
	persistent.StringArray("skip", nil, "exclude matching alignments (repeatable; /regex/ or substring)")
	persistent.IntP("jobs", "j", 0, "max concurrent jobs (0 = physical core count)")
	persistent.Int("min-successes", 1, "minimum successful jobs a stage needs to continue")
	persistent.StringP("out", "o", ".", "output directory")
	persistent.String("log", "phylopipe.log", "run log file")
	persistent.Bool("dry-run", false, "print commands without executing them")
	persistent.BoolP("verbose", "v", false, "log every job event to the terminal")
	persistent.String("format", "pretty", "output format (pretty|json)")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newGeneCmd())
	cmd.AddCommand(newSpeciesCmd())
	cmd.AddCommand(newAutoCmd())
	cmd.AddCommand(newAstralCmd())

	return cmd
}
