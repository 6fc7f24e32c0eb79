package main

import (
	"fmt"

	"github.com/pcrane/phylopipe/internal/config"
	"github.com/spf13/cobra"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("dir") {
		v, err := flags.GetString("dir")
		if err != nil {
			return values, fmt.Errorf("parse --dir: %w", err)
		}
		values.Dir = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("input-format") {
		v, err := flags.GetString("input-format")
		if err != nil {
			return values, fmt.Errorf("parse --input-format: %w", err)
		}
		values.InputFormat = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("opts") {
		v, err := flags.GetString("opts")
		if err != nil {
			return values, fmt.Errorf("parse --opts: %w", err)
		}
		values.IqtreeOpts = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("only") {
		v, err := flags.GetStringArray("only")
		if err != nil {
			return values, fmt.Errorf("parse --only: %w", err)
		}
		values.Only = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("skip") {
		v, err := flags.GetStringArray("skip")
		if err != nil {
			return values, fmt.Errorf("parse --skip: %w", err)
		}
		values.Skip = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("jobs") {
		v, err := flags.GetInt("jobs")
		if err != nil {
			return values, fmt.Errorf("parse --jobs: %w", err)
		}
		values.Jobs = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("min-successes") {
		v, err := flags.GetInt("min-successes")
		if err != nil {
			return values, fmt.Errorf("parse --min-successes: %w", err)
		}
		values.MinSuccesses = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("out") {
		v, err := flags.GetString("out")
		if err != nil {
			return values, fmt.Errorf("parse --out: %w", err)
		}
		values.OutDir = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("log") {
		v, err := flags.GetString("log")
		if err != nil {
			return values, fmt.Errorf("parse --log: %w", err)
		}
		values.LogFile = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("dry-run") {
		v, err := flags.GetBool("dry-run")
		if err != nil {
			return values, fmt.Errorf("parse --dry-run: %w", err)
		}
		values.DryRun = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}

// loadConfig reads .phylopipe.yml from the working directory, then lets
// explicitly set flags win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return cfg, err
	}
	flags, err := gatherFlags(cmd)
	if err != nil {
		return cfg, err
	}
	config.ApplyFlags(&cfg, flags)
	return cfg, nil
}
