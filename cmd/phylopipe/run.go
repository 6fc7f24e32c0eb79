package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pcrane/phylopipe/internal/config"
	"github.com/pcrane/phylopipe/internal/discovery"
	"github.com/pcrane/phylopipe/internal/output"
	"github.com/pcrane/phylopipe/internal/pipeline"
	"github.com/pcrane/phylopipe/internal/progress"
	"github.com/pcrane/phylopipe/internal/report"
	"github.com/pcrane/phylopipe/internal/runner"
	"github.com/spf13/cobra"
)

func runPipeline(cmd *cobra.Command, mode pipeline.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, err := discovery.ParseFormat(cfg.InputFormat)
	if err != nil {
		return err
	}
	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty, config.FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	logPath := cfg.LogFile
	if logPath != "" && !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cfg.OutDir, logPath)
	}

	// Live rendering goes to stderr so JSON on stdout stays parseable.
	reporter, err := progress.New(progress.Options{
		Out:     cmd.ErrOrStderr(),
		LogPath: logPath,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return err
	}

	pool := runner.New(runner.Options{
		Workers: cfg.Jobs,
		Grace:   time.Duration(cfg.KillGraceSec) * time.Second,
		DryRun:  cfg.DryRun,
		Events:  reporter,
	})

	orch := pipeline.New(pipeline.Options{
		Mode:         mode,
		Dir:          cfg.Dir,
		Format:       format,
		Only:         cfg.Only,
		Skip:         cfg.Skip,
		Params:       cfg.IqtreeOpts,
		OutDir:       cfg.OutDir,
		DryRun:       cfg.DryRun,
		MinSuccesses: cfg.MinSuccesses,
		Pool:         pool,
		Events:       reporter,
	})

	result, runErr := orch.Run(cmd.Context())
	if err := reporter.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: close run log: %v\n", err)
	}

	renderer := output.ForFormat(strings.ToLower(cfg.Format), cmd.OutOrStdout())
	if err := renderer.RenderRun(result, logPath); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if report.Summarize(result.Stages).ExitCode != 0 {
		return errors.New("one or more jobs failed")
	}
	return nil
}
