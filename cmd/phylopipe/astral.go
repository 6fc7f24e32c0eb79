package main

import (
	"fmt"
	"path/filepath"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/spf13/cobra"
)

func newAstralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "astral",
		Short: "Install a launcher script for an ASTRAL jar",
		Long: `Writes an executable "astral" wrapper next to the jar so the
coalescence stage can invoke it like a regular command. Put the wrapper's
directory on PATH afterwards.`,
		RunE: astralExecute,
	}
	cmd.Flags().String("jar", "", "path to the ASTRAL jar file")
	_ = cmd.MarkFlagRequired("jar")
	return cmd
}

func astralExecute(cmd *cobra.Command, args []string) error {
	jar, err := cmd.Flags().GetString("jar")
	if err != nil {
		return fmt.Errorf("parse --jar: %w", err)
	}
	abs, err := filepath.Abs(jar)
	if err != nil {
		return fmt.Errorf("resolve jar path %q: %w", jar, err)
	}
	path, err := deps.WriteLauncher(abs, filepath.Dir(abs))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "launcher written to %s\n", path)
	return nil
}
