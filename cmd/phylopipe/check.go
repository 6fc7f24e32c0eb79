package main

import (
	"fmt"
	"strings"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/pcrane/phylopipe/internal/output"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tool availability and versions",
		RunE:  checkExecute,
	}
}

func checkExecute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	statuses, ok := deps.Check(deps.DefaultTools())
	renderer := output.ForFormat(strings.ToLower(cfg.Format), cmd.OutOrStdout())
	if err := renderer.RenderDeps(statuses); err != nil {
		return err
	}
	if !ok {
		var names []string
		for _, status := range statuses {
			if !status.Optional && !status.Ok() {
				names = append(names, status.Name)
			}
		}
		return fmt.Errorf("missing required tools: %s", strings.Join(names, ", "))
	}
	return nil
}
