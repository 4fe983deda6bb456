// Package cmd implements the docbase command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docbase/docbase/internal/app"
	"github.com/docbase/docbase/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "docbase",
	Short: "docbase - project-scoped document question answering",
	Long: `docbase ingests documents into per-project knowledge bases and answers
questions over them with cited sources.

Typical flow:

  docbase project create handbook
  docbase ingest <project-id> ./docs/handbook.pdf
  docbase ask <project-id> "what is the vacation policy?"`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withApp loads configuration, wires the application, and runs fn with it.
// The app is closed before returning so the ingestion queue drains.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	slog.SetDefault(a.Logger)
	return fn(ctx, a)
}
