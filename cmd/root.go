// Package cmd defines the CLI commands for the ranktrack executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ranktrack/ranktrack/internal/app"
	"github.com/ranktrack/ranktrack/internal/config"
)

var cfgFile string

type appKeyType struct{}

// newApp is a factory variable so tests can inject a fake container.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd wires configuration loading and the shared service container.
// The container is built in PersistentPreRunE so every subcommand gets the
// same initialized services, and torn down in PersistentPostRun.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ranktrack",
		Short: "Keyword rank tracking and batch scheduling service",
		Long: `ranktrack resolves a site's position in external search results for a
tracked keyword set. It partitions the keywords into small processing units,
works through them under a strict time budget, records every observation and
alerts on significant position changes.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKeyType{}).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newCleanupCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
