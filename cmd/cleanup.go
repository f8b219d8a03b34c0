package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCleanupCmd removes old completed units.
func newCleanupCmd() *cobra.Command {
	var maxAgeDays int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Deletes completed units older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if maxAgeDays <= 0 {
				maxAgeDays = a.Config.Scheduler.CleanupMaxAgeDays
			}
			deleted, err := a.Scheduler.CleanupOldUnits(cmd.Context(), maxAgeDays)
			if err != nil {
				return fmt.Errorf("cleanup units: %w", err)
			}
			a.Logger.Info("cleanup finished", zap.Int("deleted", deleted), zap.Int("max_age_days", maxAgeDays))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "delete completed units older than this (default from config)")
	return cmd
}
