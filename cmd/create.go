package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCreateCmd partitions the active keyword set into a fresh generation of
// pending units without processing any of them. Useful when an external cron
// drives processing via the HTTP trigger.
func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Creates a new generation of processing units",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Scheduler.CreateBatches(cmd.Context())
			if err != nil {
				return fmt.Errorf("create batches: %w", err)
			}
			a.Logger.Info("generation created",
				zap.Int("units", res.UnitsCreated),
				zap.Int("keywords", res.KeywordCount),
				zap.Int("stale_deleted", res.StaleDeleted),
			)
			return nil
		},
	}
}
