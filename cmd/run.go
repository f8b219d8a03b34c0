package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd drives a full cycle from the CLI: create a generation of units,
// then invoke the scheduler repeatedly until no work remains. Each
// invocation honors the same time budget the HTTP trigger path does.
func newRunCmd() *cobra.Command {
	var (
		create       bool
		tickSeconds  int
		maxTicks     int
		singleTick   bool
		failOnErrors bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Processes batch units from the command line",
		Long: `Runs the batch scheduler locally instead of via an external HTTP
trigger. With --create it first partitions the active keywords into a fresh
generation of units.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if create {
				res, err := a.Scheduler.CreateBatches(cmd.Context())
				if err != nil {
					return fmt.Errorf("create batches: %w", err)
				}
				a.Logger.Info("generation created",
					zap.Int("units", res.UnitsCreated),
					zap.Int("keywords", res.KeywordCount),
				)
			}

			totalErrors := 0
			for tick := 1; maxTicks <= 0 || tick <= maxTicks; tick++ {
				res, err := a.Scheduler.ProcessNextUnit(cmd.Context())
				if err != nil {
					return fmt.Errorf("process unit: %w", err)
				}
				totalErrors += res.Errors
				a.Logger.Info("tick finished",
					zap.Int("tick", tick),
					zap.String("unit_id", res.UnitID),
					zap.Int("processed", res.Processed),
					zap.Int("errors", res.Errors),
					zap.Bool("completed", res.Completed),
					zap.Bool("time_boxed", res.TimeBoxed),
					zap.Bool("remaining", res.Remaining),
				)
				if res.Idle || !res.Remaining || singleTick {
					break
				}
				if tickSeconds > 0 {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(time.Duration(tickSeconds) * time.Second):
					}
				}
			}

			if failOnErrors && totalErrors > 0 {
				return errors.New("run finished with keyword errors")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "create a new generation of units before processing")
	cmd.Flags().IntVar(&tickSeconds, "tick-seconds", 0, "pause between scheduler invocations")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "stop after this many invocations (0 = until done)")
	cmd.Flags().BoolVar(&singleTick, "once", false, "run exactly one scheduler invocation")
	cmd.Flags().BoolVar(&failOnErrors, "fail-on-errors", false, "exit non-zero if any keyword check failed")
	return cmd
}
