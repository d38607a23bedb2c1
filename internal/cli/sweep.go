package cli

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/coursemarket-backend/internal/app"
	"github.com/yungbote/coursemarket-backend/internal/jobs"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-expired",
	Short: "Expire enrollments whose access window has closed, once",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), log, cfg)
	if err != nil {
		log.Sync()
		return err
	}
	defer a.Close()
	return a.Services.Scheduler.RunOnce(cmd.Context(), jobs.ExpirySweepName)
}
