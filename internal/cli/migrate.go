package cli

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/coursemarket-backend/internal/app"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func runMigrate(_ *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := app.OpenDB(log, cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()
	log.Info("schema up to date", "driver", svc.Driver())
	return nil
}
