package cli

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/coursemarket-backend/internal/app"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "Override PORT")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expiry scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	a, err := app.New(cmd.Context(), log, cfg)
	if err != nil {
		log.Error("startup failed", "error", err)
		log.Sync()
		return err
	}
	defer a.Close()

	if err := a.Run(cmd.Context()); err != nil {
		log.Error("server stopped", "error", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}
