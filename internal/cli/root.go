package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/coursemarket-backend/internal/app"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:           "coursemarket",
	Short:         "Course marketplace backend",
	Long:          `Enrollment, progress, payment and rating services for the course marketplace.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree, cancelling on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// bootstrap builds the logger and loads config shared by every command.
func bootstrap() (*logger.Logger, app.Config, error) {
	log, err := app.NewLogger()
	if err != nil {
		return nil, app.Config{}, err
	}
	app.LoadEnvFiles(log)
	log.Info("Loading environment variables...")
	return log, app.LoadConfig(log), nil
}
