package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/coursemarket-backend/internal/services"
)

func init() {
	rootCmd.AddCommand(issueTokenCmd)
	issueTokenCmd.Flags().String("user", "", "User id (random when empty)")
	issueTokenCmd.Flags().String("role", services.RoleLearner, "learner, instructor or admin")
	issueTokenCmd.Flags().String("email", "", "Email claim")
	issueTokenCmd.Flags().String("name", "", "Name claim")
	issueTokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Mint a bearer token for local development",
	RunE:  runIssueToken,
}

func runIssueToken(cmd *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	rawUser, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	userID := uuid.New()
	if rawUser != "" {
		if userID, err = uuid.Parse(rawUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
	}

	auth := services.NewAuthService(log, cfg.JWTSecretKey)
	tok, err := auth.IssueToken(services.Identity{UserID: userID, Role: role, Email: email, Name: name}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
