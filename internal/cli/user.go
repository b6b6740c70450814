package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seuros/leadtrack/internal/middleware"
	"github.com/seuros/leadtrack/internal/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard users",
	Long: `Users are created by the identity platform. "user add" provisions the
local row a new account needs before it can own websites.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Provision a user row",
	Long: `Provision a user row. Running it again for an existing user is a no-op.

Examples:
  leadtrack user add 550e8400-e29b-41d4-a716-446655440000 --email owner@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserAdd(args[0], userEmail)
	},
}

var userTokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a dashboard API token",
	Long: `Issue an HS256 token for the dashboard API, signed with JWT_SECRET.
Useful for scripts and local testing.

Examples:
  leadtrack user token 550e8400-e29b-41d4-a716-446655440000 --ttl 24h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserToken(args[0], userEmail, userTokenTTL)
	},
}

// Command flags
var (
	userEmail    string
	userTokenTTL time.Duration
)

func runUserAdd(userArg, email string) error {
	userID, err := parseID("user id", userArg)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		created, err := store.EnsureUser(ctx, userID, email)
		if err != nil {
			return fmt.Errorf("failed to add user: %w", err)
		}
		user, err := store.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if created {
			fmt.Printf("User %s added\n", user.UserID)
		} else {
			fmt.Printf("User %s already exists (since %s)\n", user.UserID, user.CreatedAt.Format(time.RFC3339))
		}
		return nil
	})
}

func runUserToken(userArg, email string, ttl time.Duration) error {
	userID, err := parseID("user id", userArg)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := middleware.IssueUserToken(userID, email, cfg.JWTSecret, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func init() {
	userCmd.PersistentFlags().StringVarP(&userEmail, "email", "e", "", "User email")
	userTokenCmd.Flags().DurationVar(&userTokenTTL, "ttl", 12*time.Hour, "Token lifetime")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userTokenCmd)

	RootCmd.AddCommand(userCmd)
}
