package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/seuros/leadtrack/internal/models"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage ingestion API keys",
	Long: `Manage per-website API keys for the ingestion API.

Backends and widgets send events to POST /api/v1/events with
"Authorization: Bearer <key>". A key only works for the website it was
created for.`,
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create <website-id>",
	Short: "Create a new API key for a website",
	Long: `Create a new API key for event ingestion.

The full API key is displayed ONCE on creation. Save it securely - it cannot be retrieved later.
When stdout is not a terminal only the key is printed.

Examples:
  leadtrack apikey create 550e8400-e29b-41d4-a716-446655440000 --user <user-id>
  leadtrack apikey create 550e8400-e29b-41d4-a716-446655440000 --user <user-id> --name "Contact form"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyCreate(args[0])
	},
}

var apikeyListCmd = &cobra.Command{
	Use:   "list <website-id>",
	Short: "List API keys for a website",
	Long: `List all API keys for a website, including disabled keys.

Examples:
  leadtrack apikey list 550e8400-e29b-41d4-a716-446655440000 --user <user-id>
  leadtrack apikey list 550e8400-e29b-41d4-a716-446655440000 --user <user-id> --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyList(args[0], apikeyListFormat)
	},
}

var apikeyEnableCmd = &cobra.Command{
	Use:   "enable <key-id>",
	Short: "Re-enable a disabled API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeySetEnabled(args[0], true)
	},
}

var apikeyDisableCmd = &cobra.Command{
	Use:   "disable <key-id>",
	Short: "Disable an API key",
	Long: `Disable an API key. Requests using it are rejected until it is enabled again.

Examples:
  leadtrack apikey disable <key-id> --website <website-id> --user <user-id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeySetEnabled(args[0], false)
	},
}

var apikeyDeleteCmd = &cobra.Command{
	Use:   "delete <key-id>",
	Short: "Delete an API key permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyDelete(args[0])
	},
}

// Command flags
var (
	apikeyUser       string
	apikeyWebsite    string
	apikeyName       string
	apikeyListFormat string
	apikeyHost       = "https://your-leadtrack-host"
)

// isTerminal is swapped in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func runAPIKeyCreate(websiteArg string) error {
	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, websiteArg, apikeyUser)
		if err != nil {
			return err
		}

		result, err := store.CreateAPIKey(ctx, website.ID, apikeyName)
		if err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}

		if !isTerminal() {
			fmt.Println(result.FullKey)
			return nil
		}

		fmt.Println()
		fmt.Println("API Key created successfully!")
		fmt.Println()
		fmt.Println("============================================================")
		fmt.Println("IMPORTANT: Save this key now. It will NOT be shown again.")
		fmt.Println("============================================================")
		fmt.Println()
		fmt.Printf("API Key: %s\n", result.FullKey)
		fmt.Println()
		fmt.Println("------------------------------------------------------------")
		fmt.Printf("Key ID:     %s\n", result.APIKey.ID)
		fmt.Printf("Website:    %s (%s)\n", website.Domain, website.ID)
		if result.APIKey.Name != "" {
			fmt.Printf("Name:       %s\n", result.APIKey.Name)
		}
		fmt.Printf("Created:    %s\n", result.APIKey.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Println()
		printUsageExample(result.FullKey, website.ID.String())
		return nil
	})
}

func printUsageExample(key, websiteID string) {
	fmt.Println("Usage example:")
	fmt.Println()
	fmt.Printf("  curl -X POST %s/api/v1/events \\\n", apikeyHost)
	fmt.Printf("    -H \"Authorization: Bearer %s\" \\\n", key)
	fmt.Printf("    -H \"Content-Type: application/json\" \\\n")
	fmt.Printf("    -d '{\"event\": \"form_submit\", \"website_id\": \"%s\", \"lead\": {\"email\": \"jane@example.com\"}}'\n", websiteID)
	fmt.Println()
}

func runAPIKeyList(websiteArg, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, websiteArg, apikeyUser)
		if err != nil {
			return err
		}

		keys, err := store.ListAPIKeys(ctx, website.ID)
		if err != nil {
			return fmt.Errorf("failed to list API keys: %w", err)
		}

		if handled, err := printStructured(format, keys); handled {
			return err
		}

		if len(keys) == 0 {
			fmt.Printf("No API keys found for website '%s'\n", website.Domain)
			fmt.Println()
			fmt.Println("Create one with: leadtrack apikey create", website.ID, "--user <user-id>")
			return nil
		}

		fmt.Printf("\nAPI Keys for %s (%d total)\n\n", website.Domain, len(keys))

		w := newTable()
		_, _ = fmt.Fprintln(w, "ID\tPREFIX\tNAME\tSTATUS\tLAST USED\tCREATED")
		_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t---------\t-------")
		for _, key := range keys {
			name := key.Name
			if name == "" {
				name = "-"
			}
			status := "enabled"
			if !key.Enabled {
				status = "disabled"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				key.ID,
				key.KeyPrefix,
				name,
				status,
				formatTime(key.LastUsedAt),
				key.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		_ = w.Flush()
		fmt.Println()
		return nil
	})
}

func runAPIKeySetEnabled(keyArg string, enabled bool) error {
	keyID, err := parseID("key id", keyArg)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, apikeyWebsite, apikeyUser)
		if err != nil {
			return err
		}

		key, err := store.SetAPIKeyEnabled(ctx, keyID, website.ID, enabled)
		if err != nil {
			return fmt.Errorf("failed to update API key: %w", err)
		}

		state := "enabled"
		if !key.Enabled {
			state = "disabled"
		}
		fmt.Printf("API key %s %s\n", key.KeyPrefix, state)
		return nil
	})
}

func runAPIKeyDelete(keyArg string) error {
	keyID, err := parseID("key id", keyArg)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, apikeyWebsite, apikeyUser)
		if err != nil {
			return err
		}
		if err := store.DeleteAPIKey(ctx, keyID, website.ID); err != nil {
			return fmt.Errorf("failed to delete API key: %w", err)
		}
		fmt.Printf("API key %s deleted\n", keyID)
		return nil
	})
}

func init() {
	apikeyCmd.PersistentFlags().StringVarP(&apikeyUser, "user", "u", "", "Owner user ID (required)")

	apikeyCreateCmd.Flags().StringVarP(&apikeyName, "name", "n", "", "Friendly name for the API key (e.g., 'Contact form')")
	apikeyCreateCmd.Flags().StringVar(&apikeyHost, "host", apikeyHost, "Public base URL shown in the usage example")

	apikeyListCmd.Flags().StringVarP(&apikeyListFormat, "format", "f", formatTable, "Output format (table, json, yaml)")

	for _, cmd := range []*cobra.Command{apikeyEnableCmd, apikeyDisableCmd, apikeyDeleteCmd} {
		cmd.Flags().StringVarP(&apikeyWebsite, "website", "w", "", "Website ID the key belongs to (required)")
		_ = cmd.MarkFlagRequired("website")
	}

	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCmd.AddCommand(apikeyListCmd)
	apikeyCmd.AddCommand(apikeyEnableCmd)
	apikeyCmd.AddCommand(apikeyDisableCmd)
	apikeyCmd.AddCommand(apikeyDeleteCmd)

	RootCmd.AddCommand(apikeyCmd)
}
