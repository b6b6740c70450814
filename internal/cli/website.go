package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seuros/leadtrack/internal/models"
)

var websiteCmd = &cobra.Command{
	Use:   "website",
	Short: "Manage websites",
	Long:  `Create, list and delete the websites a user collects leads for.`,
}

var websiteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's websites",
	Long: `List all websites owned by a user, newest first.

Examples:
  leadtrack website list --user <user-id>
  leadtrack website list --user <user-id> --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteList(websiteFormat)
	},
}

var websiteCreateCmd = &cobra.Command{
	Use:   "create <domain>",
	Short: "Register a website",
	Long: `Register a website for a user. The domain is normalized: scheme and
path are dropped and it is lowercased.

Examples:
  leadtrack website create example.com --user <user-id> --name "Example"
  leadtrack website create https://shop.example.com/ --user <user-id> --pixel-id px_123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteCreate(args[0])
	},
}

var websiteDeleteCmd = &cobra.Command{
	Use:   "delete <website-id>",
	Short: "Delete a website with its keys, leads and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteDelete(args[0])
	},
}

// Command flags
var (
	websiteUser    string
	websiteName    string
	websitePixelID string
	websiteFormat  string
)

func runWebsiteList(format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	userID, err := parseUserFlag(websiteUser)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		websites, err := store.ListWebsites(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list websites: %w", err)
		}

		if handled, err := printStructured(format, websites); handled {
			return err
		}

		if len(websites) == 0 {
			fmt.Println("No websites found")
			fmt.Println()
			fmt.Println("Create one with: leadtrack website create <domain> --user", userID)
			return nil
		}

		w := newTable()
		_, _ = fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tPIXEL\tCREATED")
		_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-------")
		for _, site := range websites {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				site.ID,
				site.Name,
				site.Domain,
				orDash(site.PixelID),
				site.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		_ = w.Flush()
		return nil
	})
}

func runWebsiteCreate(domain string) error {
	userID, err := parseUserFlag(websiteUser)
	if err != nil {
		return err
	}

	name := websiteName
	if strings.TrimSpace(name) == "" {
		name = domain
	}
	in := models.WebsiteInput{Name: name, Domain: domain}
	if websitePixelID != "" {
		in.PixelID = &websitePixelID
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := store.CreateWebsite(ctx, userID, in)
		if err != nil {
			return fmt.Errorf("failed to create website: %w", err)
		}

		fmt.Println("Website created successfully!")
		fmt.Println()
		fmt.Printf("ID:      %s\n", website.ID)
		fmt.Printf("Name:    %s\n", website.Name)
		fmt.Printf("Domain:  %s\n", website.Domain)
		if website.PixelID != nil {
			fmt.Printf("Pixel:   %s\n", *website.PixelID)
		}
		fmt.Println()
		fmt.Println("Next: leadtrack apikey create", website.ID, "--user", userID)
		return nil
	})
}

func runWebsiteDelete(websiteArg string) error {
	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, websiteArg, websiteUser)
		if err != nil {
			return err
		}
		if err := store.DeleteWebsite(ctx, website.ID, website.UserID); err != nil {
			return fmt.Errorf("failed to delete website: %w", err)
		}
		fmt.Printf("Website %s deleted\n", website.ID)
		return nil
	})
}

func init() {
	websiteCmd.PersistentFlags().StringVarP(&websiteUser, "user", "u", "", "Owner user ID (required)")

	websiteListCmd.Flags().StringVarP(&websiteFormat, "format", "f", formatTable, "Output format (table, json, yaml)")

	websiteCreateCmd.Flags().StringVarP(&websiteName, "name", "n", "", "Display name (defaults to the domain)")
	websiteCreateCmd.Flags().StringVar(&websitePixelID, "pixel-id", "", "Optional tracking pixel identifier")

	websiteCmd.AddCommand(websiteListCmd)
	websiteCmd.AddCommand(websiteCreateCmd)
	websiteCmd.AddCommand(websiteDeleteCmd)

	RootCmd.AddCommand(websiteCmd)
}
