package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/leadtrack/internal/models"
)

var conversionCmd = &cobra.Command{
	Use:   "conversion",
	Short: "Manage conversion definitions",
	Long: `A conversion marks an event type as a goal for a website. Leads with
events of that type count as converted.`,
}

var conversionListCmd = &cobra.Command{
	Use:   "list <website-id>",
	Short: "List conversions for a website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConversionList(args[0], conversionFormat)
	},
}

var conversionCreateCmd = &cobra.Command{
	Use:   "create <website-id>",
	Short: "Define a conversion",
	Long: `Define a conversion for a website.

Examples:
  leadtrack conversion create <website-id> --user <user-id> --title "Demo booked" --event-type demo_booked
  leadtrack conversion create <website-id> --user <user-id> --title "Signup" --event-type signup --config '{"value": 10}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConversionCreate(args[0])
	},
}

var conversionDeleteCmd = &cobra.Command{
	Use:   "delete <conversion-id>",
	Short: "Delete a conversion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConversionDelete(args[0])
	},
}

// Command flags
var (
	conversionUser      string
	conversionWebsite   string
	conversionTitle     string
	conversionTrigger   string
	conversionEventType string
	conversionConfigRaw string
	conversionFormat    string
)

func runConversionList(websiteArg, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, websiteArg, conversionUser)
		if err != nil {
			return err
		}
		conversions, err := store.ListConversions(ctx, website.ID)
		if err != nil {
			return fmt.Errorf("failed to list conversions: %w", err)
		}

		if handled, err := printStructured(format, conversions); handled {
			return err
		}
		if len(conversions) == 0 {
			fmt.Printf("No conversions defined for %s\n", website.Domain)
			return nil
		}

		w := newTable()
		_, _ = fmt.Fprintln(w, "ID\tTITLE\tTRIGGER\tEVENT TYPE\tCREATED")
		_, _ = fmt.Fprintln(w, "--\t-----\t-------\t----------\t-------")
		for _, c := range conversions {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Title, c.TriggerType, c.EventType, c.CreatedAt.Format("2006-01-02 15:04"))
		}
		_ = w.Flush()
		return nil
	})
}

func runConversionCreate(websiteArg string) error {
	in := models.ConversionInput{
		WebsiteID:   websiteArg,
		Title:       conversionTitle,
		TriggerType: conversionTrigger,
		EventType:   conversionEventType,
	}
	if conversionConfigRaw != "" {
		if err := json.Unmarshal([]byte(conversionConfigRaw), &in.Configuration); err != nil {
			return fmt.Errorf("invalid --config: %w", err)
		}
	}
	in, err := in.Normalize()
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, websiteArg, conversionUser)
		if err != nil {
			return err
		}
		conversion, err := store.CreateConversion(ctx, website.ID, in)
		if err != nil {
			return fmt.Errorf("failed to create conversion: %w", err)
		}
		fmt.Printf("Conversion %q created (%s)\n", conversion.Title, conversion.ID)
		return nil
	})
}

func runConversionDelete(conversionArg string) error {
	conversionID, err := parseID("conversion id", conversionArg)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, conversionWebsite, conversionUser)
		if err != nil {
			return err
		}
		if err := store.DeleteConversion(ctx, conversionID, website.ID); err != nil {
			return fmt.Errorf("failed to delete conversion: %w", err)
		}
		fmt.Printf("Conversion %s deleted\n", conversionID)
		return nil
	})
}

func init() {
	conversionCmd.PersistentFlags().StringVarP(&conversionUser, "user", "u", "", "Owner user ID (required)")

	conversionListCmd.Flags().StringVarP(&conversionFormat, "format", "f", formatTable, "Output format (table, json, yaml)")

	conversionCreateCmd.Flags().StringVarP(&conversionTitle, "title", "t", "", "Conversion title (required)")
	conversionCreateCmd.Flags().StringVar(&conversionTrigger, "trigger", "event", "Trigger type")
	conversionCreateCmd.Flags().StringVarP(&conversionEventType, "event-type", "e", "", "Event type that counts as this conversion (required)")
	conversionCreateCmd.Flags().StringVar(&conversionConfigRaw, "config", "", "Extra configuration as a JSON object")

	conversionDeleteCmd.Flags().StringVarP(&conversionWebsite, "website", "w", "", "Website ID the conversion belongs to (required)")
	_ = conversionDeleteCmd.MarkFlagRequired("website")

	conversionCmd.AddCommand(conversionListCmd)
	conversionCmd.AddCommand(conversionCreateCmd)
	conversionCmd.AddCommand(conversionDeleteCmd)

	RootCmd.AddCommand(conversionCmd)
}
