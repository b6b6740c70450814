package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/leadtrack/internal/models"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Inspect captured leads",
}

var leadListCmd = &cobra.Command{
	Use:   "list <website-id>",
	Short: "List leads for a website",
	Long: `List leads for a website, newest first, with event and conversion counts.

Examples:
  leadtrack lead list <website-id> --user <user-id>
  leadtrack lead list <website-id> --user <user-id> --limit 100 --offset 100 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLeadList(args[0], leadLimit, leadOffset, leadFormat)
	},
}

var leadEventsCmd = &cobra.Command{
	Use:   "events <lead-id>",
	Short: "Show a lead's events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLeadEvents(args[0], leadLimit, leadFormat)
	},
}

// Command flags
var (
	leadUser    string
	leadWebsite string
	leadLimit   int
	leadOffset  int
	leadFormat  string
)

func runLeadList(websiteArg string, limit, offset int, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, websiteArg, leadUser)
		if err != nil {
			return err
		}
		leads, err := store.ListLeads(ctx, website.ID, limit, offset)
		if err != nil {
			return fmt.Errorf("failed to list leads: %w", err)
		}

		if handled, err := printStructured(format, leads); handled {
			return err
		}
		if len(leads) == 0 {
			fmt.Printf("No leads captured for %s yet\n", website.Domain)
			return nil
		}

		fmt.Printf("\nLeads for %s\n\n", website.Domain)
		w := newTable()
		_, _ = fmt.Fprintln(w, "ID\tEMAIL\tNAME\tPHONE\tEVENTS\tCONVERSIONS\tUPDATED")
		_, _ = fmt.Fprintln(w, "--\t-----\t----\t-----\t------\t-----------\t-------")
		for _, l := range leads {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				l.ID,
				orDash(l.Email),
				orDash(l.Name),
				orDash(l.Phone),
				derefCount(l.EventsCount),
				derefCount(l.ConversionsCount),
				l.UpdatedAt.Format("2006-01-02 15:04"),
			)
		}
		_ = w.Flush()
		fmt.Println()
		return nil
	})
}

func runLeadEvents(leadArg string, limit int, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	leadID, err := parseID("lead id", leadArg)
	if err != nil {
		return err
	}

	return withStore(func(ctx context.Context, store *models.Store) error {
		website, err := ownedWebsite(ctx, store, leadWebsite, leadUser)
		if err != nil {
			return err
		}
		lead, err := store.GetLead(ctx, leadID, website.ID)
		if err != nil {
			return fmt.Errorf("lead not found: %w", err)
		}
		events, err := store.ListLeadEvents(ctx, lead.ID, website.ID, limit)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if handled, err := printStructured(format, events); handled {
			return err
		}

		fmt.Printf("\nEvents for %s (%d shown)\n\n", orDash(lead.Email), len(events))
		w := newTable()
		_, _ = fmt.Fprintln(w, "TIME\tEVENT\tPAGE\tLOCATION")
		_, _ = fmt.Fprintln(w, "----\t-----\t----\t--------")
		for _, e := range events {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.EventType,
				orDash(&e.PageURL),
				location(e),
			)
		}
		_ = w.Flush()
		fmt.Println()
		return nil
	})
}

func location(e *models.Event) string {
	country := e.CountryName()
	city := ""
	if e.City != nil {
		city = *e.City
	}
	switch {
	case country == "" && city == "":
		return "-"
	case city == "":
		return country
	case country == "":
		return city
	default:
		return city + ", " + country
	}
}

func derefCount(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func init() {
	leadCmd.PersistentFlags().StringVarP(&leadUser, "user", "u", "", "Owner user ID (required)")
	leadCmd.PersistentFlags().IntVarP(&leadLimit, "limit", "l", models.DefaultPageSize, "Maximum rows to return")
	leadCmd.PersistentFlags().StringVarP(&leadFormat, "format", "f", formatTable, "Output format (table, json, yaml)")

	leadListCmd.Flags().IntVar(&leadOffset, "offset", 0, "Rows to skip")

	leadEventsCmd.Flags().StringVarP(&leadWebsite, "website", "w", "", "Website ID the lead belongs to (required)")
	_ = leadEventsCmd.MarkFlagRequired("website")

	leadCmd.AddCommand(leadListCmd)
	leadCmd.AddCommand(leadEventsCmd)

	RootCmd.AddCommand(leadCmd)
}
