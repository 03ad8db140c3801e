package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	alertsNotify bool
	alertsJSON   bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts check for stale open tasks, too many open tasks, and repeated
rejected dependency edges. With --notify the alerts are also posted to the
configured Slack webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}
		if alertsNotify && Notifier == nil {
			return fmt.Errorf("notifier not configured (set notify.slack_webhook in .taskconfig)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		if alertsJSON {
			if err := printJSON(alerts); err != nil {
				return err
			}
		} else if len(alerts) == 0 {
			fmt.Println("No active alerts.")
		} else {
			fmt.Printf("%d active alert(s):\n\n", len(alerts))
			for _, alert := range alerts {
				severity := styleForSeverity(string(alert.Severity)).Render("[" + strings.ToUpper(string(alert.Severity)) + "]")
				fmt.Printf("  %s %s\n", severity, alert.Message)
				fmt.Printf("         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
			}
		}

		if alertsNotify && len(alerts) > 0 {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := Notifier.Notify(ctx, alerts); err != nil {
				return fmt.Errorf("sending notification: %w", err)
			}
			if !alertsJSON {
				fmt.Println("Notification sent.")
			}
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post active alerts to the configured Slack webhook")
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output alerts as JSON")
	rootCmd.AddCommand(alertsCmd)
}
