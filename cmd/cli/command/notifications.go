package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List and clear notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := httpClient()
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		result, err := api.ListNotifications(page, limit)
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, n := range result.Notifications {
			marker := "•"
			if !n.Read {
				marker = "★"
			}
			sender := ""
			if n.Sender != nil {
				sender = n.Sender.Name
			}
			fmt.Fprintf(out, "%s %s  %-8s %s on %q\n", marker, n.ID, n.Type, sender, n.MovieTitle)
		}
		if result.HasMore {
			fmt.Fprintf(out, "-- more: --page %d --\n", result.Page+1)
		}
		return nil
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Print the unread notification count",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := httpClient()
		if err != nil {
			return err
		}
		count, err := api.UnreadCount()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), count)
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read [notification-id]",
	Short: "Mark one notification, or all of them, as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := httpClient()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			err = api.MarkAllNotificationsRead()
		} else {
			err = api.MarkNotificationRead(args[0])
		}
		if err != nil {
			return fmt.Errorf("mark read failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Marked as read")
		return nil
	},
}

func init() {
	notificationsCmd.Flags().Int("page", 1, "page number")
	notificationsCmd.Flags().Int("limit", 10, "page size")

	notificationsCmd.AddCommand(unreadCmd, readCmd)
	rootCmd.AddCommand(notificationsCmd)
}
