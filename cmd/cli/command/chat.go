package command

import (
	"fmt"

	"cinecircle/internal/microservices/http-api/dto"

	"github.com/spf13/cobra"
)

// chatCmd groups direct message subcommands
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Direct messages",
}

var chatSendCmd = &cobra.Command{
	Use:   "send <receiver-id> [text]",
	Short: "Send a direct message",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := httpClient()
		if err != nil {
			return err
		}

		req := dto.SendMessageRequest{ReceiverID: args[0]}
		if len(args) == 2 {
			req.Text = args[1]
		}
		req.Image, _ = cmd.Flags().GetString("image")
		req.ReplyTo, _ = cmd.Flags().GetString("reply-to")

		msg, err := api.SendMessage(&req)
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Sent %s\n", msg.ID)
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <partner-id>",
	Short: "Show the conversation with a user, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := httpClient()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		messages, err := api.Conversation(args[0], limit)
		if err != nil {
			return fmt.Errorf("history failed: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(messages) == 0 {
			fmt.Fprintln(out, "No messages yet.")
			return nil
		}
		for _, m := range messages {
			flags := ""
			if m.IsEdited {
				flags += " (edited)"
			}
			if m.Pinned {
				flags += " 📌"
			}
			fmt.Fprintf(out, "%s  %-12s %s%s\n", m.CreatedAt.Local().Format("Jan 02 15:04"), m.SenderID, m.Text, flags)
		}
		return nil
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Delete a message for everyone (sender only) or just for you",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := httpClient()
		if err != nil {
			return err
		}
		forMe, _ := cmd.Flags().GetBool("me")

		if err := api.DeleteMessage(args[0], forMe); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Deleted")
		return nil
	},
}

func init() {
	chatSendCmd.Flags().String("image", "", "image URL to attach")
	chatSendCmd.Flags().String("reply-to", "", "id of the message being replied to")
	chatHistoryCmd.Flags().Int("limit", 50, "number of messages")
	chatDeleteCmd.Flags().Bool("me", false, "only hide the message from your own history")

	chatCmd.AddCommand(chatSendCmd, chatHistoryCmd, chatDeleteCmd)
	rootCmd.AddCommand(chatCmd)
}
