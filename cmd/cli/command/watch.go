package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"cinecircle/cmd/cli/command/client"
	"cinecircle/internal/shared"

	"github.com/spf13/cobra"
)

// watchCmd streams realtime events until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Go online and print live events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			return errNoToken
		}

		tcp := client.NewTCPClient(tcpAddr)
		if err := tcp.Connect(token); err != nil {
			return err
		}
		defer tcp.Disconnect()

		if err := tcp.Register(); err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
		fmt.Printf("✓ Online as %s (Ctrl+C to quit)\n", tcp.UserID())

		// closing the socket unblocks Next
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)
		go func() {
			<-interrupt
			tcp.Disconnect()
		}()

		out := cmd.OutOrStdout()
		for {
			env, err := tcp.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(out, "connection closed by server")
				}
				return nil
			}
			printEvent(out, env)
		}
	},
}

func printEvent(out io.Writer, env *shared.Envelope) {
	switch env.Type {
	case shared.EventReceiveMessage:
		var msg struct {
			SenderID string `json:"sender_id"`
			Text     string `json:"text"`
			Image    string `json:"image"`
		}
		if json.Unmarshal(env.Data, &msg) == nil {
			body := msg.Text
			if msg.Image != "" {
				body += " [image " + msg.Image + "]"
			}
			fmt.Fprintf(out, "💬 %s: %s\n", msg.SenderID, body)
			return
		}
	case shared.EventUserOnline, shared.EventUserOffline:
		var userID string
		if json.Unmarshal(env.Data, &userID) == nil {
			fmt.Fprintf(out, "• %s %s\n", userID, env.Type)
			return
		}
	case shared.EventNotificationUnread:
		var unread shared.UnreadCountSync
		if json.Unmarshal(env.Data, &unread) == nil {
			fmt.Fprintf(out, "🔔 %d unread\n", unread.UnreadCount)
			return
		}
	}
	fmt.Fprintf(out, "[%s] %s\n", env.Type, string(env.Data))
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
