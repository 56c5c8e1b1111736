package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdps/dashboard-client/internal/apperr"
	"github.com/mdps/dashboard-client/internal/chat"
	"github.com/mdps/dashboard-client/internal/logging"
)

var (
	chatUserID  int64
	chatSupport bool
	chatMessage string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Support chat",
	Long:  "Follow and post to a support chat from the terminal.",
}

var chatTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a chat",
	Long:  "Open the chat with a user and print messages as they arrive, until interrupted.",
	RunE:  runChatTail,
}

var chatSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one message",
	Long:  "Open the chat with a user, post a single message and exit.",
	RunE:  runChatSend,
}

func init() {
	chatCmd.PersistentFlags().Int64Var(&chatUserID, "user", 0, "Participant user id")
	chatCmd.PersistentFlags().BoolVar(&chatSupport, "support", false, "Open the support chat")
	chatSendCmd.Flags().StringVar(&chatMessage, "message", "", "Message content")
	chatCmd.AddCommand(chatTailCmd)
	chatCmd.AddCommand(chatSendCmd)
	rootCmd.AddCommand(chatCmd)
}

func openChat(cmd *cobra.Command) (*app, *chat.Synchronizer, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if !a.session.EnsureAuthenticated(cmd.Context()) {
		return nil, nil, fmt.Errorf("%w: please run 'mdps-dash login' first", apperr.ErrNotAuthenticated)
	}
	if chatUserID == 0 {
		return nil, nil, errors.New("--user is required")
	}

	sync := chat.NewSynchronizer(a.session.Gateway(), a.session, logging.New(a.cfg.Logging.Level), chat.Options{
		PresenceInterval: a.cfg.Polling.PresenceInterval,
		MessageInterval:  a.cfg.Polling.MessageInterval,
	})
	if err := sync.EnterChatView(cmd.Context()); err != nil {
		return nil, nil, err
	}
	if _, err := sync.OpenChatWith(cmd.Context(), chatUserID, chatSupport); err != nil {
		sync.LeaveChatView(cmd.Context())
		return nil, nil, err
	}
	return a, sync, nil
}

func runChatTail(cmd *cobra.Command, args []string) error {
	_, sync, err := openChat(cmd)
	if err != nil {
		return err
	}
	defer sync.LeaveChatView(cmd.Context())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	fmt.Fprintln(cmd.OutOrStdout(), "Following chat. Press Ctrl+C to stop.")

	printed := make(map[int64]bool)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			return nil
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
		for _, m := range sync.Messages() {
			if m.Pending || printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			who := m.SenderName
			if sync.IsOwn(m) {
				who = "you"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), who, m.Content)
		}
	}
}

func runChatSend(cmd *cobra.Command, args []string) error {
	if chatMessage == "" {
		return errors.New("--message is required")
	}

	_, sync, err := openChat(cmd)
	if err != nil {
		return err
	}
	defer sync.LeaveChatView(cmd.Context())

	msg, err := sync.SendMessage(cmd.Context(), chatMessage)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d\n", msg.ID)
	return nil
}
