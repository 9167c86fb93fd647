package cli

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/apiclient"
	"github.com/opsdesk/opsdesk/internal/config"
)

func newChatCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var (
		sessionID  string
		userID     string
		message    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to a running opsdesk server",
		Long:  "Send a single message with -m, or start an interactive session when no message is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			client, err := apiclient.New(cfg)
			if err != nil {
				return err
			}

			if timeoutSec < 1 {
				timeoutSec = cfg.ChatTimeoutSec
			}
			if strings.TrimSpace(sessionID) == "" {
				sessionID = uuid.NewString()
			}

			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}

			if text != "" {
				ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
				defer cancel()
				response, err := client.Chat(ctx, apiclient.ChatRequest{
					SessionID: sessionID,
					UserID:    userID,
					Text:      text,
				})
				if err != nil {
					return err
				}
				printAgentReply(cmd, strings.TrimSpace(response.Reply))
				return nil
			}

			cmd.Printf("Connected, session %s. Type /exit to quit.\n", sessionID)
			return runInteractiveChat(cmd, client, sessionID, userID, timeoutSec)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "chat session id (a fresh one is minted when empty)")
	cmd.Flags().StringVar(&userID, "user-id", "", "user id forwarded to the server")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "request timeout in seconds")

	return cmd
}

func runInteractiveChat(cmd *cobra.Command, client *apiclient.Client, sessionID, userID string, timeoutSec int) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
		response, err := client.Chat(ctx, apiclient.ChatRequest{
			SessionID: sessionID,
			UserID:    userID,
			Text:      text,
		})
		cancel()
		if err != nil {
			cmd.PrintErrf("chat request failed: %v\n", err)
			continue
		}
		printAgentReply(cmd, strings.TrimSpace(response.Reply))
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func printAgentReply(cmd *cobra.Command, reply string) {
	if reply == "" {
		cmd.Println("agent> (no reply)")
		return
	}
	lines := strings.Split(reply, "\n")
	for index, line := range lines {
		line = strings.TrimRight(line, "\r")
		if index == 0 {
			cmd.Printf("agent> %s\n", line)
			continue
		}
		cmd.Printf("      %s\n", line)
	}
}

func boundedTimeout(input int) time.Duration {
	if input < 1 {
		input = 120
	}
	if input > 600 {
		input = 600
	}
	return time.Duration(input) * time.Second
}
