package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	orchestratorx "github.com/tanpawarit/device-reservation-agent/agent/agents/orchestrator"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	Long:  `Start a local conversation. Type /exit or send EOF to leave.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		orch, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		sessionID := strings.TrimSpace(chatSession)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s\n", sessionID)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/exit" {
				return nil
			}
			if err := orch.StreamTurn(ctx, sessionID, line, newChatPrinter(out)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to use (random when empty)")
}

// newChatPrinter renders tokens inline and tool results as one JSON line each.
func newChatPrinter(w io.Writer) orchestratorx.EventSink {
	midLine := false
	return func(ev orchestratorx.Event) error {
		switch e := ev.(type) {
		case orchestratorx.TokenEvent:
			midLine = true
			_, err := fmt.Fprint(w, e.Content)
			return err
		case orchestratorx.MessageEvent:
			if midLine {
				midLine = false
				_, err := fmt.Fprintln(w)
				return err
			}
			_, err := fmt.Fprintln(w, e.Content)
			return err
		case orchestratorx.ToolEvent:
			raw, err := json.Marshal(e.Output)
			if err != nil {
				return err
			}
			if midLine {
				midLine = false
				fmt.Fprintln(w)
			}
			_, err = fmt.Fprintf(w, "[%s] %s\n", e.ToolName, raw)
			return err
		case orchestratorx.DoneEvent:
			return nil
		default:
			return fmt.Errorf("unknown event %T", ev)
		}
	}
}
