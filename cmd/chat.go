package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/pkg/protocol"
)

// chatCmd is the terminal chat client: it dials a running gateway's chat
// WebSocket and renders the event stream, or sends a single --message and
// exits.
func chatCmd() *cobra.Command {
	var (
		addr    string
		session string
		message string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running forgeline gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				session = "cli-" + uuid.NewString()[:8]
			}
			return runChatClient(addr, session, message)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "gateway address")
	cmd.Flags().StringVar(&session, "session", "", "session id (default: fresh cli-XXXXXXXX)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "send one message and exit")
	return cmd
}

// wireFrame mirrors chatws's outgoing frame: a bus event name plus its payload.
type wireFrame struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func runChatClient(addr, sessionID, oneShot string) error {
	wsURL := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "session=" + url.QueryEscape(sessionID)}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL.String(), err)
	}
	defer conn.Close()

	if oneShot != "" {
		return sendAndRender(conn, oneShot)
	}

	fmt.Fprintf(os.Stderr, "forgeline chat (session: %s)\n", sessionID)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		if err := sendAndRender(conn, input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		}
	}
}

// sendAndRender writes one {message} frame and renders events until the
// turn terminates. text.delta payloads are cumulative, so only the suffix
// beyond what was already printed goes to stdout.
func sendAndRender(conn *websocket.Conn, message string) error {
	if err := conn.WriteJSON(map[string]string{"message": message}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	printed := 0
	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch frame.Name {
		case protocol.EventTurnStart:
			printed = 0

		case protocol.EventTextDelta:
			var p protocol.TextDeltaPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				continue
			}
			if len(p.Content) > printed {
				fmt.Print(p.Content[printed:])
				printed = len(p.Content)
			}

		case protocol.EventToolCall:
			var p protocol.ToolCallPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "\n  [tool] %s\n", p.Name)
			printed = 0

		case protocol.EventToolResult:
			var p protocol.ToolResultPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				continue
			}
			if p.Status == "error" {
				fmt.Fprintf(os.Stderr, "  [tool] -> error: %s\n", firstLine(p.Content))
			}

		case protocol.EventTurnDone:
			var p protocol.TurnDonePayload
			if err := json.Unmarshal(frame.Payload, &p); err == nil {
				fmt.Fprintf(os.Stderr, "\n(in: %d tok, out: %d tok)\n\n", p.Usage.InputTokens, p.Usage.OutputTokens)
			} else {
				fmt.Println()
			}
			return nil

		case protocol.EventTurnError:
			var p protocol.TurnErrorPayload
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				return fmt.Errorf("turn failed")
			}
			return fmt.Errorf("turn failed: %s: %s", p.Kind, p.Error)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
