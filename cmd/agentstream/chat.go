package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentstream/stream"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	searchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Underline(true)
	sessionStyle = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func newChatCmd() *cobra.Command {
	var (
		serverURL  string
		checkpoint string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running agentstream server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			c := &chatClient{
				server:     strings.TrimRight(serverURL, "/"),
				http:       http.DefaultClient,
				out:        cmd.OutOrStdout(),
				checkpoint: checkpoint,
			}
			return c.loop(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "agentstream server base URL")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "continue an existing session")
	return cmd
}

// chatClient talks to the SSE endpoint and remembers the session.
type chatClient struct {
	server     string
	http       *http.Client
	out        io.Writer
	checkpoint string
}

func (c *chatClient) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if err := c.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(c.out, errorStyle.Render("error: "+err.Error()))
		}
	}
}

// ask sends one message and prints the reply as it streams in.
func (c *chatClient) ask(ctx context.Context, message string) error {
	u := c.server + "/chat_stream/" + url.PathEscape(message)
	if c.checkpoint != "" {
		u += "?checkpoint_id=" + url.QueryEscape(c.checkpoint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return fmt.Errorf("server returned %s: %s", resp.Status, body.Error)
	}

	midLine := false
	err = stream.Decode(resp.Body, func(rec stream.Record) error {
		switch rec.Type {
		case stream.TypeCheckpoint:
			c.checkpoint = rec.CheckpointID
			fmt.Fprintln(c.out, sessionStyle.Render("session "+rec.CheckpointID))
		case stream.TypeContent:
			fmt.Fprint(c.out, rec.Content)
			midLine = !strings.HasSuffix(rec.Content, "\n")
		case stream.TypeSearchStart:
			if midLine {
				fmt.Fprintln(c.out)
				midLine = false
			}
			fmt.Fprintln(c.out, searchStyle.Render("searching: "+rec.Query))
		case stream.TypeSearchResults:
			for _, u := range rec.URLs {
				fmt.Fprintln(c.out, "  "+urlStyle.Render(u))
			}
		case stream.TypeError:
			return fmt.Errorf("run failed: %s", rec.Message)
		}
		return nil
	})
	if midLine {
		fmt.Fprintln(c.out)
	}
	return err
}
