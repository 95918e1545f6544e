package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/chat"
	"github.com/arin/morph/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversation where context carries over between messages.

Ctrl+C stops the answer being streamed; the cancelled exchange is dropped
from the conversation. At the prompt, Ctrl+C or 'exit' ends the session.

Commands:
  /model <id>     switch model (id or provider:id)
  /search on|off  toggle live web search
  /related        suggest follow-ups to the last answer
  /clear          start a new conversation`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	model, err := a.resolveModel(modelFlag)
	if err != nil {
		return err
	}
	searchOn := a.cfg.Search

	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	var turn chat.Turn
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if !turn.Cancel() {
				dim.Fprintf(os.Stderr, "\n  Later!\n\n")
				os.Exit(0)
			}
		}
	}()

	fmt.Fprintln(os.Stderr)
	cyan.Fprintln(os.Stderr, "  morph chat")
	dim.Fprintf(os.Stderr, "  %s · search %s · type 'exit' to quit\n\n", model.Name, onOff(searchOn && a.orch.SearchAvailable()))

	scanner := bufio.NewScanner(os.Stdin)
	var conv []chat.Message

	for {
		green.Fprint(os.Stderr, "  you → ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			dim.Fprintf(os.Stderr, "\n  Later!\n\n")
			break
		}
		if strings.HasPrefix(input, "/") {
			handleSlash(cmd.Context(), a, input, &model, &searchOn, &conv)
			continue
		}

		pending := append(append([]chat.Message(nil), conv...), chat.NewMessage(chat.RoleUser, input))
		ctx, release := turn.Begin(cmd.Context())
		fmt.Fprintln(os.Stdout)
		res, err := streamTurn(ctx, a, pending, model, searchOn, "  ")
		release()

		switch {
		case errors.Is(err, chat.ErrCancelled):
			dim.Fprintf(os.Stderr, "\n  cancelled\n\n")
		case err != nil:
			color.New(color.FgRed).Fprintf(os.Stderr, "  Error: %v\n\n", err)
		default:
			conv = append(pending, chat.NewMessage(chat.RoleAssistant, res.Text))
		}
	}
	return scanner.Err()
}

func handleSlash(ctx context.Context, a *app, input string, model *chat.ModelDescriptor, searchOn *bool, conv *[]chat.Message) {
	dim := color.New(color.FgHiBlack)
	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "model":
		m, err := a.resolveModel(arg)
		if err != nil || arg == "" {
			dim.Fprintf(os.Stderr, "  current model: %s (%s)\n\n", model.Name, model.ID)
			if err != nil {
				dim.Fprintf(os.Stderr, "  %v\n\n", err)
			}
			return
		}
		*model = m
		dim.Fprintf(os.Stderr, "  switched to %s\n\n", m.Name)
	case "search":
		on, err := parseSwitch(arg)
		if err != nil {
			dim.Fprintf(os.Stderr, "  %v\n\n", err)
			return
		}
		*searchOn = on
		dim.Fprintf(os.Stderr, "  search %s\n\n", onOff(on))
	case "related":
		last := lastUserQuery(*conv)
		if last == "" {
			dim.Fprintf(os.Stderr, "  nothing to follow up on yet\n\n")
			return
		}
		ui.PrintRelated(os.Stdout, a.orch.RelatedQuestions(ctx, *conv, last, a.creds), "  ")
	case "clear":
		*conv = nil
		dim.Fprintf(os.Stderr, "  conversation cleared\n\n")
	default:
		dim.Fprintf(os.Stderr, "  unknown command /%s\n\n", name)
	}
}

func lastUserQuery(conv []chat.Message) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == chat.RoleUser {
			return conv[i].Content
		}
	}
	return ""
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
