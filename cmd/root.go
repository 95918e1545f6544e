package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/chat"
	"github.com/arin/morph/internal/history"
	"github.com/arin/morph/internal/stats"
	"github.com/arin/morph/internal/ui"
)

var (
	version = "dev"

	modelFlag    string
	noSearchFlag bool
	relatedFlag  bool
	sourcesFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "morph [question]",
	Short: "Ask questions to any LLM provider, grounded in live web search",
	Long: `morph streams answers from OpenAI, Anthropic, Google, Groq, DeepSeek
or xAI, and searches the web first when a question needs fresh information.

Examples:
  morph what is the latest Go release
  morph -m anthropic:claude-3-5-sonnet-latest explain monads
  morph --no-search summarize the plot of Hamlet
  morph chat`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runAsk,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model id or provider:id (see: morph models)")
	rootCmd.Flags().BoolVar(&noSearchFlag, "no-search", false, "Never search the web for this question")
	rootCmd.Flags().BoolVar(&relatedFlag, "related", false, "Suggest follow-up questions after the answer")
	rootCmd.PersistentFlags().BoolVar(&sourcesFlag, "sources", true, "List search sources after the answer")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

// SetVersion records the build version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

func questionFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := questionFromArgs(args)
	if question == "" {
		return cmd.Help()
	}

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	model, err := a.resolveModel(modelFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conv := []chat.Message{chat.NewMessage(chat.RoleUser, question)}
	res, err := streamTurn(ctx, a, conv, model, a.cfg.Search && !noSearchFlag, "")
	if errors.Is(err, chat.ErrCancelled) {
		color.New(color.FgHiBlack).Fprintln(os.Stderr, "  cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	if relatedFlag {
		conv = append(conv, chat.NewMessage(chat.RoleAssistant, res.Text))
		ui.PrintRelated(os.Stdout, a.orch.RelatedQuestions(ctx, conv, question, a.creds), "")
	}
	return nil
}

// streamTurn runs one turn, renders it and records it in history and stats.
// Cancelled turns only count towards stats.
func streamTurn(ctx context.Context, a *app, conv []chat.Message, model chat.ModelDescriptor, searchOn bool, prefix string) (ui.Result, error) {
	sp := ui.NewSpinner(fmt.Sprintf("Asking %s...", model.Name))
	sp.Start()
	defer sp.Stop()

	start := time.Now()
	var firstEvent time.Duration
	onFirst := func() {
		firstEvent = time.Since(start)
		sp.Stop()
	}

	res, err := ui.RenderStream(os.Stdout, a.orch.Stream(ctx, chat.Request{
		Conversation: conv,
		Model:        model,
		Credentials:  a.creds,
		Search:       searchOn,
	}), ui.RenderOptions{Prefix: prefix, OnFirstEvent: onFirst, ShowSources: sourcesFlag})

	rec := stats.Record{
		Provider:     string(model.ProviderID),
		Model:        model.ID,
		Outcome:      stats.OutcomeComplete,
		Searched:     res.Search != nil,
		FirstEventMs: firstEvent.Milliseconds(),
		TotalMs:      time.Since(start).Milliseconds(),
		Chars:        len([]rune(res.Text)),
	}
	switch {
	case errors.Is(err, chat.ErrCancelled):
		rec.Outcome = stats.OutcomeCancelled
	case err != nil:
		rec.Outcome = stats.OutcomeError
	}
	if serr := stats.Save(rec); serr != nil {
		a.log.Debug().Err(serr).Msg("could not save stats")
	}

	if errors.Is(err, chat.ErrCancelled) {
		return res, err
	}
	entry := history.Entry{
		Query:         conv[len(conv)-1].Content,
		Model:         model.ID,
		Provider:      string(model.ProviderID),
		Searched:      res.Search != nil,
		Success:       err == nil,
		AnswerPreview: res.Text,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if herr := history.Save(entry); herr != nil {
		a.log.Warn().Err(herr).Msg("could not save history")
	}
	return res, err
}
