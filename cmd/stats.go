package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics and response times",
	Long: `Display a dashboard of your morph usage: turn counts, success and search
rates, time to first token, provider breakdown and most-used models.

Data is collected automatically and stored locally in ~/.morph/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  morph stats\n\n")

		if summary.TotalTurns == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Ask a few questions and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		green.Fprintf(os.Stderr, "  Turns:       ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalTurns)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Completed:   ")
		if summary.SuccessRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		}
		green.Fprintf(os.Stderr, "  Searched:    ")
		fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SearchRate)

		green.Fprintf(os.Stderr, "  First token: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstEventMs)
		green.Fprintf(os.Stderr, "  Full answer: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgTotalMs)

		printBreakdown := func(title string, m map[string]int) {
			if len(m) == 0 {
				return
			}
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  "+title)
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				pct := float64(m[k]) / float64(summary.TotalTurns) * 100
				bar := strings.Repeat("█", int(pct/5))
				dim.Fprintf(os.Stderr, "  %-10s ", k)
				fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, m[k], pct)
			}
		}
		printBreakdown("Providers", summary.ProviderBreakdown)
		printBreakdown("Outcomes", summary.OutcomeBreakdown)

		if len(summary.TopModels) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Models")
			for i, mc := range summary.TopModels {
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", mc.Model)
				dim.Fprintf(os.Stderr, "(%dx)\n", mc.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}
