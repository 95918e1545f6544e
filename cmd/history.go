package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/history"
)

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyClear {
			if err := history.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Println("History cleared.")
			return nil
		}

		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)
		red := color.New(color.FgRed)
		green := color.New(color.FgGreen)

		for i, e := range entries {
			dim.Printf("[%s] ", e.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Printf("%s ", e.Query)
			cyan.Printf("→ %s:%s ", e.Provider, e.Model)
			if e.Searched {
				dim.Print("(searched) ")
			}
			if e.Success {
				green.Println("✓")
			} else {
				red.Println("✗")
			}
			switch {
			case e.Error != "":
				red.Printf("  %s\n", e.Error)
			case e.AnswerPreview != "":
				dim.Printf("  %s\n", e.AnswerPreview)
			}
			if i < len(entries)-1 {
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of history entries to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all history")
}
