package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/chat"
)

var modelsAll bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models you can use",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)

		current, _ := a.resolveModel("")
		list := a.models()
		if modelsAll {
			list = a.catalog.All()
		}
		for _, m := range list {
			marker := "  "
			if m.ID == current.ID && m.ProviderID == current.ProviderID {
				marker = "* "
			}
			cyan.Printf("%s%s:%s", marker, m.ProviderID, m.ID)
			dim.Printf("  %s", m.Name)
			if modelsAll && !(m.Enabled && a.creds.Has(m.ProviderID)) {
				dim.Print("  (unavailable)")
			}
			fmt.Println()
		}
		if len(list) == 1 && list[0] == chat.FallbackModel && !a.creds.Has(chat.ProviderOpenAI) {
			dim.Println("\nNo provider keys configured. Try: morph config set-key openai <key>")
		}
		return nil
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsAll, "all", false, "Include models without a configured key")
}
