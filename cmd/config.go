package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage morph configuration",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <provider> <api-key>",
	Short: "Save an API key (openai, anthropic, google, groq, deepseek, xai, tavily)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Printf("%s key saved.\n", strings.ToLower(args[0]))
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model>",
	Short: "Set the default model (id or provider:id)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model set to %s.\n", args[0])
		return nil
	},
}

var setSearchCmd = &cobra.Command{
	Use:   "set-search <on|off>",
	Short: "Enable or disable live web search by default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		if err := config.SetSearch(on); err != nil {
			return fmt.Errorf("failed to save search setting: %w", err)
		}
		fmt.Printf("Search %s.\n", onOff(on))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, line := range cfg.Redacted() {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setSearchCmd)
	configCmd.AddCommand(showCmd)
}
