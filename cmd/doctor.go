package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/chat"
	"github.com/arin/morph/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and provider keys",
	Long: `Run a health check on your morph setup. Reports which providers have
keys, whether live search and its cache are usable, and which model
will answer by default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  morph doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " (%s)", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		a, err := newApp(nil)
		check("Configuration loads", func() (string, error) {
			if err != nil {
				return "", err
			}
			return config.Dir(), nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr)
			return nil
		}

		enabled := 0
		for _, st := range a.catalog.ProviderStatus(a.creds) {
			check(st.Name+" key", func() (string, error) {
				switch {
				case st.Enabled:
					enabled++
					return fmt.Sprintf("%d models", st.Models), nil
				case st.HasAPIKey:
					return "", fmt.Errorf("warn:key set but no enabled models in the catalog")
				default:
					return "", fmt.Errorf("warn:not configured: morph config set-key %s <key>", st.ID)
				}
			})
		}
		check("At least one provider", func() (string, error) {
			if enabled == 0 {
				return "", fmt.Errorf("no provider keys found; set OPENAI_API_KEY or run morph config set-key")
			}
			return fmt.Sprintf("%d of %d", enabled, len(chat.ProviderIDs)), nil
		})

		check("Default model", func() (string, error) {
			m, err := a.resolveModel("")
			if err != nil {
				return "", err
			}
			if !a.creds.Has(m.ProviderID) {
				return "", fmt.Errorf("%s needs a %s key", m.ID, chat.ProviderName(m.ProviderID))
			}
			return fmt.Sprintf("%s:%s", m.ProviderID, m.ID), nil
		})

		check("Live search", func() (string, error) {
			if !a.orch.SearchAvailable() {
				return "", fmt.Errorf("warn:no Tavily key; answers will not be grounded in web results")
			}
			if !a.cfg.Search {
				return "", fmt.Errorf("warn:disabled; enable with morph config set-search on")
			}
			return "tavily", nil
		})

		if a.cfg.RedisURL != "" {
			check("Search cache", func() (string, error) {
				ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
				defer cancel()
				if err := a.pingRedis(ctx); err != nil {
					return "", fmt.Errorf("warn:redis unreachable, searches will not be cached: %v", err)
				}
				return a.cfg.SearchCacheTTL.String() + " ttl", nil
			})
		}

		check("Model catalog", func() (string, error) {
			if n := len(a.catalog.Skipped()); n > 0 {
				return "", fmt.Errorf("warn:%d invalid entries ignored", n)
			}
			src := a.cfg.ModelsFile
			if src == "" {
				src = "built-in"
			}
			return fmt.Sprintf("%d models, %s", len(a.catalog.All()), src), nil
		})

		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s, morph %s", runtime.GOOS, runtime.GOARCH, version), nil
		})

		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}
		return nil
	},
}
