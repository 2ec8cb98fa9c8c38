package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/contrib-stats/internal/cache"
	"github.com/naka-gawa/contrib-stats/internal/config"
	"github.com/naka-gawa/contrib-stats/internal/gateway"
	"github.com/naka-gawa/contrib-stats/internal/period"
	"github.com/naka-gawa/contrib-stats/internal/usecase"
)

var (
	infoColor = color.New(color.FgCyan)
	okColor   = color.New(color.FgGreen)
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects contribution activity and writes it as JSON",
	Long: `Collects commits and pull requests for every configured repository,
aggregates them per contributor and per month, and writes the result as
a single JSON document. Months that can no longer change are served from
the on-disk cache on repeat runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd)

		configPath, _ := cmd.InheritedFlags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Output = output
		}
		if startDate, _ := cmd.Flags().GetString("start-date"); startDate != "" {
			cfg.StartDate = startDate
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
			cfg.UseCache = false
		}

		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			os.Exit(1)
		}

		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		// Probe the token before queueing any work.
		login, err := githubGateway.AuthenticatedLogin(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to authenticate with GitHub: %v\n", err)
			os.Exit(1)
		}
		okColor.Fprintf(os.Stderr, "Authenticated as %s\n", login)
		if remaining, limit, resetAt, err := githubGateway.RateLimitStatus(ctx); err == nil {
			infoColor.Fprintf(os.Stderr, "Rate limit: %d/%d remaining (resets %s)\n",
				remaining, limit, resetAt.UTC().Format(time.RFC3339))
		}

		var store *cache.Store
		if cfg.UseCache {
			store = cache.NewStore(cfg.CacheDir, cache.SchemaVersion, logger)
		}

		repos, err := cfg.RepoRefs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		now := time.Now().UTC()
		startDate := cfg.ResolveStartDate(now)
		infoColor.Fprintf(os.Stderr, "Collecting %d repositories since %s\n",
			len(repos), startDate.Format("2006-01-02"))

		collector := usecase.NewCollector(githubGateway, store, period.Default(), cfg.CollectorOptions(), logger)
		corpus := collector.Collect(ctx, repos, startDate, now)

		jsonData, err := json.MarshalIndent(corpus, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal collected data to JSON: %v\n", err)
			os.Exit(1)
		}
		if dir := filepath.Dir(cfg.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
				os.Exit(1)
			}
		}
		if err := os.WriteFile(cfg.Output, jsonData, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write collected data: %v\n", err)
			os.Exit(1)
		}

		okColor.Fprintf(os.Stderr, "Collected %d/%d repositories into %s\n",
			len(corpus.Repositories), len(repos), cfg.Output)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringP("output", "o", "", "Output file for the collected JSON (overrides config)")
	collectCmd.Flags().String("start-date", "", "Start of the collection window (YYYY-MM-DD, overrides config)")
	collectCmd.Flags().Bool("no-cache", false, "Bypass the on-disk cache for this run")
}
