package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/contrib-stats/internal/config"
	"github.com/naka-gawa/contrib-stats/internal/domain"
	"github.com/naka-gawa/contrib-stats/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Renders collected data as an HTML leaderboard",
	Long: `Reads the JSON document written by the collect command, aggregates it
across repositories, and renders a standalone HTML page with a
contributor leaderboard and monthly activity tables.`,
	Run: func(cmd *cobra.Command, args []string) {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		raw, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read collected data: %v\n", err)
			os.Exit(1)
		}
		var corpus domain.Corpus
		if err := json.Unmarshal(raw, &corpus); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse collected data: %v\n", err)
			os.Exit(1)
		}

		summary := report.Aggregate(&corpus, time.Now().UTC())

		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
				os.Exit(1)
			}
		}
		f, err := os.Create(output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create report file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := report.WriteHTML(f, summary); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			os.Exit(1)
		}

		okColor.Fprintf(os.Stderr, "Report with %d contributors written to %s\n",
			len(summary.Contributors), output)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("input", "i", config.DefaultOutput, "Collected JSON to render")
	reportCmd.Flags().StringP("output", "o", "data/report.html", "Output HTML file")
}
