package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redflag-ai/redflag/internal/services"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analysis pipeline for one job",
	Long: `Runs the same pipeline the deployed function runs, against real GCP
resources. Useful for reprocessing a stuck job or testing configuration
changes without publishing a Pub/Sub message.`,
	Example: `  # Reprocess a job by document id
  redflag analyze --job 7d4f0e9a-1b2c-4d3e-9f8a-5b6c7d8e9f0a

  # Allow a slow classifier more time
  redflag analyze --job <id> --timeout 600`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("job", "", "Job document id to process")
	analyzeCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
	_ = analyzeCmd.MarkFlagRequired("job")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jobID, _ := cmd.Flags().GetString("job")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	analyzer, err := services.NewAnalyzer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	return analyzer.Process(ctx, jobID)
}
