package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "redflag",
	Short: "Operator tooling for the screenshot analysis pipeline",
	Long: `redflag runs pieces of the screenshot analysis pipeline from the command
line: reprocess a job against real infrastructure, or normalize and score a
classifier payload locally.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// A local .env file is a development convenience; absence is fine.
	_ = godotenv.Load()

	// Logs go to stderr so that command output on stdout stays parseable.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
