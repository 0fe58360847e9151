package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/redflag-ai/redflag/internal/services"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Normalize and score a raw classifier payload",
	Long: `Reads a raw classifier JSON payload and prints the canonical scored
report JSON. Runs entirely offline, which makes it handy for tuning prompts
and inspecting how malformed model output gets repaired.`,
	Example: `  # Score a captured model response
  redflag score --file response.json

  # Pipe a payload through stdin
  cat response.json | redflag score --file -`,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("file", "", "Path to a raw classifier JSON payload, or '-' for stdin")
	_ = scoreCmd.MarkFlagRequired("file")
}

func runScore(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	raw, ok := services.ExtractJSONObject(string(data))
	if !ok {
		fmt.Fprintln(os.Stderr, "warning: input contains no JSON object; scoring an empty payload")
	}

	report := services.Normalize(raw)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := services.ValidateReportJSON(out); err != nil {
		return fmt.Errorf("normalized report failed self-validation: %w", err)
	}

	fmt.Println(string(out))
	return nil
}
