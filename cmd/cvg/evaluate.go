package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chakssp/convergd/pkg/convergence"
)

var (
	evaluateLocal  bool
	evaluateFileID string
)

// evaluateCmd judges an analysis history for convergence
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [history.json]",
	Short: "Evaluate an analysis history for convergence",
	Long: `Evaluate an analysis history for convergence.

The input is a JSON document with a file id and iteration list:

  {
    "file_id": "report-final.md",
    "iterations": [
      {"confidence": 0.72, "label": "strategy", "timestamp": "2026-03-01T10:00:00Z"},
      {"confidence": 0.85, "label": "strategy", "timestamp": "2026-03-01T10:05:00Z"},
      {"confidence": 0.88, "label": "strategy", "timestamp": "2026-03-01T10:10:00Z"}
    ]
  }

A bare iteration array is also accepted with --file-id.

By default the history is sent to the daemon; --local runs the engine
in-process with default parameters.

Examples:
  # Evaluate against a running daemon
  cvg evaluate history.json

  # Evaluate from stdin, locally
  cat history.json | cvg evaluate --local -

  # Bare iteration array
  cvg evaluate --file-id report.md iterations.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateLocal, "local", false, "evaluate in-process instead of via the daemon")
	evaluateCmd.Flags().StringVar(&evaluateFileID, "file-id", "", "file id when the input is a bare iteration array")
}

// evaluateInput is the accepted history document shape.
type evaluateInput struct {
	FileID     string                  `json:"file_id"`
	Iterations []convergence.Iteration `json:"iterations"`
}

func parseHistory(content []byte) (evaluateInput, error) {
	var input evaluateInput
	if err := json.Unmarshal(content, &input); err == nil && len(input.Iterations) > 0 {
		if evaluateFileID != "" {
			input.FileID = evaluateFileID
		}
		return input, nil
	}

	// Fall back to a bare iteration array.
	var iterations []convergence.Iteration
	if err := json.Unmarshal(content, &iterations); err != nil {
		return evaluateInput{}, fmt.Errorf("input is neither a history document nor an iteration array: %w", err)
	}
	return evaluateInput{FileID: evaluateFileID, Iterations: iterations}, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	content, err := readInput(args)
	if err != nil {
		return err
	}

	input, err := parseHistory(content)
	if err != nil {
		return err
	}
	if input.FileID == "" {
		return fmt.Errorf("no file id: provide one in the document or via --file-id")
	}

	if evaluateLocal {
		engine, err := convergence.NewService()
		if err != nil {
			return fmt.Errorf("creating engine: %w", err)
		}
		result, err := engine.Evaluate(context.Background(), input.FileID, input.Iterations)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	var result convergence.Result
	if err := postJSON("/api/v1/convergence/evaluate", input, &result); err != nil {
		return err
	}
	return printJSON(result)
}
