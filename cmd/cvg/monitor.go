package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/chakssp/convergd/internal/monitor"
)

var monitorInterval time.Duration

// monitorCmd runs the live terminal dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard for a running convergd daemon",
	Long: `Live terminal dashboard for a running convergd daemon.

Polls the stats endpoint and renders evaluation outcomes, the
composite-score sparkline, cache effectiveness, and identity-resolution
activity.

Keys: [q] quit, [r] refresh.

Examples:
  cvg monitor
  cvg monitor --interval 2s --server http://localhost:8080`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Second, "refresh interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	model := monitor.NewModel(serverURL, monitorInterval)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
