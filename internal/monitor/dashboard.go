package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chakssp/convergd/internal/server"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
)

// Model is the BubbleTea dashboard model.
type Model struct {
	baseURL    string
	interval   time.Duration
	lastUpdate time.Time
	stats      server.StatsResponse
	err        error
	quitting   bool

	convergeProgress progress.Model
	cacheProgress    progress.Model
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling the given daemon base URL.
func NewModel(baseURL string, interval time.Duration) Model {
	return Model{
		baseURL:  baseURL,
		interval: interval,
		convergeProgress: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(40),
		),
		cacheProgress: progress.New(
			progress.WithGradient("#ff00ff", "#00ffff"),
			progress.WithWidth(40),
		),
	}
}

func convergenceBadge(rate float64) string {
	if rate >= 0.7 {
		return healthyStyle.Render("[✓]")
	}
	if rate >= 0.3 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type statsMsg server.StatsResponse
type errMsg error

// Init starts the fetch/refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStats(m.baseURL),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStats(baseURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		stats, err := NewStatsClient(baseURL).Fetch(ctx)
		if err != nil {
			return errMsg(err)
		}
		return statsMsg(stats)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStats(m.baseURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStats(m.baseURL),
		)

	case statsMsg:
		m.stats = server.StatsResponse(msg)
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render(" convergd Monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach convergd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.baseURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Is the daemon running? Try: convergd --config convergd.yaml") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("15:04:05")
	}

	status := healthyStyle.Render("✓ CONNECTED")
	headerLine := fmt.Sprintf("%s   %s %s   %s",
		status,
		dimStyle.Render("Uptime:"),
		valueStyle.Render(FormatUptime(m.stats.UptimeSeconds)),
		dimStyle.Render(lastUpdateStr))

	content += headerStyle.Render(" convergd Monitor ") + "\n"
	content += headerLine + "\n"

	evals := m.stats.Evaluations
	convergeRate := Ratio(evals.Converged, evals.Total)

	content += "\n" + sectionStyle.Render("┃ Evaluations") + "\n"
	content += labelStyle.Render("  Total: ") +
		valueStyle.Render(fmt.Sprintf("%d", evals.Total)) +
		dimStyle.Render("  converged=") + valueStyle.Render(fmt.Sprintf("%d", evals.Converged)) +
		dimStyle.Render("  pending=") + valueStyle.Render(fmt.Sprintf("%d", evals.NotConverged)) +
		dimStyle.Render("  schema-ready=") + valueStyle.Render(fmt.Sprintf("%d", evals.SchemaReady)) + "\n"

	lastScore := "—"
	if n := len(evals.RecentScores); n > 0 {
		lastScore = FormatScore(evals.RecentScores[n-1])
	}
	content += labelStyle.Render("  Composite: ") +
		valueStyle.Render(lastScore) +
		" " + convergenceBadge(convergeRate) +
		"   " + createSparkline(evals.RecentScores) + "\n"

	content += labelStyle.Render("  Converge rate: ") +
		m.convergeProgress.ViewAs(convergeRate) +
		" " + dimStyle.Render(FormatPercentage(convergeRate)) + "\n"

	cache := m.stats.Cache
	hitRate := Ratio(cache.Hits, cache.Hits+cache.Misses)

	content += "\n" + sectionStyle.Render("┃ Result Cache") + "\n"
	content += labelStyle.Render("  Hit rate: ") +
		m.cacheProgress.ViewAs(hitRate) +
		" " + dimStyle.Render(FormatPercentage(hitRate)) + "\n"
	content += labelStyle.Render("  Entries: ") +
		valueStyle.Render(fmt.Sprintf("%d/%d", cache.Size, cache.Capacity)) +
		dimStyle.Render("  hits=") + valueStyle.Render(fmt.Sprintf("%d", cache.Hits)) +
		dimStyle.Render("  misses=") + valueStyle.Render(fmt.Sprintf("%d", cache.Misses)) + "\n"

	ident := m.stats.Identity

	content += "\n" + sectionStyle.Render("┃ Identity Resolution") + "\n"
	content += labelStyle.Render("  Lookups: ") +
		dimStyle.Render("exact=") + valueStyle.Render(fmt.Sprintf("%d", ident.Exact)) +
		dimStyle.Render("  normalized=") + valueStyle.Render(fmt.Sprintf("%d", ident.Normalized)) +
		dimStyle.Render("  fuzzy=") + valueStyle.Render(fmt.Sprintf("%d", ident.FuzzyJaccard+ident.FuzzyEdit)) +
		dimStyle.Render("  misses=") + valueStyle.Render(fmt.Sprintf("%d", ident.Misses)) + "\n"
	content += labelStyle.Render("  Mapping: ") +
		valueStyle.Render(fmt.Sprintf("%d keys", ident.MappingSize)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Knowledge Base") + "\n"
	content += labelStyle.Render("  Categories: ") +
		valueStyle.Render(fmt.Sprintf("%d", len(m.stats.Categories))) +
		dimStyle.Render("  tracked files=") + valueStyle.Render(fmt.Sprintf("%d", m.stats.HistoryFiles)) + "\n"

	content += "\n" + sectionStyle.Render("┃ System") + "\n"
	content += labelStyle.Render("  Goroutines: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.stats.Goroutines)) + "\n"

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	content += "\n" + footer

	return containerStyle.Render(content)
}
