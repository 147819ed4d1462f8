package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arbelos-io/glean/metrics"
)

// StatsModel is a Bubble Tea model for the service stats view.
type StatsModel struct {
	snapshot metrics.Snapshot
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a stats model from a metrics snapshot.
func NewStatsModel(snapshot metrics.Snapshot) StatsModel {
	return StatsModel{snapshot: snapshot}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	s := m.snapshot
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Started", s.RunsStarted, highlightColor),
		m.renderStatBox("Succeeded", s.RunsSucceeded, successColor),
		m.renderStatBox("Degraded", s.RunsDegraded, warningColor),
		m.renderStatBox("Failed", s.RunsFailed, errorColor),
		m.renderStatBox("Rejected", s.RunsRejected, mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(TitleStyle.Render("Pipeline"))
	b.WriteString("\n\n")
	rows := [][]string{
		{"Engine", s.Engine},
		{"Model", s.Model},
		{"Validated", fmt.Sprintf("%d", s.StatementsValidated)},
		{"Rejected", fmt.Sprintf("%d", s.StatementsRejected)},
		{"Limit rewrites", fmt.Sprintf("%d", s.LimitRewrites)},
		{"Generation calls", fmt.Sprintf("%d", s.GenerationCalls)},
		{"Retries", fmt.Sprintf("%d", s.GenerationRetries)},
		{"Self-corrections", fmt.Sprintf("%d", s.SelfCorrections)},
		{"Values masked", fmt.Sprintf("%d", s.ValuesMasked)},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(row[0]+":"),
			ValueStyle.Render(row[1])))
	}

	if len(s.RejectionsByReason) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Rejections"))
		b.WriteString("\n\n")
		for reason, n := range s.RejectionsByReason {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(reason+":"),
				ErrorStyle.Render(fmt.Sprintf("%d", n))))
		}
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	box := StatBoxStyle.BorderForeground(color)
	content := StatValueStyle.Render(fmt.Sprintf("%d", value)) + "\n" +
		StatLabelStyle.Render(label)
	return box.Render(content)
}

// RunStats runs the stats TUI.
func RunStats(snapshot metrics.Snapshot) error {
	p := tea.NewProgram(NewStatsModel(snapshot), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
