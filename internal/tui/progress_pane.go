package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskforge/taskforge/internal/events"
)

// ProgressPaneModel shows the per-state task tallies for the current run.
type ProgressPaneModel struct {
	total     int
	succeeded int
	running   int
	failed    int
	skipped   int
	cancelled int
	pending   int
	width     int
	height    int
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.RunProgressEvent:
		m.total = msg.Total
		m.succeeded = msg.Succeeded
		m.running = msg.Running
		m.failed = msg.Failed
		m.skipped = msg.Skipped
		m.cancelled = msg.Cancelled
		m.pending = msg.Pending
	}

	return m, nil
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Run Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Succeeded: %s\n", StyleStatusSucceeded.Render(fmt.Sprintf("%d", m.succeeded))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Skipped:   %s\n", StyleStatusSkipped.Render(fmt.Sprintf("%d", m.skipped))))
	b.WriteString(fmt.Sprintf("Cancelled: %s\n", StyleStatusSkipped.Render(fmt.Sprintf("%d", m.cancelled))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))

	b.WriteString("\n")

	// Progress bar over resolved tasks
	if m.total > 0 {
		barWidth := minInt(m.width-4, 40)
		doneWidth := (m.succeeded * barWidth) / m.total
		failedWidth := ((m.failed + m.skipped + m.cancelled) * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - doneWidth - failedWidth - runningWidth

		bar := StyleStatusSucceeded.Render(strings.Repeat("=", maxInt(0, doneWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", maxInt(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", maxInt(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", maxInt(0, pendingWidth)))

		resolved := m.succeeded + m.failed + m.skipped + m.cancelled
		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, resolved, m.total))
	}

	return StyleUnfocusedBorder.
		Width(m.width - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
