package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/taskforge/taskforge/internal/events"
)

// LogPaneModel is a scrolling log of lifecycle events.
type LogPaneModel struct {
	viewport viewport.Model
	lines    []string
	width    int
	height   int
}

// NewLogPaneModel creates a new log pane model.
func NewLogPaneModel() LogPaneModel {
	return LogPaneModel{viewport: viewport.New(0, 0)}
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyJ, KeyDown:
			m.viewport.ScrollDown(1)
		case KeyK, KeyUp:
			m.viewport.ScrollUp(1)
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.Event:
		if line := formatEvent(msg); line != "" {
			m.lines = append(m.lines, line)
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
	}

	return m, cmd
}

// formatEvent renders one event as a log line. Progress events are shown in
// the progress pane instead and produce no line here.
func formatEvent(e events.Event) string {
	switch ev := e.(type) {
	case events.TaskStartedEvent:
		return fmt.Sprintf("%s %s started  cap=%s locks=%s",
			ev.Timestamp.Format("15:04:05"), ev.ID, ev.Capability, ev.Locks)
	case events.TaskSucceededEvent:
		return fmt.Sprintf("%s %s %s  attempts=%d elapsed=%s",
			ev.Timestamp.Format("15:04:05"), ev.ID, StyleStatusSucceeded.Render("succeeded"), ev.Attempts, ev.Duration.Round(1e6))
	case events.TaskFailedEvent:
		return fmt.Sprintf("%s %s %s  reason=%s attempts=%d err=%v",
			ev.Timestamp.Format("15:04:05"), ev.ID, StyleStatusFailed.Render("failed"), ev.Reason, ev.Attempts, ev.Err)
	case events.TaskRetryingEvent:
		return fmt.Sprintf("%s %s retrying  attempt=%d delay=%s err=%v",
			ev.Timestamp.Format("15:04:05"), ev.ID, ev.Attempt, ev.Delay.Round(1e6), ev.Err)
	case events.TaskSkippedEvent:
		return fmt.Sprintf("%s %s %s  blocked by %s",
			ev.Timestamp.Format("15:04:05"), ev.ID, StyleStatusSkipped.Render("skipped"), ev.BlockedBy)
	case events.TaskCancelledEvent:
		return fmt.Sprintf("%s %s cancelled", ev.Timestamp.Format("15:04:05"), ev.ID)
	case events.RunCancelledEvent:
		return fmt.Sprintf("%s run cancelled  cause=%s", ev.Timestamp.Format("15:04:05"), ev.Cause)
	case events.RunCompletedEvent:
		return fmt.Sprintf("%s run completed  outcome=%s elapsed=%s",
			ev.Timestamp.Format("15:04:05"), ev.Outcome, ev.Duration.Round(1e6))
	}
	return ""
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 {
		return ""
	}

	title := StyleTitle.Render("Events")
	return StyleUnfocusedBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(title + "\n" + m.viewport.View())
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = maxInt(0, w-4)
	m.viewport.Height = maxInt(0, h-4)
}
