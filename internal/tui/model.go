package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskforge/taskforge/internal/events"
)

// Model is the root Bubble Tea model for the run monitor. It consumes the
// engine's lifecycle event stream; it never controls the run.
type Model struct {
	progress ProgressPaneModel
	logPane  LogPaneModel
	eventSub <-chan events.Event
	width    int
	height   int
	quitting bool
	done     bool
	outcome  string
}

// New creates a new monitor model subscribed to all topics on the bus.
func New(bus *events.Bus) Model {
	return Model{
		progress: NewProgressPaneModel(),
		logPane:  NewLogPaneModel(),
		eventSub: bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.logPane, cmd = m.logPane.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.RunProgressEvent:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.RunCompletedEvent:
		m.done = true
		m.outcome = msg.Outcome
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.Event:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	top := m.progress.View()
	bottom := m.logPane.View()

	helpBar := HelpView()
	if m.done {
		helpBar = StyleHelp.Render("run finished: "+m.outcome+" | ") + helpBar
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, bottom, helpBar)
}

// computeLayout calculates pane dimensions and updates the child models.
func (m *Model) computeLayout() {
	availableHeight := m.height - 1 // reserve 1 line for the help bar
	topHeight := minInt(availableHeight/2, 14)
	bottomHeight := availableHeight - topHeight

	m.progress.SetSize(m.width, topHeight)
	m.logPane.SetSize(m.width, bottomHeight)
}
