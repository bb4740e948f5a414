package tui

// Keybinding constants
const (
	KeyQuit  = "q"
	KeyCtrlC = "ctrl+c"
	KeyUp    = "up"
	KeyDown  = "down"
	KeyJ     = "j"
	KeyK     = "k"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("j/k: scroll event log | q: quit")
}
