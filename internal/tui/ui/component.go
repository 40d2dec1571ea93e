package ui

// MenuHint describes a keyboard shortcut for display in the status bar.
type MenuHint struct {
	Key         string
	Description string
}

// Component is the lifecycle interface for all TUI views.
type Component interface {
	Name() string
	Hints() []MenuHint
}
