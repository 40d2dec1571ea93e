package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/messenjrali/msgr/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays profile, connection state, the unread bell, and the
// key hints of the active view.
type StatusBar struct {
	*tview.TextView
	profile string
	state   string
	unread  int
	flash   string
	hints   []ui.MenuHint
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetUnread updates the notification bell counter.
func (sb *StatusBar) SetUnread(n int) {
	sb.unread = n
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

// SetHints shows the active view's key shortcuts.
func (sb *StatusBar) SetHints(hints []ui.MenuHint) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	bell := ""
	if sb.unread > 0 {
		bell = fmt.Sprintf(" | [orange]✉ %d[-]", sb.unread)
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s%s | %s", sb.profile, sb.state, bell, clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	} else if len(sb.hints) > 0 {
		parts := make([]string, 0, len(sb.hints))
		for _, h := range sb.hints {
			parts = append(parts, fmt.Sprintf("[teal]%s[-] %s", h.Key, h.Description))
		}
		line += " | " + strings.Join(parts, "  ")
	}

	_, _ = fmt.Fprint(sb, line)
}
