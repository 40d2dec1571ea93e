package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/messenjrali/msgr/internal/tui/client"
	"github.com/messenjrali/msgr/internal/tui/ui"
	"github.com/rivo/tview"
)

// NotificationsView is the notification panel, newest first.
type NotificationsView struct {
	*tview.Table
	theme *ui.Theme
	data  []client.Notification
}

// NewNotificationsView creates the notification panel.
func NewNotificationsView(theme *ui.Theme) *NotificationsView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Notifications ")
	table.SetTitleColor(theme.TitleColor)

	return &NotificationsView{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (nv *NotificationsView) Name() string { return "Notifications" }

// Hints implements Component.
func (nv *NotificationsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Mark read"},
		{Key: "a", Description: "Mark all read"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update refreshes the panel. The daemon keeps the list newest first.
func (nv *NotificationsView) Update(ns *client.Notifications) {
	if ns == nil {
		return
	}
	nv.data = ns.Notifications
	nv.Clear()

	headers := []string{" ", " TITLE", " MESSAGE", " TIME"}
	for col, h := range headers {
		nv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(nv.theme.TableHeaderFg).
			SetBackgroundColor(nv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, n := range nv.data {
		row := i + 1
		marker := " "
		color := nv.theme.FgColor
		if !n.Read {
			marker = "●"
			color = nv.theme.UnreadColor
		}
		nv.SetCell(row, 0, tview.NewTableCell(" "+marker).SetTextColor(color))
		nv.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(n.Title))).SetExpansion(1).SetTextColor(color))
		nv.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(n.Message))).SetExpansion(2).SetTextColor(nv.theme.FgColor))
		nv.SetCell(row, 3, tview.NewTableCell(formatTimestamp(n.CreatedAt)).SetTextColor(nv.theme.FgColor).SetAlign(tview.AlignRight))
	}

	nv.SetTitle(fmt.Sprintf(" Notifications (%d unread) ", ns.Unread))
}

// SelectedNotification returns the id of the highlighted notification.
func (nv *NotificationsView) SelectedNotification() string {
	row, _ := nv.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(nv.data) {
		return nv.data[idx].ID
	}
	return ""
}
