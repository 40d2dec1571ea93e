package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/messenjrali/msgr/internal/tui/client"
	"github.com/messenjrali/msgr/internal/tui/keys"
	"github.com/messenjrali/msgr/internal/tui/model"
	"github.com/messenjrali/msgr/internal/tui/ui"
	"github.com/messenjrali/msgr/internal/tui/views"
	"github.com/rivo/tview"
)

// refreshInterval is the poll cadence against the daemon. The daemon does
// the realtime work; the TUI only re-reads its reconciled state.
const refreshInterval = 2 * time.Second

// App is the main TUI application shell.
type App struct {
	app         *tview.Application
	pages       *tview.Pages
	vm          *model.ViewModel
	registry    *keys.Registry
	theme       *ui.Theme
	statusBar   *views.StatusBar
	convList    *views.ConversationList
	convFlex    *tview.Flex
	filterInput *tview.InputField
	chatTitle   *tview.TextView
	composer    *views.Composer
	searchV     *views.SearchView
	notifV      *views.NotificationsView
	loginV      *views.LoginView
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, profileName, themeName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.ForName(themeName)

	chatTitle := tview.NewTextView().SetDynamicColors(true)
	chatTitle.SetBorder(true)
	chatTitle.SetBorderColor(theme.BorderColor)
	chatTitle.SetBackgroundColor(theme.BgColor)

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		registry:  keys.NewRegistry(),
		theme:     theme,
		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(theme),
		chatTitle: chatTitle,
		composer:  views.NewComposer(theme),
		searchV:   views.NewSearchView(theme),
		notifV:    views.NewNotificationsView(theme),
		loginV:    views.NewLoginView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.filterInput = tview.NewInputField().
		SetLabel(" / ").
		SetFieldBackgroundColor(theme.BgColor).
		SetFieldTextColor(theme.FgColor).
		SetLabelColor(theme.MenuKeyColor)
	a.filterInput.SetBackgroundColor(theme.BgColor)

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	a.statusBar.SetHints(a.hintsFor("conversations"))

	return a
}

// switchTo changes the visible page, moves focus, and swaps the status bar
// hints to the new view's shortcuts.
func (a *App) switchTo(page string, focus tview.Primitive) {
	a.pages.SwitchToPage(page)
	a.app.SetFocus(focus)
	a.statusBar.SetHints(a.hintsFor(page))
}

func (a *App) hintsFor(page string) []ui.MenuHint {
	switch page {
	case "conversations":
		return a.convList.Hints()
	case "search":
		return a.searchV.Hints()
	case "notifications":
		return a.notifV.Hints()
	case "login":
		return a.loginV.Hints()
	case "chat":
		return []ui.MenuHint{
			{Key: "Enter", Description: "Send"},
			{Key: "Esc", Description: "Back"},
		}
	}
	return nil
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("conversations", "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.showFilter() },
	})
	a.registry.AddView("conversations", "search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Handler: func() { a.showSearch() },
	})
	a.registry.AddView("conversations", "notifications", &keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:notifications", Visible: true,
		Handler: func() { a.showNotifications() },
	})
	a.registry.AddView("conversations", "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.refreshNow() },
	})
	a.registry.AddView("notifications", "mark-all", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:mark all read", Visible: true,
		Handler: func() { a.markAllNotificationsRead() },
	})
}

func (a *App) setupCallbacks() {
	a.filterInput.SetChangedFunc(func(text string) {
		a.convList.SetFilter(text)
	})
	a.filterInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.filterInput.SetText("")
			a.convList.ClearFilter()
		}
		a.hideFilter()
	})

	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedConversation(); id != "" {
			a.openConversation(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.vm.Flash.Set("Send failed: "+err.Error(), 5*time.Second)
			}
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.vm.Flash.Get())
			})
		}()
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.vm.Search(a.ctx, query)
			if err != nil {
				a.vm.Flash.Set("Search failed: "+err.Error(), 5*time.Second)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
			})
		}()
	})

	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		userID := a.searchV.SelectedUser()
		if userID == "" {
			return
		}
		go func() {
			conv, err := a.vm.StartConversation(a.ctx, userID)
			if err != nil {
				a.vm.Flash.Set("Could not start conversation: "+err.Error(), 5*time.Second)
				return
			}
			_ = a.vm.LoadConversations(a.ctx)
			a.app.QueueUpdateDraw(func() {
				a.convList.Update(a.vm.GetConversations())
			})
			a.openConversation(conv.ID)
		}()
	})

	a.notifV.SetSelectedFunc(func(row, col int) {
		id := a.notifV.SelectedNotification()
		if id == "" {
			return
		}
		go func() {
			if err := a.vm.MarkNotificationRead(a.ctx, id); err != nil {
				return
			}
			a.app.QueueUpdateDraw(func() {
				ns := a.vm.GetNotifications()
				a.notifV.Update(ns)
				if ns != nil {
					a.statusBar.SetUnread(ns.Unread)
				}
			})
		}()
	})

	a.loginV.SetOnSubmit(func(email, password string) {
		a.loginV.ClearError()
		go func() {
			if err := a.vm.Login(a.ctx, email, password); err != nil {
				a.app.QueueUpdateDraw(func() {
					a.loginV.ShowError(err.Error())
				})
				return
			}
			_ = a.vm.LoadConversations(a.ctx)
			_ = a.vm.LoadNotifications(a.ctx)
			a.app.QueueUpdateDraw(func() {
				a.convList.Update(a.vm.GetConversations())
				a.switchTo("conversations", a.convList)
			})
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.chatTitle, 0, 1, false).
		AddItem(a.composer, 1, 0, true)

	a.convFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filterInput, 0, 0, false)

	a.pages.AddPage("conversations", a.convFlex, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)
	a.pages.AddPage("notifications", a.notifV, true, false)
	a.pages.AddPage("login", a.loginV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat":
				go func() { _ = a.vm.Deselect(a.ctx) }()
				a.switchTo("conversations", a.convList)
				return nil
			case "search", "notifications":
				a.switchTo("conversations", a.convList)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}
		if currentPage == "login" {
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) openConversation(id string) {
	go func() {
		if err := a.vm.Select(a.ctx, id); err != nil {
			a.vm.Flash.Set("Open failed: "+err.Error(), 5*time.Second)
			return
		}
		a.app.QueueUpdateDraw(func() {
			title := id
			if c := a.vm.SelectedConversation(); c != nil {
				title = c.DisplayName
				a.chatTitle.SetText(fmt.Sprintf("\n  [::b]%s[-:-:-]\n\n  %s", tview.Escape(title), tview.Escape(c.LastMessagePreview)))
			}
			a.chatTitle.SetTitle(" " + title + " ")
			a.switchTo("chat", a.composer.InputField)
		})
	}()
}

func (a *App) showFilter() {
	a.convFlex.ResizeItem(a.filterInput, 1, 0)
	a.app.SetFocus(a.filterInput)
}

func (a *App) hideFilter() {
	a.convFlex.ResizeItem(a.filterInput, 0, 0)
	a.app.SetFocus(a.convList)
}

func (a *App) showSearch() {
	a.switchTo("search", a.searchV.Input())
}

func (a *App) showNotifications() {
	go func() {
		_ = a.vm.LoadNotifications(a.ctx)
		a.app.QueueUpdateDraw(func() {
			a.notifV.Update(a.vm.GetNotifications())
			a.switchTo("notifications", a.notifV)
		})
	}()
}

func (a *App) markAllNotificationsRead() {
	go func() {
		if err := a.vm.MarkAllNotificationsRead(a.ctx); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			ns := a.vm.GetNotifications()
			a.notifV.Update(ns)
			if ns != nil {
				a.statusBar.SetUnread(ns.Unread)
			}
		})
	}()
}

func (a *App) refreshNow() {
	go func() {
		_ = a.vm.LoadConversations(a.ctx)
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.vm.GetConversations())
		})
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadStatus(a.ctx)
		_ = a.vm.LoadConversations(a.ctx)
		_ = a.vm.LoadNotifications(a.ctx)

		a.app.QueueUpdateDraw(func() {
			a.applyState()
		})

		a.startRefreshLoop()
	}()

	return a.app.Run()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				_ = a.vm.LoadConversations(a.ctx)
				_ = a.vm.LoadNotifications(a.ctx)
				a.app.QueueUpdateDraw(func() {
					a.applyState()
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// applyState pushes the view model's snapshots into the widgets and keeps
// the visible page consistent with the daemon's auth state.
func (a *App) applyState() {
	currentPage, _ := a.pages.GetFrontPage()

	if currentPage == "conversations" {
		a.convList.Update(a.vm.GetConversations())
	}
	if currentPage == "notifications" {
		a.notifV.Update(a.vm.GetNotifications())
	}

	if ns := a.vm.GetNotifications(); ns != nil {
		a.statusBar.SetUnread(ns.Unread)
	}

	st := a.vm.GetStatus()
	if st == nil {
		a.statusBar.SetState("daemon unreachable")
		return
	}
	a.statusBar.SetState(st.State)
	a.statusBar.SetFlash(a.vm.Flash.Get())

	if st.State == "AUTH_REQUIRED" && currentPage != "login" {
		a.switchTo("login", a.loginV.Form())
	}
	if st.State != "AUTH_REQUIRED" && currentPage == "login" {
		a.convList.Update(a.vm.GetConversations())
		a.switchTo("conversations", a.convList)
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
