package views

import (
	"github.com/messenjrali/msgr/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView is the email/password form shown while the profile is
// unauthenticated.
type LoginView struct {
	*tview.Flex
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(email, password string)
}

// NewLoginView creates the login form.
func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)
	message.SetTextColor(theme.FlashErrColor)

	lv := &LoginView{
		form:    form,
		message: message,
	}

	form.AddInputField("Email", "", 40, nil, nil)
	form.AddPasswordField("Password", "", 40, '*', nil)
	form.AddButton("Sign in", func() {
		if lv.onSubmit == nil {
			return
		}
		email := form.GetFormItemByLabel("Email").(*tview.InputField).GetText()
		password := form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		lv.onSubmit(email, password)
	})

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(message, 1, 0, false)

	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Login" }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
	}
}

// SetOnSubmit sets the callback for form submission.
func (lv *LoginView) SetOnSubmit(fn func(email, password string)) {
	lv.onSubmit = fn
}

// ShowError displays a login failure under the form.
func (lv *LoginView) ShowError(msg string) {
	lv.message.Clear()
	lv.message.SetText(msg)
}

// ClearError clears the failure line.
func (lv *LoginView) ClearError() {
	lv.message.Clear()
}

// Form returns the underlying form for focus handling.
func (lv *LoginView) Form() *tview.Form {
	return lv.form
}
