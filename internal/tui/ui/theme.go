package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableHeaderBg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
	UnreadColor      tcell.Color
	FlashInfoColor   tcell.Color
	FlashErrColor    tcell.Color
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorLightGray,
		BorderColor:      tcell.ColorTeal,
		BorderFocusColor: tcell.ColorAqua,
		TableHeaderFg:    tcell.ColorWhite,
		TableHeaderBg:    tcell.ColorBlack,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		MenuKeyColor:     tcell.ColorTeal,
		TitleColor:       tcell.ColorFuchsia,
		UnreadColor:      tcell.ColorOrange,
		FlashInfoColor:   tcell.ColorNavajoWhite,
		FlashErrColor:    tcell.ColorOrangeRed,
	}
}

// LightTheme returns the light theme selectable from config.
func LightTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorWhite,
		FgColor:          tcell.ColorBlack,
		BorderColor:      tcell.ColorDarkCyan,
		BorderFocusColor: tcell.ColorBlue,
		TableHeaderFg:    tcell.ColorBlack,
		TableHeaderBg:    tcell.ColorWhite,
		TableCursorFg:    tcell.ColorWhite,
		TableCursorBg:    tcell.ColorDarkCyan,
		MenuKeyColor:     tcell.ColorDarkCyan,
		TitleColor:       tcell.ColorDarkMagenta,
		UnreadColor:      tcell.ColorDarkOrange,
		FlashInfoColor:   tcell.ColorDarkGoldenrod,
		FlashErrColor:    tcell.ColorRed,
	}
}

// ForName maps a config theme name to a Theme, defaulting to dark.
func ForName(name string) *Theme {
	if name == "light" {
		return LightTheme()
	}
	return DefaultTheme()
}
