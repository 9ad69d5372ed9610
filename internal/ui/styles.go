// Package ui provides the terminal styling for the rikyu chat.
// Colors follow the classic chat palette: user blue, agent green, system yellow, errors red.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Light Mode Colors (Default)
	LightUser   = lipgloss.Color("#1565C0") // Blue
	LightBot    = lipgloss.Color("#2E7D32") // Green
	LightSystem = lipgloss.Color("#B28704") // Dark yellow, readable on white
	LightMuted  = lipgloss.Color("#78909C")

	// Dark Mode Colors
	DarkUser   = lipgloss.Color("#64B5F6")
	DarkBot    = lipgloss.Color("#8BC34A") // Lime Green
	DarkSystem = lipgloss.Color("#FFC107") // Yellow
	DarkMuted  = lipgloss.Color("#90A4AE")

	Destructive = lipgloss.Color("#e53935") // Red
)

// Theme holds the current color scheme
type Theme struct {
	User   lipgloss.Color
	Bot    lipgloss.Color
	System lipgloss.Color
	Muted  lipgloss.Color
	IsDark bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{User: LightUser, Bot: LightBot, System: LightSystem, Muted: LightMuted}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{User: DarkUser, Bot: DarkBot, System: DarkSystem, Muted: DarkMuted, IsDark: true}
}

// DetectTheme picks dark mode from COLORFGBG or RIKYU_DARK_MODE=1, light otherwise.
func DetectTheme() Theme {
	// Format is usually "foreground;background"
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
			// 0-6 and 8 (dark grey) are likely dark backgrounds
			if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
				return DarkTheme()
			}
		}
	}
	if os.Getenv("RIKYU_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled line kinds of the chat.
type Styles struct {
	Theme Theme

	Banner lipgloss.Style
	User   lipgloss.Style
	Bot    lipgloss.Style
	System lipgloss.Style
	Error  lipgloss.Style
	Muted  lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Banner: lipgloss.NewStyle().
			Foreground(theme.System).
			Bold(true),

		User: lipgloss.NewStyle().
			Foreground(theme.User).
			Bold(true),

		Bot: lipgloss.NewStyle().
			Foreground(theme.Bot),

		System: lipgloss.NewStyle().
			Foreground(theme.System),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),
	}
}

// PlainStyles renders every line kind unstyled. Used when output is not a
// terminal or color is disabled.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Theme:  LightTheme(),
		Banner: plain,
		User:   plain,
		Bot:    plain,
		System: plain,
		Error:  plain,
		Muted:  plain,
	}
}

// DefaultStyles returns themed styles for a terminal, plain ones otherwise.
func DefaultStyles(out *os.File, color bool) Styles {
	if !color || out == nil || !IsTerminal(out) {
		return PlainStyles()
	}
	return NewStyles(DetectTheme())
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
