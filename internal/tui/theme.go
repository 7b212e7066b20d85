package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemeClinic   ThemeName = "clinic"
	ThemeMidnight ThemeName = "midnight"
)

type Theme struct {
	Name ThemeName

	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor
	Accent      lipgloss.AdaptiveColor
	Success     lipgloss.AdaptiveColor
	Warn        lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor

	Title    lipgloss.Style
	Prompt   lipgloss.Style
	Hint     lipgloss.Style
	Feedback lipgloss.Style
	Status   lipgloss.Style
	Footer   lipgloss.Style
	TimerOK  lipgloss.Style
	TimerLow lipgloss.Style

	Option      lipgloss.Style
	OptionFocus lipgloss.Style
	OptionPick  lipgloss.Style

	CardDown    lipgloss.Style
	CardUp      lipgloss.Style
	CardMatched lipgloss.Style
	CardFocus   lipgloss.Style

	Pane lipgloss.Style
}

func NewTheme(name string) Theme {
	if name == "" {
		name = os.Getenv("THERAPYCTL_THEME")
	}
	switch ThemeName(name) {
	case ThemeMidnight:
		return newMidnightTheme()
	default:
		return newClinicTheme()
	}
}

func newClinicTheme() Theme {
	t := Theme{
		Name:        ThemeClinic,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1d2433", Dark: "#f2f2f2"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#4a5568", Dark: "#c7c7c7"},
		Accent:      lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#7aa2f7"},
		Success:     lipgloss.AdaptiveColor{Light: "#16803c", Dark: "#9ece6a"},
		Warn:        lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#e0af68"},
		Error:       lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f7768e"},
		Border:      lipgloss.AdaptiveColor{Light: "#9aa0a6", Dark: "#565f89"},
	}
	return t.buildStyles()
}

func newMidnightTheme() Theme {
	t := Theme{
		Name:        ThemeMidnight,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#14141f", Dark: "#c0caf5"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#3b3b54", Dark: "#787fa6"},
		Accent:      lipgloss.AdaptiveColor{Light: "#5a4fcf", Dark: "#bb9af7"},
		Success:     lipgloss.AdaptiveColor{Light: "#1f7a4d", Dark: "#73daca"},
		Warn:        lipgloss.AdaptiveColor{Light: "#8a6500", Dark: "#ff9e64"},
		Error:       lipgloss.AdaptiveColor{Light: "#a52f45", Dark: "#f7768e"},
		Border:      lipgloss.AdaptiveColor{Light: "#6a6a8a", Dark: "#3b4261"},
	}
	return t.buildStyles()
}

func (t Theme) buildStyles() Theme {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.Prompt = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.Hint = lipgloss.NewStyle().Italic(true).Foreground(t.TextMuted)
	t.Feedback = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	t.Status = lipgloss.NewStyle().Foreground(t.Error)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.TimerOK = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.TimerLow = lipgloss.NewStyle().Bold(true).Foreground(t.Error)

	t.Option = lipgloss.NewStyle().Foreground(t.TextPrimary).Padding(0, 1)
	t.OptionFocus = lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Padding(0, 1)
	t.OptionPick = lipgloss.NewStyle().Bold(true).Foreground(t.Success).Padding(0, 1)

	card := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Align(lipgloss.Center)
	t.CardDown = card.BorderForeground(t.Border).Foreground(t.TextMuted)
	t.CardUp = card.BorderForeground(t.Accent).Foreground(t.TextPrimary)
	t.CardMatched = card.BorderForeground(t.Success).Foreground(t.Success)
	t.CardFocus = card.BorderForeground(t.Accent).Bold(true)

	t.Pane = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	return t
}
