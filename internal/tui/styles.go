package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by the dashboard and the init wizard.
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}
)

// Theme holds the pre-built styles of the dashboard. Widths are applied at
// render time.
type Theme struct {
	Title        lipgloss.Style
	Counter      lipgloss.Style
	Muted        lipgloss.Style
	Success      lipgloss.Style
	Warning      lipgloss.Style
	Error        lipgloss.Style
	LogHeader    lipgloss.Style
	LogContainer lipgloss.Style
	Timestamp    lipgloss.Style
}

// DefaultTheme returns the dashboard's standard theme.
func DefaultTheme() Theme {
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Counter:   lipgloss.NewStyle().Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
		Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
		Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(ColorError),
		LogHeader: lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
		LogContainer: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(ColorBorder),
		Timestamp: lipgloss.NewStyle().Foreground(ColorMuted),
	}
}
