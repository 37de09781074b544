package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/scan"
)

// Styles are plain text once --no-color sets the Ascii profile.
var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleSeparator = lipgloss.NewStyle()
	styleSection   = lipgloss.NewStyle().Bold(true)
	styleErrorLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // red
	styleWarnLbl   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true) // yellow
	styleSuccess   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))            // green
	styleMuted     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// sourceStyle returns the style for a config value's origin.
func sourceStyle(src config.ConfigSource) lipgloss.Style {
	switch src {
	case config.SourceFile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
	case config.SourceEnv:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // bright yellow
	case config.SourceCLI:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")) // bright red
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // bright green
	}
}

// statusStyle returns the style for a batch file status.
func statusStyle(s scan.Status) lipgloss.Style {
	switch s {
	case scan.StatusSuccess:
		return styleSuccess
	case scan.StatusFailed:
		return styleErrorLbl
	default:
		return styleWarnLbl
	}
}
