package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MaxActivityLines caps the activity log; older lines are dropped first.
const MaxActivityLines = 500

// Severity selects the colour and marker of an activity line.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityOK
	SeverityWarn
	SeverityError
)

var severityMarks = map[Severity]string{
	SeverityInfo:  " ",
	SeverityOK:    "✓",
	SeverityWarn:  "!",
	SeverityError: "✗",
}

// ActivityLine is one timestamped message of the activity log.
type ActivityLine struct {
	At       time.Time
	Severity Severity
	Message  string
}

// ActivityLog is the scrolling list of batch events under the dashboard
// header. It sticks to the newest line until the user scrolls away and
// resumes following on end or G.
type ActivityLog struct {
	theme    Theme
	width    int
	height   int
	lines    []ActivityLine
	viewport viewport.Model

	// autoScroll is true while the view follows the newest line.
	autoScroll bool
	now        func() time.Time
}

// NewActivityLog returns an empty log that follows new lines.
func NewActivityLog(theme Theme) ActivityLog {
	return ActivityLog{
		theme:      theme,
		viewport:   viewport.New(0, 0),
		autoScroll: true,
		now:        time.Now,
	}
}

// SetDimensions sizes the log box; the first row holds the header.
func (a *ActivityLog) SetDimensions(width, height int) {
	a.width, a.height = width, height
	a.viewport.Width = width
	a.viewport.Height = max(height-1, 0)
	a.sync()
}

// Len returns the number of retained lines.
func (a ActivityLog) Len() int {
	return len(a.lines)
}

// Append adds a line stamped with the current time.
func (a *ActivityLog) Append(sev Severity, message string) {
	a.lines = append(a.lines, ActivityLine{At: a.now(), Severity: sev, Message: message})
	if over := len(a.lines) - MaxActivityLines; over > 0 {
		a.lines = append(a.lines[:0:0], a.lines[over:]...)
	}
	a.sync()
}

// sync pushes the rendered lines into the viewport.
func (a *ActivityLog) sync() {
	var sb strings.Builder
	for i, l := range a.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(a.render(l))
	}
	a.viewport.SetContent(sb.String())
	if a.autoScroll {
		a.viewport.GotoBottom()
	}
}

func (a ActivityLog) render(l ActivityLine) string {
	style := lipgloss.NewStyle()
	switch l.Severity {
	case SeverityOK:
		style = a.theme.Success
	case SeverityWarn:
		style = a.theme.Warning
	case SeverityError:
		style = a.theme.Error
	}
	return a.theme.Timestamp.Render(l.At.Format("15:04:05")) + " " +
		style.Render(severityMarks[l.Severity]+" "+l.Message)
}

// Update handles scrolling keys and ignores everything else.
func (a ActivityLog) Update(msg tea.Msg) (ActivityLog, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	switch key.String() {
	case "up", "k":
		a.viewport.ScrollUp(1)
	case "pgup":
		a.viewport.PageUp()
	case "down", "j":
		a.viewport.ScrollDown(1)
	case "pgdown":
		a.viewport.PageDown()
	case "end", "G":
		a.viewport.GotoBottom()
	default:
		return a, nil
	}
	a.autoScroll = a.viewport.AtBottom()
	return a, nil
}

// View renders the log box, or nothing before the first SetDimensions.
func (a ActivityLog) View() string {
	if a.width <= 0 || a.height <= 0 {
		return ""
	}
	body := a.theme.Muted.Render("No events yet")
	if len(a.lines) > 0 {
		body = a.viewport.View()
	}
	return a.theme.LogContainer.Width(a.width).Render(a.theme.LogHeader.Render("Events") + "\n" + body)
}
