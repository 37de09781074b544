package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/provider"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/scan"
)

// headerRows is the number of rows above the event log: title, progress
// bar, counters, rate-limit line and a blank separator.
const headerRows = 5

// DashboardConfig describes the batch a Dashboard shows.
type DashboardConfig struct {
	// Title is shown in the first row, e.g. the scanned directory.
	Title string
	// Root shortens file paths in the display.
	Root string
	// Total is the number of files in the batch.
	Total int
}

// Dashboard is the Bubble Tea model of a running batch: a progress bar,
// the files currently in the pipeline with their phase, a rate-limit
// banner and a scrolling event log.
//
// Dashboard follows Bubble Tea's Elm architecture: Update returns a new
// value and View is a pure function of the model state.
type Dashboard struct {
	cfg     DashboardConfig
	theme   Theme
	cancel  context.CancelFunc
	spinner spinner.Model
	bar     progress.Model
	log     ActivityLog

	width  int
	height int

	done      int
	succeeded int
	failed    int
	skipped   int
	inFlight  map[string]pipeline.Phase
	limit     *provider.LimitState

	cancelling bool
	finished   bool
	result     *scan.BatchResult
	err        error
}

// NewDashboard builds a Dashboard. cancel is called when the user presses
// ctrl+c, q or esc; it may be nil.
func NewDashboard(cfg DashboardConfig, cancel context.CancelFunc) Dashboard {
	if cancel == nil {
		cancel = func() {}
	}
	theme := DefaultTheme()
	return Dashboard{
		cfg:      cfg,
		theme:    theme,
		cancel:   cancel,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:      progress.New(progress.WithDefaultGradient()),
		log:      NewActivityLog(theme),
		inFlight: make(map[string]pipeline.Phase),
	}
}

// Init starts the spinner.
func (d Dashboard) Init() tea.Cmd {
	return d.spinner.Tick
}

// Update handles window, key and batch messages.
func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		d.bar.Width = max(msg.Width-4, 10)
		d.log.SetDimensions(msg.Width, max(msg.Height-headerRows-len(d.inFlight), 3))
		return d, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if d.cancelling || d.finished {
				return d, tea.Quit
			}
			d.cancelling = true
			d.cancel()
			d.log.Append(SeverityWarn, "cancelling: waiting for running files to stop (press again to quit)")
			return d, nil
		}
		var cmd tea.Cmd
		d.log, cmd = d.log.Update(msg)
		return d, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case FileProgressMsg:
		ev := msg.Event
		if ev.Phase == pipeline.PhaseComplete || ev.Phase == pipeline.PhaseError {
			delete(d.inFlight, ev.File)
		} else {
			d.inFlight[ev.File] = ev.Phase
		}
		line := fmt.Sprintf("%-10s %s  %s", ev.Phase, d.rel(ev.File), ev.Message)
		if ev.Total > 0 {
			line += fmt.Sprintf(" [%d/%d]", ev.Current, ev.Total)
		}
		d.log.Append(SeverityInfo, line)
		return d, nil

	case FileDoneMsg:
		ev := msg.Event
		delete(d.inFlight, ev.File)
		d.done = ev.Current
		var sev Severity
		switch scan.Status(ev.Message) {
		case scan.StatusSuccess:
			d.succeeded++
			sev = SeverityOK
		case scan.StatusFailed:
			d.failed++
			sev = SeverityError
		default:
			d.skipped++
			sev = SeverityWarn
		}
		d.log.Append(sev, fmt.Sprintf("%s %s [%d/%d]", ev.Message, d.rel(ev.File), ev.Current, ev.Total))
		return d, nil

	case RateLimitMsg:
		st := msg.State
		if st.IsLimited {
			d.limit = &st
			d.log.Append(SeverityWarn, fmt.Sprintf("rate limited by %s, waiting %s", st.Provider, st.RemainingWait().Round(time.Second)))
		} else {
			d.limit = nil
			d.log.Append(SeverityInfo, fmt.Sprintf("rate limit on %s cleared", st.Provider))
		}
		return d, nil

	case BatchDoneMsg:
		d.finished = true
		d.result = msg.Result
		d.err = msg.Err
		return d, tea.Quit
	}
	return d, nil
}

// View renders the dashboard.
func (d Dashboard) View() string {
	var sb strings.Builder

	title := d.cfg.Title
	if title == "" {
		title = "testsmith batch"
	}
	sb.WriteString(d.theme.Title.Render(title))
	sb.WriteString("  ")
	sb.WriteString(d.theme.Counter.Render(fmt.Sprintf("%d/%d", d.done, d.cfg.Total)))
	sb.WriteString("\n")

	sb.WriteString(d.bar.ViewAs(d.Percent()))
	sb.WriteString("\n")

	sb.WriteString(d.theme.Success.Render(fmt.Sprintf("%d succeeded", d.succeeded)))
	sb.WriteString(d.theme.Muted.Render(" · "))
	sb.WriteString(d.theme.Error.Render(fmt.Sprintf("%d failed", d.failed)))
	sb.WriteString(d.theme.Muted.Render(" · "))
	sb.WriteString(d.theme.Warning.Render(fmt.Sprintf("%d skipped", d.skipped)))
	if d.cancelling && !d.finished {
		sb.WriteString(d.theme.Warning.Render("  cancelling..."))
	}
	sb.WriteString("\n")

	if d.limit != nil {
		sb.WriteString(d.theme.Warning.Render(fmt.Sprintf("rate limited by %s, resuming in %s",
			d.limit.Provider, d.limit.RemainingWait().Round(time.Second))))
	}
	sb.WriteString("\n")

	files := make([]string, 0, len(d.inFlight))
	for f := range d.inFlight {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		fmt.Fprintf(&sb, "%s %-10s %s\n", d.spinner.View(), d.inFlight[f], d.rel(f))
	}

	sb.WriteString("\n")
	sb.WriteString(d.log.View())
	return sb.String()
}

// Percent returns the finished share of the batch in [0, 1].
func (d Dashboard) Percent() float64 {
	if d.cfg.Total <= 0 {
		return 0
	}
	return min(float64(d.done)/float64(d.cfg.Total), 1)
}

// Result returns what BatchDoneMsg delivered, or nil before it arrived.
func (d Dashboard) Result() (*scan.BatchResult, error) {
	return d.result, d.err
}

func (d Dashboard) rel(path string) string {
	if d.cfg.Root == "" {
		return path
	}
	if r, err := filepath.Rel(d.cfg.Root, path); err == nil {
		return r
	}
	return path
}

// BatchFunc runs a batch, reporting through s. It must return once ctx is
// cancelled.
type BatchFunc func(ctx context.Context, s Sender) (*scan.BatchResult, error)

// RunDashboard runs fn while showing a Dashboard in the alternate screen.
// The dashboard closes when fn returns; pressing ctrl+c cancels fn's
// context first. The returned values are fn's.
func RunDashboard(ctx context.Context, cfg DashboardConfig, fn BatchFunc, opts ...tea.ProgramOption) (*scan.BatchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewDashboard(cfg, cancel), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	done := make(chan BatchDoneMsg, 1)
	go func() {
		res, err := fn(ctx, p)
		msg := BatchDoneMsg{Result: res, Err: err}
		done <- msg
		p.Send(msg)
	}()

	_, runErr := p.Run()
	// A forced quit leaves fn running; cancel and wait for it.
	cancel()
	msg := <-done
	if runErr != nil {
		return msg.Result, fmt.Errorf("tui: %w", runErr)
	}
	return msg.Result, msg.Err
}
