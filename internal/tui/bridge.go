package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/provider"
)

// Sender delivers messages into a running program. *tea.Program satisfies
// it; Send is safe to call from any goroutine.
type Sender interface {
	Send(msg tea.Msg)
}

// The helpers below turn backend callbacks into dashboard messages. Each
// returned function only calls Send, so it never blocks the pipeline for
// longer than the program's message queue does.

// ProgressFunc forwards per-phase pipeline events as FileProgressMsg.
func ProgressFunc(s Sender) pipeline.ProgressFunc {
	return func(ev pipeline.ProgressEvent) {
		s.Send(FileProgressMsg{Event: ev})
	}
}

// BatchProgressFunc forwards per-file batch events as FileDoneMsg.
func BatchProgressFunc(s Sender) pipeline.ProgressFunc {
	return func(ev pipeline.ProgressEvent) {
		s.Send(FileDoneMsg{Event: ev})
	}
}

// LimitFunc forwards rate-limit state changes as RateLimitMsg. It is meant
// for provider.RateLimitCoordinator.SetUpdateCallback.
func LimitFunc(s Sender) func(provider.LimitState) {
	return func(st provider.LimitState) {
		s.Send(RateLimitMsg{State: st})
	}
}
