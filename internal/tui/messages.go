package tui

import (
	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/provider"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/scan"
)

// FileProgressMsg carries one pipeline phase event for a file in flight.
type FileProgressMsg struct {
	Event pipeline.ProgressEvent
}

// FileDoneMsg reports that a batch file finished. Event.Message holds the
// file's scan.Status; Current and Total count files.
type FileDoneMsg struct {
	Event pipeline.ProgressEvent
}

// RateLimitMsg carries a rate-limit state change of a backend.
type RateLimitMsg struct {
	State provider.LimitState
}

// BatchDoneMsg is the last message of a dashboard run. The dashboard quits
// when it receives it.
type BatchDoneMsg struct {
	Result *scan.BatchResult
	Err    error
}
