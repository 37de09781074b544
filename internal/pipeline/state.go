package pipeline

import (
	"time"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// Phase is one state of the per-file state machine.
type Phase string

const (
	PhaseAnalyzing  Phase = "analyzing"
	PhaseGenerating Phase = "generating"
	PhaseValidating Phase = "validating"
	PhaseRunning    Phase = "running"
	PhaseFixing     Phase = "fixing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// PhaseRecord captures one executed phase.
type PhaseRecord struct {
	Phase     Phase         `json:"phase"`
	Next      Phase         `json:"next"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// PipelineError is a failure recorded during a run. Recoverable errors are
// kept and the run carries on; a non-recoverable one ends it.
type PipelineError struct {
	// Agent names the collaborator that failed: "analyzer", "resolver",
	// "generator", "validator" or "runner".
	Agent       string    `json:"agent"`
	Phase       Phase     `json:"phase"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

// PipelineState is the state threaded through one file's phases. It
// belongs to a single Orchestrator.Run call.
type PipelineState struct {
	RunID        string                    `json:"run_id"`
	SourcePath   string                    `json:"source_path"`
	TestPath     string                    `json:"test_path"`
	Framework    testrun.Framework         `json:"framework"`
	Phase        Phase                     `json:"phase"`
	SourceCode   string                    `json:"-"`
	Imports      []analyzer.ImportInfo     `json:"imports"`
	Exports      []string                  `json:"exports"`
	Dependencies []resolver.DependencyInfo `json:"dependencies"`
	Mocks        []string                  `json:"mocks,omitempty"`
	TestCode     string                    `json:"-"`
	Validation   *quality.QualityReport    `json:"validation,omitempty"`
	TestRun      *testrun.TestRunOutput    `json:"test_run,omitempty"`
	FixAttempts  int                       `json:"fix_attempts"`
	History      FixHistory                `json:"history"`
	Errors       []PipelineError           `json:"errors"`
	Phases       []PhaseRecord             `json:"phases"`

	analysis *analyzer.FileAnalysis
}

func (s *PipelineState) addError(agent string, phase Phase, err error) {
	s.Errors = append(s.Errors, PipelineError{
		Agent:       agent,
		Phase:       phase,
		Message:     err.Error(),
		Recoverable: apperr.Recoverable(err),
		Timestamp:   time.Now(),
	})
}

// ProgressEvent reports a phase transition.
type ProgressEvent struct {
	Phase   Phase  `json:"phase"`
	File    string `json:"file"`
	Message string `json:"message"`
	// Current and Total count fix attempts while healing, and files in a
	// batch. Zero when not applicable.
	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`
}

// ProgressFunc receives progress events. It runs on the pipeline's
// goroutine and must not block.
type ProgressFunc func(ProgressEvent)

// FileResult is the outcome of one Orchestrator run.
type FileResult struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	SourcePath string            `json:"source_path" yaml:"source_path"`
	TestPath   string            `json:"test_path,omitempty" yaml:"test_path,omitempty"`
	Success    bool              `json:"success" yaml:"success"`
	Code       apperr.ResultCode `json:"code" yaml:"code"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
	Score      int               `json:"score" yaml:"score"`
	Attempts   int               `json:"attempts" yaml:"attempts"`
	Written    bool              `json:"written" yaml:"written"`
	Duration   time.Duration     `json:"duration" yaml:"duration"`
	Metrics    Metrics           `json:"metrics" yaml:"metrics"`
	// State is the full run state, for callers that want the generated
	// code or the phase history.
	State *PipelineState `json:"-" yaml:"-"`
}
