// Package testrun executes generated test files with jest, vitest, or mocha
// and normalizes their output into one structured result.
//
// Each framework has its own pure parse function, selected from a table
// keyed by Framework. Output that no framework pattern recognizes goes
// through a generic error-token scan, so a failed run always carries at
// least one TestFailure.
package testrun

import (
	"fmt"
	"strings"
	"time"
)

// Framework identifies a JavaScript test runner.
type Framework string

const (
	FrameworkJest   Framework = "jest"
	FrameworkVitest Framework = "vitest"
	FrameworkMocha  Framework = "mocha"
)

// FrameworkAuto asks the caller to detect the framework from the project.
const FrameworkAuto = "auto"

// Frameworks lists every supported framework.
func Frameworks() []Framework {
	return []Framework{FrameworkJest, FrameworkVitest, FrameworkMocha}
}

// ParseFramework converts a configured name into a Framework.
func ParseFramework(name string) (Framework, error) {
	switch fw := Framework(strings.ToLower(strings.TrimSpace(name))); fw {
	case FrameworkJest, FrameworkVitest, FrameworkMocha:
		return fw, nil
	default:
		return "", fmt.Errorf("testrun: unknown framework %q (want jest, vitest or mocha)", name)
	}
}

// MaxStackFrames bounds TestFailure.StackTrace.
const MaxStackFrames = 5

// TestFailure is one failing test reduced to the fields a fix prompt needs.
type TestFailure struct {
	TestName     string `json:"testName"`
	ErrorMessage string `json:"errorMessage"`
	Expected     string `json:"expected,omitempty"`
	Actual       string `json:"actual,omitempty"`
	// StackTrace holds at most MaxStackFrames frames, newline separated.
	StackTrace string `json:"stackTrace,omitempty"`
	Line       int    `json:"line,omitempty"`
}

// TestRunOutput is the normalized result of one test run.
//
// When SummaryFound is true, Passed+Failed+Skipped == TotalTests. When no
// summary was found but failures were, Failed == len(Failures).
type TestRunOutput struct {
	Success      bool          `json:"success"`
	TotalTests   int           `json:"totalTests"`
	Passed       int           `json:"passed"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	Failures     []TestFailure `json:"failures"`
	Duration     time.Duration `json:"duration"`
	RawOutput    string        `json:"rawOutput"`
	ExitCode     int           `json:"exitCode"`
	TimedOut     bool          `json:"timedOut,omitempty"`
	SummaryFound bool          `json:"summaryFound"`
	Framework    Framework     `json:"framework"`
}

// FailureSummary renders the failures as a compact bullet list for prompts
// and terminal output.
func (o *TestRunOutput) FailureSummary() string {
	if o == nil || len(o.Failures) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, f := range o.Failures {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s", f.TestName, f.ErrorMessage)
		if f.Expected != "" || f.Actual != "" {
			fmt.Fprintf(&sb, " (expected %s, received %s)", f.Expected, f.Actual)
		}
		if f.Line > 0 {
			fmt.Fprintf(&sb, " [line %d]", f.Line)
		}
	}
	return sb.String()
}
