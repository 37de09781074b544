// Package quality statically checks generated test code before it runs.
//
// Validate runs four passes over the code: a tree-sitter syntax pass, rule
// checks, relative import resolution, and mock completeness against the
// source file's dependencies. Each finding lowers a 0-100 score. With
// auto-fix enabled the mechanical findings are repaired and the repaired
// code is returned next to the report; the report itself always describes
// the code as given.
package quality

import "encoding/json"

// Severity of a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names.
const (
	RuleSyntax           = "syntax"
	RuleNoExplicitAny    = "no-explicit-any"
	RuleNoConsole        = "no-console"
	RuleNoFocusedTests   = "no-focused-tests"
	RuleNoSkippedTests   = "no-skipped-tests"
	RuleAwaitAsyncExpect = "await-async-expect"
	RuleImportSuffix     = "import-suffix"
)

// LintIssue is one syntax or rule finding. Syntax findings have
// SeverityError; rule findings have SeverityWarning.
type LintIssue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
	Fixable  bool     `json:"fixable"`
}

// ImportIssue is a relative import that does not resolve to a file.
type ImportIssue struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// MockIssueKind classifies a MockIssue.
type MockIssueKind string

const (
	// MockMissing: a dependency that should be mocked has no registration.
	MockMissing MockIssueKind = "missing"
	// MockUnmatched: a registration matches no dependency of the source file.
	MockUnmatched MockIssueKind = "unmatched"
)

// MockIssue is one mock-completeness finding.
type MockIssue struct {
	Kind MockIssueKind `json:"kind"`
	// Module is the dependency's module path as it would appear in a mock
	// registration, relative to the test file for local files.
	Module  string `json:"module"`
	Message string `json:"message"`
	Fixable bool   `json:"fixable"`
}

// QualityReport is the outcome of Validate.
type QualityReport struct {
	Score        int           `json:"score"`
	LintErrors   []LintIssue   `json:"lintErrors"`
	ImportErrors []ImportIssue `json:"importErrors"`
	MockIssues   []MockIssue   `json:"mockIssues"`
	// FixedCode is set only when auto-fix changed the code.
	FixedCode    string   `json:"fixedCode,omitempty"`
	FixesApplied []string `json:"fixesApplied"`
}

// IsValid reports whether the code has no syntax errors, no unresolved
// imports and no missing mocks. Warnings and unmatched mocks do not count.
func (r QualityReport) IsValid() bool {
	return r.SyntaxErrorCount() == 0 && len(r.ImportErrors) == 0 && r.MissingMockCount() == 0
}

// SyntaxErrorCount returns the number of syntax findings.
func (r QualityReport) SyntaxErrorCount() int {
	n := 0
	for _, l := range r.LintErrors {
		if l.Severity == SeverityError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of rule findings.
func (r QualityReport) WarningCount() int {
	return len(r.LintErrors) - r.SyntaxErrorCount()
}

// MissingMockCount returns the number of MockMissing findings.
func (r QualityReport) MissingMockCount() int {
	n := 0
	for _, m := range r.MockIssues {
		if m.Kind == MockMissing {
			n++
		}
	}
	return n
}

// Fixable reports whether auto-fix could change anything.
func (r QualityReport) Fixable() bool {
	for _, l := range r.LintErrors {
		if l.Fixable {
			return true
		}
	}
	for _, m := range r.MockIssues {
		if m.Fixable {
			return true
		}
	}
	return false
}

// MarshalJSON includes the derived isValid field.
func (r QualityReport) MarshalJSON() ([]byte, error) {
	type plain QualityReport
	return json.Marshal(struct {
		plain
		IsValid bool `json:"isValid"`
	}{plain(r), r.IsValid()})
}
