package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// SourceAnalyzer extracts imports from in-memory code. *analyzer.TreeSitter
// implements it.
type SourceAnalyzer interface {
	AnalyzeSource(ctx context.Context, path string, src []byte) (*analyzer.FileAnalysis, error)
}

// DefaultMockExempt lists the testing utilities that never need a mock.
var DefaultMockExempt = []string{
	"jest", "vitest", "mocha", "chai", "sinon", "supertest",
	"@jest/*", "@vitest/*", "@testing-library/*", "@types/*", "node:test",
}

// Input is the code to validate and its context.
type Input struct {
	// TestFile is where the code will be written. It selects the grammar
	// and anchors relative imports; the file need not exist yet.
	TestFile     string
	Code         string
	Dependencies []resolver.DependencyInfo
	Framework    testrun.Framework
}

// Validator runs the static checks. It holds only configuration and is safe
// for concurrent use.
type Validator struct {
	analyzer     SourceAnalyzer
	autoFix      bool
	importSuffix string
	mockExempt   []string
	logger       *log.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithAutoFix enables mechanical repair of fixable findings.
func WithAutoFix(enabled bool) Option {
	return func(v *Validator) { v.autoFix = enabled }
}

// WithImportSuffix requires relative imports to carry suffix (".js").
func WithImportSuffix(suffix string) Option {
	return func(v *Validator) { v.importSuffix = suffix }
}

// WithMockExempt replaces DefaultMockExempt. Entries are doublestar globs
// matched against package names.
func WithMockExempt(globs []string) Option {
	return func(v *Validator) { v.mockExempt = append([]string(nil), globs...) }
}

// WithAnalyzer replaces the tree-sitter analyzer used for import
// extraction.
func WithAnalyzer(a SourceAnalyzer) Option {
	return func(v *Validator) { v.analyzer = a }
}

// WithLogger sets the logger. A nil logger silences the validator.
func WithLogger(l *log.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New returns a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{mockExempt: DefaultMockExempt}
	for _, opt := range opts {
		opt(v)
	}
	if v.analyzer == nil {
		v.analyzer = analyzer.NewTreeSitter(analyzer.WithLogger(v.logger))
	}
	v.logger = logging.OrDiscard(v.logger)
	return v
}

// Validate checks in.Code and returns its report. The code is never
// executed. An error means the code could not be checked at all (an
// unsupported file type or a cancelled context), not that it has defects.
func (v *Validator) Validate(ctx context.Context, in Input) (*QualityReport, error) {
	if in.TestFile == "" {
		return nil, apperr.New(apperr.KindInvalidArgs, "quality.validate", "test file path is required")
	}
	src := []byte(in.Code)

	diags, err := analyzer.CheckSyntax(ctx, in.TestFile, src)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "quality.validate", err)
	}
	fa, err := v.analyzer.AnalyzeSource(ctx, in.TestFile, src)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "quality.validate", err)
	}

	report := &QualityReport{
		LintErrors:   []LintIssue{},
		ImportErrors: []ImportIssue{},
		MockIssues:   []MockIssue{},
		FixesApplied: []string{},
	}
	for _, d := range diags {
		report.LintErrors = append(report.LintErrors, LintIssue{
			Rule:     RuleSyntax,
			Severity: SeverityError,
			Line:     d.Line,
			Column:   d.Column,
			Message:  d.Message,
		})
	}
	report.LintErrors = append(report.LintErrors, checkRules(in.TestFile, in.Code)...)

	importIssues, suffixLint, suffixFixes := checkImports(in.TestFile, fa.Imports, v.importSuffix)
	report.ImportErrors = append(report.ImportErrors, importIssues...)
	report.LintErrors = append(report.LintErrors, suffixLint...)

	var missing []string
	fn := mockFunc(in.Framework)
	if fn != "" {
		var mockIssues []MockIssue
		mockIssues, missing = v.checkMocks(in.TestFile, in.Code, in.Dependencies)
		report.MockIssues = append(report.MockIssues, mockIssues...)
	}

	report.Score = score(report)

	if v.autoFix && report.Fixable() {
		fixed, applied := v.fix(in.Code, fn, missing, suffixFixes)
		if fixed != in.Code {
			report.FixedCode = fixed
			report.FixesApplied = append(report.FixesApplied, applied...)
		}
	}

	v.logger.Debug("validated test code",
		"file", in.TestFile,
		"score", report.Score,
		"valid", report.IsValid(),
		"lint", len(report.LintErrors),
		"imports", len(report.ImportErrors),
		"mocks", len(report.MockIssues),
		"fixes", len(report.FixesApplied),
	)
	return report, nil
}

// fix applies every mechanical repair and describes what it did.
func (v *Validator) fix(code, fn string, missing []string, suffixes []suffixFix) (string, []string) {
	var applied []string

	if out, n := stripConsole(code); n > 0 {
		code = out
		applied = append(applied, fmt.Sprintf("removed %s", plural(n, "console statement")))
	}
	if out, n := stripModifiers(code); n > 0 {
		code = out
		applied = append(applied, fmt.Sprintf("removed %s", plural(n, "focus/skip modifier")))
	}
	for _, s := range suffixes {
		out := appendSuffix(code, s.spec, v.importSuffix)
		if out != code {
			code = out
			applied = append(applied, fmt.Sprintf("added %s suffix to import %q", v.importSuffix, s.spec))
		}
	}
	if fn != "" && len(missing) > 0 {
		code = insertMocks(code, missing, fn)
		applied = append(applied, fmt.Sprintf("added mock registration for %s", strings.Join(quoteAll(missing), ", ")))
	}
	return code, applied
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
