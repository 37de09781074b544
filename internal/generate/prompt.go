package generate

import (
	"bytes"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

//go:embed generate.tmpl
var generateTemplate string

//go:embed fix.tmpl
var fixTemplate string

// maxSourceBytes caps source and test code embedded in a prompt.
const maxSourceBytes = 50 * 1024 // 50KB

// maxOutputLines caps the raw test output tail in a fix prompt.
const maxOutputLines = 60

var funcs = template.FuncMap{"join": strings.Join}

var (
	generateTmpl = template.Must(template.New("generate").Delims("[[", "]]").Funcs(funcs).Parse(generateTemplate))
	fixTmpl      = template.Must(template.New("fix").Delims("[[", "]]").Funcs(funcs).Parse(fixTemplate))
)

// localDep is a local dependency as the prompt shows it.
type localDep struct {
	Module  string
	Exports []string
}

// promptData is shared by both templates.
type promptData struct {
	Framework    testrun.Framework
	Language     string
	Fence        string
	SourceName   string
	TestName     string
	SourceImport string
	SourceCode   string
	Functions    []analyzer.FunctionSignature
	Locals       []localDep
	Mocks        []string
	MockFunc     string
	APIHint      string
	ImportSuffix string

	// Fix prompts only.
	Code     string
	Failures []testrun.TestFailure
	Issues   []string
	Output   string
	History  []PriorAttempt
}

// BuildPrompt renders the generation prompt for req.
func BuildPrompt(req Request) (string, error) {
	data, err := baseData(req)
	if err != nil {
		return "", err
	}
	return render(generateTmpl, data)
}

// BuildFixPrompt renders the fix prompt for req. Raw test output is only
// included when no structured failure was parsed from it.
func BuildFixPrompt(req FixRequest) (string, error) {
	data, err := baseData(req.Request)
	if err != nil {
		return "", err
	}
	data.Code = clip(strings.TrimSpace(req.Code))
	if req.Run != nil {
		data.Failures = req.Run.Failures
		if len(req.Run.Failures) == 0 {
			data.Output = tail(req.Run.RawOutput, maxOutputLines)
		}
	}
	data.Issues = reportIssues(req.Report)
	data.History = req.History
	return render(fixTmpl, data)
}

func baseData(req Request) (*promptData, error) {
	if req.Analysis == nil {
		return nil, fmt.Errorf("generate: prompt: missing source analysis for %s", req.SourcePath)
	}

	fw := req.Framework
	if fw == "" {
		fw = testrun.FrameworkJest
	}
	data := &promptData{
		Framework:    fw,
		Language:     req.Analysis.Language,
		Fence:        fence(req.Analysis.Language),
		SourceName:   filepath.Base(req.SourcePath),
		TestName:     filepath.Base(req.TestPath),
		SourceImport: resolver.RelativeImport(req.TestPath, req.SourcePath, req.ImportSuffix),
		SourceCode:   clip(strings.TrimSpace(req.Analysis.SourceCode)),
		Functions:    req.Analysis.ExportedFunctions(),
		Mocks:        req.Mocks,
		MockFunc:     mockFunc(fw),
		APIHint:      apiHint(fw),
		ImportSuffix: req.ImportSuffix,
	}
	for _, d := range req.Dependencies {
		if d.IsExternal || d.Placeholder || d.Cyclic || d.TypeOnly {
			continue
		}
		data.Locals = append(data.Locals, localDep{
			Module:  resolver.RelativeImport(req.TestPath, d.Path, req.ImportSuffix),
			Exports: d.Exports,
		})
	}
	return data, nil
}

func render(tmpl *template.Template, data *promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("generate: executing %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// reportIssues flattens the blocking and fixable findings of a QA report
// into prompt lines.
func reportIssues(r *quality.QualityReport) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, l := range r.LintErrors {
		out = append(out, fmt.Sprintf("line %d: %s (%s)", l.Line, l.Message, l.Rule))
	}
	for _, i := range r.ImportErrors {
		out = append(out, fmt.Sprintf("line %d: %s", i.Line, i.Message))
	}
	for _, m := range r.MockIssues {
		out = append(out, m.Message)
	}
	return out
}

func mockFunc(fw testrun.Framework) string {
	switch fw {
	case testrun.FrameworkJest:
		return "jest"
	case testrun.FrameworkVitest:
		return "vi"
	default:
		return ""
	}
}

func apiHint(fw testrun.Framework) string {
	switch fw {
	case testrun.FrameworkVitest:
		return "import describe, it, expect and vi from 'vitest'"
	case testrun.FrameworkMocha:
		return "describe/it globals with chai's expect"
	default:
		return "describe, it, expect and jest globals"
	}
}

func fence(language string) string {
	switch language {
	case "typescript":
		return "ts"
	case "tsx":
		return "tsx"
	default:
		return "js"
	}
}

func clip(s string) string {
	if len(s) <= maxSourceBytes {
		return s
	}
	return s[:maxSourceBytes] + "\n// ... [truncated at 50KB] ..."
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
