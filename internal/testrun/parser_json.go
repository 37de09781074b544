package testrun

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/jsonutil"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/textutil"
)

// jestReport is the shape of jest's --json and vitest's --reporter=json
// output.
type jestReport struct {
	NumTotalTests   *int `json:"numTotalTests"`
	NumPassedTests  int  `json:"numPassedTests"`
	NumFailedTests  int  `json:"numFailedTests"`
	NumPendingTests int  `json:"numPendingTests"`
	NumTodoTests    int  `json:"numTodoTests"`
	TestResults     []struct {
		Name             string `json:"name"`
		Status           string `json:"status"`
		Message          string `json:"message"`
		AssertionResults []struct {
			FullName        string   `json:"fullName"`
			Title           string   `json:"title"`
			Status          string   `json:"status"`
			FailureMessages []string `json:"failureMessages"`
		} `json:"assertionResults"`
	} `json:"testResults"`
}

// mochaReport is the shape of mocha's --reporter json output.
type mochaReport struct {
	Stats *struct {
		Tests    int `json:"tests"`
		Passes   int `json:"passes"`
		Failures int `json:"failures"`
		Pending  int `json:"pending"`
	} `json:"stats"`
	Failures []struct {
		FullTitle string `json:"fullTitle"`
		Err       struct {
			Message  string          `json:"message"`
			Stack    string          `json:"stack"`
			Expected json.RawMessage `json:"expected"`
			Actual   json.RawMessage `json:"actual"`
		} `json:"err"`
	} `json:"failures"`
}

// parseJSONReport reads a JSON reporter's result when the configured runner
// command asks for one. It reports false when the output carries no
// recognizable report, so the text parsers run instead.
func parseJSONReport(output string) (parseResult, bool) {
	// Brace matching is quadratic on code frames full of unclosed braces,
	// so only outputs naming a report key are searched.
	if strings.Contains(output, `"numTotalTests"`) {
		if r, ok := jsonutil.First(output, func(r *jestReport) bool { return r.NumTotalTests != nil }); ok {
			return fromJestReport(r), true
		}
	}
	if strings.Contains(output, `"stats"`) {
		if r, ok := jsonutil.First(output, func(r *mochaReport) bool { return r.Stats != nil }); ok {
			return fromMochaReport(r), true
		}
	}
	return parseResult{}, false
}

func fromJestReport(r *jestReport) parseResult {
	res := parseResult{summary: &summary{
		passed:   r.NumPassedTests,
		failed:   r.NumFailedTests,
		skipped:  r.NumPendingTests + r.NumTodoTests,
		total:    *r.NumTotalTests,
		hasTotal: true,
	}}
	for _, suite := range r.TestResults {
		failedAssertions := 0
		for _, a := range suite.AssertionResults {
			if a.Status != "failed" {
				continue
			}
			failedAssertions++
			name := a.FullName
			if name == "" {
				name = a.Title
			}
			res.failures = append(res.failures, reduceBlock(name, messageLines(a.FailureMessages...)))
		}
		// A suite that failed without failed assertions did not load, e.g.
		// a syntax error or a missing module.
		if suite.Status == "failed" && failedAssertions == 0 && strings.TrimSpace(suite.Message) != "" {
			res.failures = append(res.failures, reduceBlock(filepath.Base(suite.Name), messageLines(suite.Message)))
		}
	}
	return res
}

func fromMochaReport(r *mochaReport) parseResult {
	res := parseResult{summary: &summary{
		passed:   r.Stats.Passes,
		failed:   r.Stats.Failures,
		skipped:  r.Stats.Pending,
		total:    r.Stats.Tests,
		hasTotal: true,
	}}
	for _, f := range r.Failures {
		body := f.Err.Stack
		if !strings.Contains(body, f.Err.Message) {
			body = f.Err.Message + "\n" + body
		}
		tf := reduceBlock(f.FullTitle, messageLines(body))
		if v := rawText(f.Err.Expected); v != "" {
			tf.Expected = v
		}
		if v := rawText(f.Err.Actual); v != "" {
			tf.Actual = v
		}
		res.failures = append(res.failures, tf)
	}
	return res
}

func messageLines(msgs ...string) []string {
	return strings.Split(textutil.StripDecorations(strings.Join(msgs, "\n")), "\n")
}

// rawText renders a JSON value as the runner would print it: strings
// unquoted, everything else verbatim.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
