package quality

import (
	"path/filepath"
	"regexp"
	"strings"
)

// rule is one line-oriented check. fixable reports whether the matched line
// can be repaired mechanically; a nil fixable means never.
type rule struct {
	name    string
	pattern *regexp.Regexp
	message string
	tsOnly  bool
	skip    func(line string) bool
	fixable func(line string) bool
}

var (
	reConsoleCall = regexp.MustCompile(`^\s*console\.\w+\s*\(`)
	reAwaited     = regexp.MustCompile(`\b(?:await|return)\s+expect\(`)
)

var rules = []rule{
	{
		name:    RuleNoExplicitAny,
		pattern: regexp.MustCompile(`(?::\s*any\b|<any>|\bas\s+any\b)`),
		message: "explicit any disables type checking",
		tsOnly:  true,
	},
	{
		name:    RuleNoConsole,
		pattern: regexp.MustCompile(`\bconsole\.(?:log|debug|info|warn|error|trace|dir)\s*\(`),
		message: "debug output left in test",
		fixable: isConsoleStatement,
	},
	{
		name:    RuleNoFocusedTests,
		pattern: reFocused,
		message: "focused test disables the rest of the suite",
		fixable: func(string) bool { return true },
	},
	{
		name:    RuleNoSkippedTests,
		pattern: reSkipped,
		message: "skipped test never runs",
		fixable: func(string) bool { return true },
	},
	{
		name:    RuleAwaitAsyncExpect,
		pattern: regexp.MustCompile(`\bexpect\(.*\)\s*\.(?:resolves|rejects)\b`),
		message: "async assertion is not awaited",
		skip:    reAwaited.MatchString,
	},
}

// checkRules runs every rule over code.
func checkRules(testFile, code string) []LintIssue {
	ts := isTypeScript(testFile)

	var issues []LintIssue
	for i, line := range strings.Split(code, "\n") {
		if isCommentLine(line) {
			continue
		}
		for _, r := range rules {
			if r.tsOnly && !ts {
				continue
			}
			loc := r.pattern.FindStringIndex(line)
			if loc == nil {
				continue
			}
			if r.skip != nil && r.skip(line) {
				continue
			}
			issues = append(issues, LintIssue{
				Rule:     r.name,
				Severity: SeverityWarning,
				Line:     i + 1,
				Column:   loc[0],
				Message:  r.message,
				Fixable:  r.fixable != nil && r.fixable(line),
			})
		}
	}
	return issues
}

// isConsoleStatement reports whether line holds a console call and nothing
// else: the call's closing parenthesis may only be followed by a semicolon.
// Quotes and template literals are skipped when matching parentheses.
func isConsoleStatement(line string) bool {
	loc := reConsoleCall.FindStringIndex(line)
	if loc == nil {
		return false
	}
	depth := 1
	var quote byte
	for i := loc[1]; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				rest := strings.TrimSpace(line[i+1:])
				return rest == "" || rest == ";"
			}
		}
	}
	return false
}

func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") || strings.HasPrefix(t, "*")
}

func isTypeScript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}
