package testrun

import (
	"regexp"
	"strings"
)

var (
	reGenericToken = regexp.MustCompile(`(?i)\b(?:error|assertion|failed|failure|exception|not ok)\b`)
	reGenericZero  = regexp.MustCompile(`(?i)\b0\s+(?:failed|failures|errors?)\b`)
)

// maxGenericFailures caps how many lines the generic scan reports.
const maxGenericFailures = 10

// parseGeneric is the fallback when no framework pattern matched. Each line
// carrying an error or assertion token becomes one failure.
func parseGeneric(lines []string) []TestFailure {
	var failures []TestFailure
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !reGenericToken.MatchString(trimmed) || reGenericZero.MatchString(trimmed) {
			continue
		}
		if reFrame.MatchString(line) {
			continue
		}
		failures = append(failures, TestFailure{
			TestName:     "unknown",
			ErrorMessage: trimmed,
			Line:         locLine(trimmed),
		})
		if len(failures) == maxGenericFailures {
			break
		}
	}
	return failures
}
