package testrun

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/textutil"
)

// summary holds the counts read from a framework's summary line.
type summary struct {
	passed, failed, skipped, total int
	hasTotal                       bool
}

// parseResult is what a framework parser extracts from sanitized output.
// A nil summary means no summary pattern matched.
type parseResult struct {
	summary  *summary
	failures []TestFailure
}

// parseFunc parses the lines of one run's output. Implementations are pure.
type parseFunc func(lines []string) parseResult

// parsers is the framework dispatch table.
var parsers = map[Framework]parseFunc{
	FrameworkJest:   parseJest,
	FrameworkVitest: parseVitest,
	FrameworkMocha:  parseMocha,
}

// Parse converts raw runner output into a TestRunOutput. exitCode is the
// process exit status; a non-zero exit with no recognized failure yields one
// synthesized failure describing it. A JSON reporter result anywhere in the
// output takes precedence over the text reporters. Unknown frameworks go
// straight to the generic scan.
func Parse(fw Framework, output string, exitCode int) TestRunOutput {
	lines := strings.Split(textutil.StripDecorations(output), "\n")

	res, ok := parseJSONReport(output)
	if !ok {
		if p, found := parsers[fw]; found {
			res = p(lines)
		}
	}
	if res.summary == nil && len(res.failures) == 0 {
		res.failures = parseGeneric(lines)
	}

	out := TestRunOutput{
		Framework: fw,
		RawOutput: output,
		ExitCode:  exitCode,
		Failures:  res.failures,
	}
	if out.Failures == nil {
		out.Failures = []TestFailure{}
	}

	if s := res.summary; s != nil {
		reconcile(s)
		out.SummaryFound = true
		out.Passed, out.Failed, out.Skipped, out.TotalTests = s.passed, s.failed, s.skipped, s.total
	}

	if len(out.Failures) > 0 && out.Failed == 0 {
		out.Failed = len(out.Failures)
		out.TotalTests = out.Passed + out.Failed + out.Skipped
	}

	if exitCode != 0 && out.Failed == 0 {
		out.Failures = append(out.Failures, TestFailure{
			TestName:     "<process>",
			ErrorMessage: fmt.Sprintf("test process exited with code %d", exitCode),
		})
		out.Failed = len(out.Failures)
		out.TotalTests = out.Passed + out.Failed + out.Skipped
	}

	out.Success = exitCode == 0 && out.Failed == 0
	return out
}

// reconcile restores passed+failed+skipped == total. A total larger than the
// parts folds the remainder into skipped; a missing or short total is raised
// to the sum.
func reconcile(s *summary) {
	parts := s.passed + s.failed + s.skipped
	switch {
	case !s.hasTotal || s.total < parts:
		s.total = parts
	case s.total > parts:
		s.skipped += s.total - parts
	}
}

// ---------------------------------------------------------------------------
// Failure block reduction shared by the framework parsers
// ---------------------------------------------------------------------------

var (
	reErrorLine = regexp.MustCompile(`^\s*((?:[A-Z]\w*)?(?:Error|Exception)(?:\s*\[[^\]]*\])?:.*)$`)
	reExpected  = regexp.MustCompile(`^\s*Expected(?:\s+\w+)?:\s+(.+?)\s*$`)
	reActual    = regexp.MustCompile(`^\s*(?:Received|Actual)(?:\s+\w+)?:\s+(.+?)\s*$`)
	reChai      = regexp.MustCompile(`expected (.+?) to (?:be|equal|deeply equal|strictly equal|deep equal|eql|include|contain|have length(?: of)?) (.+?)\s*(?://.*)?$`)
	reFrame     = regexp.MustCompile(`^\s*(?:at\s+\S|❯\s+\S)`)
	reLoc       = regexp.MustCompile(`:(\d+):(\d+)\)?\s*$`)
	reCodeFrame = regexp.MustCompile(`^\s*>\s*(\d+)\s*\|`)

	// Mocha prints "+ expected - actual"; vitest prints "- Expected" then
	// "+ Received". The sign meaning is opposite between the two.
	reDiffPlusExpected  = regexp.MustCompile(`^\s*\+ expected - actual\s*$`)
	reDiffMinusExpected = regexp.MustCompile(`^\s*- Expected\s*$`)
	reDiffReceived      = regexp.MustCompile(`^\s*\+ Received\s*$`)
	reDiffMinus         = regexp.MustCompile(`^\s*-\s?(.*?)\s*$`)
	reDiffPlus          = regexp.MustCompile(`^\s*\+\s?(.*?)\s*$`)
)

type diffMode int

const (
	diffNone diffMode = iota
	diffPlusExpected
	diffMinusExpected
)

// reduceBlock turns one failure block into a TestFailure.
func reduceBlock(name string, body []string) TestFailure {
	f := TestFailure{TestName: strings.TrimSpace(name)}

	var (
		firstText string
		frames    []string
		frameLine int
		testLine  int
		codeLine  int
		mode      diffMode
		diffExp   string
		diffAct   string
	)

	for _, raw := range body {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if reFrame.MatchString(line) {
			if len(frames) < MaxStackFrames {
				frames = append(frames, trimmed)
			}
			if n := locLine(trimmed); n > 0 {
				if frameLine == 0 && !isLibraryFrame(trimmed) {
					frameLine = n
				}
				if testLine == 0 && (strings.Contains(trimmed, ".test.") || strings.Contains(trimmed, ".spec.")) {
					testLine = n
				}
			}
			continue
		}
		if m := reCodeFrame.FindStringSubmatch(line); m != nil {
			if codeLine == 0 {
				codeLine, _ = strconv.Atoi(m[1])
			}
			continue
		}

		switch {
		case reDiffPlusExpected.MatchString(line):
			mode = diffPlusExpected
			continue
		case reDiffMinusExpected.MatchString(line):
			mode = diffMinusExpected
			continue
		case mode == diffMinusExpected && reDiffReceived.MatchString(line):
			continue
		}
		if mode != diffNone {
			if m := reDiffMinus.FindStringSubmatch(line); m != nil {
				if mode == diffPlusExpected && diffAct == "" {
					diffAct = m[1]
				} else if mode == diffMinusExpected && diffExp == "" {
					diffExp = m[1]
				}
				continue
			}
			if m := reDiffPlus.FindStringSubmatch(line); m != nil {
				if mode == diffPlusExpected && diffExp == "" {
					diffExp = m[1]
				} else if mode == diffMinusExpected && diffAct == "" {
					diffAct = m[1]
				}
				continue
			}
		}

		if m := reExpected.FindStringSubmatch(line); m != nil {
			if f.Expected == "" {
				f.Expected = m[1]
			}
			continue
		}
		if m := reActual.FindStringSubmatch(line); m != nil {
			if f.Actual == "" {
				f.Actual = m[1]
			}
			continue
		}

		if m := reErrorLine.FindStringSubmatch(line); m != nil && f.ErrorMessage == "" {
			f.ErrorMessage = strings.TrimSpace(m[1])
			if c := reChai.FindStringSubmatch(f.ErrorMessage); c != nil {
				f.Actual, f.Expected = c[1], c[2]
			}
			continue
		}
		if firstText == "" {
			firstText = trimmed
		}
	}

	if f.ErrorMessage == "" {
		f.ErrorMessage = firstText
	}
	if f.ErrorMessage == "" {
		f.ErrorMessage = "test failed"
	}
	if f.Expected == "" {
		f.Expected = diffExp
	}
	if f.Actual == "" {
		f.Actual = diffAct
	}
	if len(frames) > 0 {
		f.StackTrace = strings.Join(frames, "\n")
	}

	switch {
	case codeLine > 0:
		f.Line = codeLine
	case testLine > 0:
		f.Line = testLine
	default:
		f.Line = frameLine
	}
	return f
}

// isLibraryFrame reports whether a stack frame points into installed
// packages or the Node runtime rather than project code.
func isLibraryFrame(frame string) bool {
	return strings.Contains(frame, "node_modules") || strings.Contains(frame, "node:internal")
}

func locLine(s string) int {
	m := reLoc.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// atoi parses a regexp-captured count. Captures are \d+ so errors cannot
// occur short of overflow.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
