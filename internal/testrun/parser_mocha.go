package testrun

import (
	"regexp"
	"strings"
)

var (
	reMochaPassing = regexp.MustCompile(`^\s*(\d+)\s+passing\b`)
	reMochaFailing = regexp.MustCompile(`^\s*(\d+)\s+failing\b`)
	reMochaPending = regexp.MustCompile(`^\s*(\d+)\s+pending\b`)
	reMochaHeader  = regexp.MustCompile(`^\s*(\d+)\)\s+(.+?)\s*$`)
)

// maxTitleLines bounds how many continuation lines a mocha failure title may
// span (one per nested describe).
const maxTitleLines = 6

// parseMocha reads mocha's spec reporter output. Failure blocks are only
// read after the "N failing" line, because that reporter also prints
// "N) title" markers inline while tests run.
//
//	  1 passing (5ms)
//	  1 failing
//
//	  1) Calculator
//	       subtracts:
//	     AssertionError: expected 1 to equal 2
func parseMocha(lines []string) parseResult {
	var res parseResult

	failingAt := -1
	var s summary
	found := false
	for i, line := range lines {
		switch {
		case reMochaPassing.MatchString(line):
			s.passed = atoi(reMochaPassing.FindStringSubmatch(line)[1])
			found = true
		case reMochaFailing.MatchString(line):
			s.failed = atoi(reMochaFailing.FindStringSubmatch(line)[1])
			found = true
			failingAt = i
		case reMochaPending.MatchString(line):
			s.skipped = atoi(reMochaPending.FindStringSubmatch(line)[1])
			found = true
		}
	}
	if found {
		res.summary = &s
	}
	if failingAt < 0 {
		return res
	}

	rest := lines[failingAt+1:]
	for i := 0; i < len(rest); {
		m := reMochaHeader.FindStringSubmatch(rest[i])
		if m == nil {
			i++
			continue
		}

		title := []string{m[2]}
		i++
		for n := 0; !strings.HasSuffix(title[len(title)-1], ":") && n < maxTitleLines && i < len(rest); n++ {
			next := strings.TrimSpace(rest[i])
			if next == "" || reMochaHeader.MatchString(rest[i]) {
				break
			}
			title = append(title, next)
			i++
		}
		name := strings.TrimSuffix(strings.Join(title, " "), ":")

		var body []string
		for i < len(rest) && !reMochaHeader.MatchString(rest[i]) {
			body = append(body, rest[i])
			i++
		}
		res.failures = append(res.failures, reduceBlock(name, body))
	}

	return res
}
