package testrun

import (
	"regexp"
	"strings"
)

var (
	reJestSummary = regexp.MustCompile(`^\s*Tests:\s+(.+)$`)
	reJestCount   = regexp.MustCompile(`(\d+)\s+(failed|skipped|todo|passed|total)\b`)
	reJestHeader  = regexp.MustCompile(`^\s*●\s+(.+?)\s*$`)
	reJestStop    = regexp.MustCompile(`^\s*(?:(?:PASS|FAIL)\s+\S|Test Suites:|Tests:|Snapshots:|Time:|Ran all test suites)`)
)

// parseJest reads jest's default reporter output.
//
//	  ● Calculator › adds
//
//	    expect(received).toBe(expected) // Object.is equality
//	    Expected: 3
//	    Received: 4
//	    ...
//	Tests:       1 failed, 2 passed, 3 total
func parseJest(lines []string) parseResult {
	var res parseResult

	for _, line := range lines {
		m := reJestSummary.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		s := &summary{}
		for _, c := range reJestCount.FindAllStringSubmatch(m[1], -1) {
			n := atoi(c[1])
			switch c[2] {
			case "passed":
				s.passed = n
			case "failed":
				s.failed = n
			case "skipped", "todo":
				s.skipped += n
			case "total":
				s.total = n
				s.hasTotal = true
			}
		}
		// A watch-mode rerun prints several summaries; the last one wins.
		res.summary = s
	}

	var (
		name  string
		body  []string
		inBlk bool
	)
	flush := func() {
		if inBlk {
			res.failures = append(res.failures, reduceBlock(name, body))
		}
		inBlk, name, body = false, "", nil
	}
	for _, line := range lines {
		if m := reJestHeader.FindStringSubmatch(line); m != nil {
			flush()
			if strings.EqualFold(m[1], "Console") {
				continue
			}
			inBlk, name = true, m[1]
			continue
		}
		if !inBlk {
			continue
		}
		if reJestStop.MatchString(line) {
			flush()
			continue
		}
		body = append(body, line)
	}
	flush()

	return res
}
