package testrun

import "regexp"

var (
	reVitestSummary = regexp.MustCompile(`^\s*Tests\s+(\d.*)$`)
	reVitestCount   = regexp.MustCompile(`(\d+)\s+(failed|passed|skipped|todo)\b`)
	reVitestTotal   = regexp.MustCompile(`\((\d+)\)`)
	reVitestHeader  = regexp.MustCompile(`^\s*FAIL\s+\S+\s+>\s+(.+?)\s*$`)
	reVitestStop    = regexp.MustCompile(`^\s*(?:⎯|Test Files\s|Tests\s+\d|Start at\s|Duration\s)`)
)

// parseVitest reads vitest's verbose reporter output.
//
//	 FAIL  src/add.test.ts > add > adds numbers
//	AssertionError: expected 4 to be 3 // Object.is equality
//	 ❯ src/add.test.ts:5:23
//	      Tests  1 failed | 2 passed (3)
func parseVitest(lines []string) parseResult {
	var res parseResult

	for _, line := range lines {
		m := reVitestSummary.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		s := &summary{}
		for _, c := range reVitestCount.FindAllStringSubmatch(m[1], -1) {
			n := atoi(c[1])
			switch c[2] {
			case "passed":
				s.passed = n
			case "failed":
				s.failed = n
			case "skipped", "todo":
				s.skipped += n
			}
		}
		if t := reVitestTotal.FindStringSubmatch(m[1]); t != nil {
			s.total = atoi(t[1])
			s.hasTotal = true
		}
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
		if m := reVitestHeader.FindStringSubmatch(line); m != nil {
			flush()
			inBlk, name = true, m[1]
			continue
		}
		if !inBlk {
			continue
		}
		if reVitestStop.MatchString(line) {
			flush()
			continue
		}
		body = append(body, line)
	}
	flush()

	return res
}
