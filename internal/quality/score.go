package quality

// Score penalties.
const (
	penaltySyntax    = 15
	penaltyWarning   = 3
	penaltyImport    = 10
	penaltyMissing   = 8
	penaltyOtherMock = 3
	maxScore         = 100
)

// score computes the report's score from its issue lists, clamped to
// [0, 100].
func score(r *QualityReport) int {
	s := maxScore
	s -= penaltySyntax * r.SyntaxErrorCount()
	s -= penaltyWarning * r.WarningCount()
	s -= penaltyImport * len(r.ImportErrors)
	missing := r.MissingMockCount()
	s -= penaltyMissing * missing
	s -= penaltyOtherMock * (len(r.MockIssues) - missing)

	if s < 0 {
		return 0
	}
	if s > maxScore {
		return maxScore
	}
	return s
}
