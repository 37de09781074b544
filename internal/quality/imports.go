package quality

import (
	"fmt"
	"path/filepath"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
)

// suffixFix is a relative import that resolves but lacks the required
// module suffix.
type suffixFix struct {
	spec string
	line int
}

// checkImports resolves every relative import of the test file. Unresolved
// imports become ImportIssues. When importSuffix is set, extensionless
// imports that resolve to a sibling file become fixable lint warnings.
func checkImports(testFile string, imports []analyzer.ImportInfo, importSuffix string) ([]ImportIssue, []LintIssue, []suffixFix) {
	var (
		issues []ImportIssue
		lint   []LintIssue
		fixes  []suffixFix
		seen   = make(map[string]bool)
	)
	for _, imp := range imports {
		if imp.IsExternal() || seen[imp.Path] {
			continue
		}
		seen[imp.Path] = true

		base := resolver.JoinImport(testFile, imp.Path)
		resolved, ok := resolver.ResolveLocal(base)
		if !ok {
			issues = append(issues, ImportIssue{
				Path:    imp.Path,
				Line:    imp.Line,
				Message: fmt.Sprintf("cannot resolve %q from %s", imp.Path, filepath.Base(testFile)),
			})
			continue
		}

		if importSuffix == "" || filepath.Ext(imp.Path) != "" {
			continue
		}
		// Only a file sitting at base+ext can take a suffix; a directory
		// index import would need a path rewrite.
		if filepath.Dir(resolved) != filepath.Dir(absOrClean(base)) {
			continue
		}
		lint = append(lint, LintIssue{
			Rule:     RuleImportSuffix,
			Severity: SeverityWarning,
			Line:     imp.Line,
			Message:  fmt.Sprintf("import %q is missing the %s suffix", imp.Path, importSuffix),
			Fixable:  true,
		})
		fixes = append(fixes, suffixFix{spec: imp.Path, line: imp.Line})
	}
	return issues, lint, fixes
}

func absOrClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
