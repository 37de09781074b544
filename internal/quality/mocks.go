package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

var reMockCall = regexp.MustCompile("\\b(?:jest|vi)\\.(?:mock|doMock|unstable_mockModule)\\(\\s*['\"`]([^'\"`]+)['\"`]")

// mockFunc returns the registration object for fw, or "" when the framework
// has no module-mock convention.
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

// registrations extracts the mocked module paths from code in order.
func registrations(code string) []string {
	var mods []string
	for _, m := range reMockCall.FindAllStringSubmatch(code, -1) {
		mods = append(mods, m[1])
	}
	return mods
}

// mockTarget is a dependency that should have a registration.
type mockTarget struct {
	dep    resolver.DependencyInfo
	module string
}

// checkMocks compares the code's registrations with the dependencies that
// need one. It returns the issues and the module paths a fix would add.
func (v *Validator) checkMocks(testFile, code string, deps []resolver.DependencyInfo) ([]MockIssue, []string) {
	regs := registrations(code)
	matched := make([]bool, len(regs))

	var (
		issues  []MockIssue
		missing []string
		seen    = make(map[string]bool)
	)
	for _, t := range v.mockTargets(testFile, deps) {
		if seen[t.module] {
			continue
		}
		seen[t.module] = true

		found := false
		for i, reg := range regs {
			if v.registrationMatches(testFile, reg, t.dep) {
				matched[i] = true
				found = true
			}
		}
		if found {
			continue
		}
		issues = append(issues, MockIssue{
			Kind:    MockMissing,
			Module:  t.module,
			Message: fmt.Sprintf("dependency %q is not mocked", t.module),
			Fixable: true,
		})
		missing = append(missing, t.module)
	}

	for i, reg := range regs {
		if matched[i] || v.exempt(reg) {
			continue
		}
		// A registration for a dependency that needs no mock is fine.
		if v.matchesAny(testFile, reg, deps) {
			continue
		}
		issues = append(issues, MockIssue{
			Kind:    MockUnmatched,
			Module:  reg,
			Message: fmt.Sprintf("mock for %q matches no dependency of the source file", reg),
		})
	}
	return issues, missing
}

// RequiredMocks returns, sorted and deduplicated, the module paths a test
// file at testFile must register mocks for, as they would be written in
// the registration call. It is empty for frameworks without module mocks.
func (v *Validator) RequiredMocks(testFile string, deps []resolver.DependencyInfo, fw testrun.Framework) []string {
	if mockFunc(fw) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range v.mockTargets(testFile, deps) {
		if !seen[t.module] {
			seen[t.module] = true
			out = append(out, t.module)
		}
	}
	sort.Strings(out)
	return out
}

// mockTargets lists the dependencies that need a registration: external
// packages that are not exempt, and resolved local files exporting at least
// one function. Type-only imports never need one.
func (v *Validator) mockTargets(testFile string, deps []resolver.DependencyInfo) []mockTarget {
	var targets []mockTarget
	for _, d := range deps {
		if d.TypeOnly {
			continue
		}
		if d.IsExternal {
			if v.exempt(d.Path) {
				continue
			}
			targets = append(targets, mockTarget{dep: d, module: d.Path})
			continue
		}
		if d.Placeholder || d.Cyclic || len(d.FunctionSignatures) == 0 {
			continue
		}
		targets = append(targets, mockTarget{dep: d, module: v.localModule(testFile, d.Path)})
	}
	return targets
}

// localModule renders dep's path relative to the test file the way an
// import would, with the configured import suffix.
func (v *Validator) localModule(testFile, dep string) string {
	return resolver.RelativeImport(testFile, dep, v.importSuffix)
}

func (v *Validator) registrationMatches(testFile, reg string, dep resolver.DependencyInfo) bool {
	if dep.IsExternal {
		return reg == dep.Path || packageName(reg) == packageName(dep.Path)
	}
	if !strings.HasPrefix(reg, ".") && !strings.HasPrefix(reg, "/") {
		return false
	}
	resolved, ok := resolver.ResolveLocal(resolver.JoinImport(testFile, reg))
	return ok && resolved == dep.Path
}

func (v *Validator) matchesAny(testFile, reg string, deps []resolver.DependencyInfo) bool {
	for _, d := range deps {
		if v.registrationMatches(testFile, reg, d) {
			return true
		}
	}
	return false
}

// exempt reports whether a package is a testing utility that is never
// mocked. Subpath imports are matched by their package name.
func (v *Validator) exempt(module string) bool {
	if strings.HasPrefix(module, ".") || strings.HasPrefix(module, "/") {
		return false
	}
	name := packageName(module)
	for _, g := range v.mockExempt {
		if ok, _ := doublestar.Match(g, module); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

// packageName strips a subpath: "lodash/fp" -> "lodash",
// "@scope/pkg/sub" -> "@scope/pkg".
func packageName(module string) string {
	parts := strings.Split(module, "/")
	if strings.HasPrefix(module, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
