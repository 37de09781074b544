package quality_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// workspace writes source files into a temp dir and returns the dir.
func workspace(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("export const x = 1;\n"), 0o644))
	}
	return dir
}

func validate(t *testing.T, v *quality.Validator, in quality.Input) *quality.QualityReport {
	t.Helper()
	if in.Framework == "" {
		in.Framework = testrun.FrameworkJest
	}
	report, err := v.Validate(context.Background(), in)
	require.NoError(t, err)
	return report
}

const cleanTest = `import { add } from './add';

describe('add', () => {
  it('adds', () => {
    expect(add(1, 2)).toBe(3);
  });
});
`

func TestValidate_CleanCode(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	report := validate(t, quality.New(), quality.Input{
		TestFile: filepath.Join(dir, "add.test.ts"),
		Code:     cleanTest,
	})

	assert.True(t, report.IsValid())
	assert.Equal(t, 100, report.Score)
	assert.Empty(t, report.LintErrors)
	assert.Empty(t, report.ImportErrors)
	assert.Empty(t, report.MockIssues)
	assert.Empty(t, report.FixedCode)
}

// ---------------------------------------------------------------------------
// Mock completeness
// ---------------------------------------------------------------------------

const userTest = `import axios from 'axios';
import { fetchUser } from './user';

describe('fetchUser', () => {
  it('returns the user', async () => {
    await expect(fetchUser(1)).resolves.toBeDefined();
  });
});
`

func TestValidate_MissingExternalMockFixIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "user.ts")
	testFile := filepath.Join(dir, "user.test.ts")
	deps := []resolver.DependencyInfo{{Path: "axios", Specifier: "axios", IsExternal: true}}
	v := quality.New(quality.WithAutoFix(true))

	report := validate(t, v, quality.Input{TestFile: testFile, Code: userTest, Dependencies: deps})
	assert.False(t, report.IsValid())
	assert.Equal(t, 92, report.Score)
	require.Len(t, report.MockIssues, 1)
	assert.Equal(t, quality.MockMissing, report.MockIssues[0].Kind)
	assert.Equal(t, "axios", report.MockIssues[0].Module)

	require.NotEmpty(t, report.FixedCode)
	assert.Contains(t, report.FixedCode, "jest.mock('axios');")
	assert.Contains(t, report.FixedCode, "import { fetchUser } from './user';\n\njest.mock('axios');\n")
	assert.Equal(t, []string{`added mock registration for "axios"`}, report.FixesApplied)

	again := validate(t, v, quality.Input{TestFile: testFile, Code: report.FixedCode, Dependencies: deps})
	assert.True(t, again.IsValid())
	assert.Empty(t, again.MockIssues)
	assert.Empty(t, again.FixedCode)
}

func TestValidate_MissingLocalMock(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "user.ts", "lib/api.ts")
	testFile := filepath.Join(dir, "user.test.ts")
	deps := []resolver.DependencyInfo{{
		Path:               filepath.Join(dir, "lib", "api.ts"),
		Specifier:          "./lib/api",
		FunctionSignatures: []analyzer.FunctionSignature{{Name: "get", Exported: true}},
	}}
	v := quality.New(quality.WithAutoFix(true))

	report := validate(t, v, quality.Input{TestFile: testFile, Code: strings.Replace(userTest, "import axios from 'axios';\n", "", 1), Dependencies: deps})
	require.Len(t, report.MockIssues, 1)
	assert.Equal(t, "./lib/api", report.MockIssues[0].Module)
	assert.Contains(t, report.FixedCode, "jest.mock('./lib/api');")

	again := validate(t, v, quality.Input{TestFile: testFile, Code: report.FixedCode, Dependencies: deps})
	assert.Empty(t, again.MockIssues)
}

func TestValidate_VitestUsesViMock(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "user.ts")
	v := quality.New(quality.WithAutoFix(true))
	report := validate(t, v, quality.Input{
		TestFile:     filepath.Join(dir, "user.test.ts"),
		Code:         userTest,
		Dependencies: []resolver.DependencyInfo{{Path: "axios", IsExternal: true}},
		Framework:    testrun.FrameworkVitest,
	})
	assert.Contains(t, report.FixedCode, "vi.mock('axios');")
}

func TestValidate_DependenciesNeedingNoMock(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "user.ts")
	deps := []resolver.DependencyInfo{
		{Path: "@testing-library/react", IsExternal: true},
		{Path: "vitest", IsExternal: true},
		{Path: "zod", IsExternal: true, TypeOnly: true},
		{Path: filepath.Join(dir, "types.ts")},
		{Path: filepath.Join(dir, "gone.ts"), Placeholder: true},
		{Path: filepath.Join(dir, "loop.ts"), Cyclic: true},
	}
	report := validate(t, quality.New(), quality.Input{
		TestFile:     filepath.Join(dir, "user.test.ts"),
		Code:         strings.Replace(userTest, "import axios from 'axios';\n", "", 1),
		Dependencies: deps,
	})
	assert.Empty(t, report.MockIssues)
	assert.True(t, report.IsValid())
}

func TestValidate_UnmatchedMockIsFlaggedNotBlocking(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	code := strings.Replace(cleanTest, "import { add } from './add';\n", "import { add } from './add';\njest.mock('lodash');\n", 1)
	report := validate(t, quality.New(), quality.Input{TestFile: filepath.Join(dir, "add.test.ts"), Code: code})

	require.Len(t, report.MockIssues, 1)
	assert.Equal(t, quality.MockUnmatched, report.MockIssues[0].Kind)
	assert.Equal(t, "lodash", report.MockIssues[0].Module)
	assert.True(t, report.IsValid())
	assert.Equal(t, 97, report.Score)
}

func TestValidate_MochaSkipsMockChecks(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "user.ts")
	report := validate(t, quality.New(quality.WithAutoFix(true)), quality.Input{
		TestFile:     filepath.Join(dir, "user.test.ts"),
		Code:         userTest,
		Dependencies: []resolver.DependencyInfo{{Path: "axios", IsExternal: true}},
		Framework:    testrun.FrameworkMocha,
	})
	assert.Empty(t, report.MockIssues)
	assert.Empty(t, report.FixedCode)
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

const noisyTest = `import { add } from './add';

describe('add', () => {
  it.only('adds', () => {
    const data: any = { a: 1 };
    console.log(data);
    expect(add(1, 2)).toBe(3);
  });

  it.skip('rejects', async () => {
    expect(Promise.reject(new Error('x'))).rejects.toThrow();
    await expect(Promise.resolve(1)).resolves.toBe(1);
  });
});
`

func TestValidate_Rules(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	report := validate(t, quality.New(), quality.Input{TestFile: filepath.Join(dir, "add.test.ts"), Code: noisyTest})

	fixable := map[string]bool{}
	lines := map[string]int{}
	for _, l := range report.LintErrors {
		assert.Equal(t, quality.SeverityWarning, l.Severity)
		fixable[l.Rule] = l.Fixable
		lines[l.Rule] = l.Line
	}
	assert.Equal(t, map[string]bool{
		quality.RuleNoFocusedTests:   true,
		quality.RuleNoExplicitAny:    false,
		quality.RuleNoConsole:        true,
		quality.RuleNoSkippedTests:   true,
		quality.RuleAwaitAsyncExpect: false,
	}, fixable)
	assert.Equal(t, 4, lines[quality.RuleNoFocusedTests])
	assert.Equal(t, 11, lines[quality.RuleAwaitAsyncExpect])

	assert.Len(t, report.LintErrors, 5)
	assert.True(t, report.IsValid())
	assert.Equal(t, 85, report.Score)
	assert.Empty(t, report.FixedCode, "auto-fix is off")
}

func TestValidate_RulesAutoFix(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	testFile := filepath.Join(dir, "add.test.ts")
	v := quality.New(quality.WithAutoFix(true))
	report := validate(t, v, quality.Input{TestFile: testFile, Code: noisyTest})

	require.NotEmpty(t, report.FixedCode)
	assert.NotContains(t, report.FixedCode, "console.log")
	assert.NotContains(t, report.FixedCode, ".only(")
	assert.NotContains(t, report.FixedCode, ".skip(")
	assert.Contains(t, report.FixedCode, "it('adds'")
	assert.Equal(t, []string{"removed 1 console statement", "removed 2 focus/skip modifiers"}, report.FixesApplied)

	again := validate(t, v, quality.Input{TestFile: testFile, Code: report.FixedCode})
	rules := make([]string, 0, len(again.LintErrors))
	for _, l := range again.LintErrors {
		rules = append(rules, l.Rule)
	}
	assert.ElementsMatch(t, []string{quality.RuleNoExplicitAny, quality.RuleAwaitAsyncExpect}, rules)
}

func TestValidate_ConsoleSharingALineIsNotFixable(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	code := "import { add } from './add';\n\nit('adds', () => {\n  console.log('x'); expect(add(1, 2)).toBe(3);\n});\n"
	report := validate(t, quality.New(quality.WithAutoFix(true)), quality.Input{
		TestFile: filepath.Join(dir, "add.test.ts"),
		Code:     code,
	})

	require.Len(t, report.LintErrors, 1)
	assert.Equal(t, quality.RuleNoConsole, report.LintErrors[0].Rule)
	assert.False(t, report.LintErrors[0].Fixable, "removing the line would drop the assertion")
	assert.Empty(t, report.FixedCode)
	assert.Empty(t, report.FixesApplied)
}

func TestValidate_NoExplicitAnyOnlyForTypeScript(t *testing.T) {
	t.Parallel()

	dir := workspace(t)
	report := validate(t, quality.New(), quality.Input{
		TestFile: filepath.Join(dir, "a.test.js"),
		Code:     "// the type any is not a thing here\nconst label = 'as any';\n",
	})
	assert.Empty(t, report.LintErrors)
}

// ---------------------------------------------------------------------------
// Syntax and imports
// ---------------------------------------------------------------------------

func TestValidate_SyntaxErrors(t *testing.T) {
	t.Parallel()

	dir := workspace(t)
	report := validate(t, quality.New(), quality.Input{
		TestFile: filepath.Join(dir, "broken.test.ts"),
		Code:     "describe('x', () => {\n  it('y', () => {\n    expect(1).toBe(1);\n",
	})

	assert.False(t, report.IsValid())
	require.NotZero(t, report.SyntaxErrorCount())
	assert.Equal(t, quality.RuleSyntax, report.LintErrors[0].Rule)
	assert.LessOrEqual(t, report.Score, 85)
}

func TestValidate_UnresolvedImport(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	code := "import { add } from './add';\nimport { nope } from './missing';\n\ntest('x', () => expect(add(nope, 1)).toBe(2));\n"
	report := validate(t, quality.New(), quality.Input{TestFile: filepath.Join(dir, "add.test.ts"), Code: code})

	require.Len(t, report.ImportErrors, 1)
	assert.Equal(t, "./missing", report.ImportErrors[0].Path)
	assert.Equal(t, 2, report.ImportErrors[0].Line)
	assert.False(t, report.IsValid())
	assert.Equal(t, 90, report.Score)
}

func TestValidate_ImportSuffixFix(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	testFile := filepath.Join(dir, "add.test.ts")
	v := quality.New(quality.WithAutoFix(true), quality.WithImportSuffix(".js"))

	report := validate(t, v, quality.Input{TestFile: testFile, Code: cleanTest})
	require.Len(t, report.LintErrors, 1)
	assert.Equal(t, quality.RuleImportSuffix, report.LintErrors[0].Rule)
	assert.True(t, report.LintErrors[0].Fixable)
	assert.True(t, report.IsValid())
	assert.Contains(t, report.FixedCode, "from './add.js'")

	again := validate(t, v, quality.Input{TestFile: testFile, Code: report.FixedCode})
	assert.Empty(t, again.LintErrors)
	assert.Empty(t, again.ImportErrors)
}

func TestValidate_ImportSuffixFixWithoutSpace(t *testing.T) {
	t.Parallel()

	dir := workspace(t, "add.ts")
	testFile := filepath.Join(dir, "add.test.ts")
	v := quality.New(quality.WithAutoFix(true), quality.WithImportSuffix(".js"))
	code := strings.Replace(cleanTest, "from './add'", `from"./add"`, 1)

	report := validate(t, v, quality.Input{TestFile: testFile, Code: code})
	require.Len(t, report.LintErrors, 1)
	assert.True(t, report.LintErrors[0].Fixable)
	assert.Contains(t, report.FixedCode, `from"./add.js"`)
	assert.Equal(t, []string{`added .js suffix to import "./add"`}, report.FixesApplied)
}

func TestValidate_ScoreClampedAtZero(t *testing.T) {
	t.Parallel()

	dir := workspace(t)
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("import { x" + string(rune('a'+i)) + " } from './missing" + string(rune('a'+i)) + "';\n")
	}
	report := validate(t, quality.New(), quality.Input{TestFile: filepath.Join(dir, "m.test.ts"), Code: sb.String()})

	assert.Len(t, report.ImportErrors, 12)
	assert.Equal(t, 0, report.Score)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	_, err := quality.New().Validate(context.Background(), quality.Input{Code: "x"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgs, apperr.KindOf(err))

	_, err = quality.New().Validate(context.Background(), quality.Input{TestFile: "a.test.py", Code: "x"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgs, apperr.KindOf(err))
}

func TestQualityReport_MarshalJSONIncludesIsValid(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(quality.QualityReport{Score: 100})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["isValid"])
	assert.EqualValues(t, 100, decoded["score"])

	data, err = json.Marshal(quality.QualityReport{ImportErrors: []quality.ImportIssue{{Path: "./x"}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isValid":false`)
}

func TestRequiredMocks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testFile := filepath.Join(dir, "user.test.ts")
	deps := []resolver.DependencyInfo{
		{Path: "axios", IsExternal: true},
		{Path: "axios", IsExternal: true},
		{Path: "@testing-library/react", IsExternal: true},
		{Path: "zod", IsExternal: true, TypeOnly: true},
		{Path: filepath.Join(dir, "lib", "api.ts"), FunctionSignatures: []analyzer.FunctionSignature{{Name: "get"}}},
		{Path: filepath.Join(dir, "loop.ts"), Cyclic: true},
	}

	v := quality.New(quality.WithImportSuffix(".js"))
	assert.Equal(t, []string{"./lib/api.js", "axios"}, v.RequiredMocks(testFile, deps, testrun.FrameworkJest))
	assert.Empty(t, v.RequiredMocks(testFile, deps, testrun.FrameworkMocha))
}
