package e2e_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject is an isolated project directory with a testsmith binary and
// mock claude and npx executables on PATH.
type testProject struct {
	Dir        string
	BinaryPath string
	t          *testing.T
}

// mockClaude answers every prompt with a jest test file for math.ts. The
// first reply asserts a wrong sum; later replies are correct. With
// MOCK_ALWAYS_WRONG set every reply is wrong.
const mockClaude = `#!/bin/sh
cat > /dev/null
n=$(cat "$MOCK_STATE" 2>/dev/null || echo 0)
n=$((n + 1))
echo "$n" > "$MOCK_STATE"
want=3
if [ "$n" -eq 1 ] || [ -n "$MOCK_ALWAYS_WRONG" ]; then
  want=4
fi
printf 'Here you go:\n\n` + "```" + `ts\nimport { add } from "./math";\n\ndescribe("add", () => {\n  it("adds two numbers", () => {\n    expect(add(1, 2)).toBe(%s);\n  });\n});\n` + "```" + `\n' "$want"
`

// mockNpx stands in for "npx jest <file> ...": the test fails when it
// expects 4.
const mockNpx = `#!/bin/sh
file="$2"
if grep -q 'toBe(4)' "$file"; then
  cat <<'OUT'
FAIL src/math.test.ts
  ● add › adds two numbers

    expect(received).toBe(expected) // Object.is equality

    Expected: 4
    Received: 3

Tests:       1 failed, 1 total
OUT
  exit 1
fi
echo 'PASS src/math.test.ts'
echo 'Tests:       1 passed, 1 total'
`

const mathSource = `export function add(a: number, b: number): number {
  return a + b;
}
`

// newTestProject builds the testsmith binary and writes the mock
// executables into a fresh temp directory.
func newTestProject(t *testing.T) *testProject {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("E2E tests with sh mock executables are not supported on Windows")
	}

	dir := t.TempDir()

	binary := filepath.Join(dir, "testsmith")
	build := exec.Command("go", "build", "-o", binary, "./cmd/testsmith")
	build.Dir = projectRoot()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "building testsmith: %s", string(out))

	mockDir := filepath.Join(dir, "mock-bin")
	require.NoError(t, os.MkdirAll(mockDir, 0o755))
	for name, script := range map[string]string{"claude": mockClaude, "npx": mockNpx} {
		require.NoError(t, os.WriteFile(filepath.Join(mockDir, name), []byte(script), 0o755))
	}

	work := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(work, 0o755))
	return &testProject{Dir: work, BinaryPath: binary, t: t}
}

// projectRoot returns the repository root, two directories above this file.
func projectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// writeFile writes content to a path relative to the project directory.
func (tp *testProject) writeFile(rel, content string) {
	tp.t.Helper()
	path := filepath.Join(tp.Dir, rel)
	require.NoError(tp.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tp.t, os.WriteFile(path, []byte(content), 0o644))
}

func (tp *testProject) readFile(rel string) string {
	tp.t.Helper()
	data, err := os.ReadFile(filepath.Join(tp.Dir, rel))
	require.NoError(tp.t, err)
	return string(data)
}

// writeConfig writes testsmith.toml in the project directory.
func (tp *testProject) writeConfig(content string) {
	tp.t.Helper()
	tp.writeFile("testsmith.toml", content)
}

// claudeCalls returns how many prompts the mock claude answered.
func (tp *testProject) claudeCalls() string {
	tp.t.Helper()
	data, err := os.ReadFile(filepath.Join(tp.Dir, "..", "claude-calls"))
	if errors.Is(err, os.ErrNotExist) {
		return "0"
	}
	require.NoError(tp.t, err)
	return string(data[:len(data)-1])
}

// run creates an exec.Cmd for testsmith with the mocks first on PATH.
func (tp *testProject) run(extraEnv []string, args ...string) *exec.Cmd {
	cmd := exec.Command(tp.BinaryPath, args...)
	cmd.Dir = tp.Dir
	mockPath := filepath.Join(tp.Dir, "..", "mock-bin")
	cmd.Env = append(os.Environ(),
		"PATH="+mockPath+string(os.PathListSeparator)+os.Getenv("PATH"),
		"MOCK_STATE="+filepath.Join(tp.Dir, "..", "claude-calls"),
		"NO_COLOR=1",
		"TESTSMITH_LOG_FORMAT=json",
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	return cmd
}

// runExpectSuccess runs testsmith and asserts exit code 0. It returns
// combined stdout and stderr.
func (tp *testProject) runExpectSuccess(args ...string) string {
	tp.t.Helper()
	out, err := tp.run(nil, args...).CombinedOutput()
	require.NoError(tp.t, err, "testsmith %v failed:\n%s", args, string(out))
	return string(out)
}

// runExpectFailure runs testsmith and asserts a non-zero exit code.
func (tp *testProject) runExpectFailure(env []string, args ...string) (string, int) {
	tp.t.Helper()
	out, err := tp.run(env, args...).CombinedOutput()
	require.Error(tp.t, err, "testsmith %v expected to fail but succeeded:\n%s", args, string(out))
	var exitErr *exec.ExitError
	require.True(tp.t, errors.As(err, &exitErr), "expected *exec.ExitError, got %T: %v", err, err)
	return string(out), exitErr.ExitCode()
}

// healingConfig runs the tests even when the first draft passes the static
// checks.
const healingConfig = `[healing]
enabled = true
max_retries = 3
always_run = true

[runner]
framework = "jest"

[generation]
provider = "claude"
base_delay = "10ms"
max_delay = "50ms"
`
