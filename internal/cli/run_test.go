package cli

import (
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// writeRunnerConfig writes a testsmith.toml whose runner is a shell script
// printing a jest summary.
func writeRunnerConfig(t *testing.T, dir, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("runner script needs sh")
	}
	writeFile(t, filepath.Join(dir, "testsmith.toml"), `[runner]
framework = "jest"
command = ["sh", "-c", "`+script+`"]
`)
}

func TestRunCmd_Passing(t *testing.T) {
	resetRootCmd(t)
	dir := inTempDir(t)
	writeRunnerConfig(t, dir, "echo 'Tests:       2 passed, 2 total'")
	writeFile(t, filepath.Join(dir, "a.test.ts"), validTest)

	stdout, _, code := execute(t, "run", "a.test.ts")

	assert.Equal(t, 0, code, stdout)
	assert.Contains(t, stdout, "PASS a.test.ts (jest, exit 0")
	assert.Contains(t, stdout, "2 passed, 0 failed, 0 skipped of 2")
}

func TestRunCmd_FailingJSON(t *testing.T) {
	resetRootCmd(t)
	dir := inTempDir(t)
	writeRunnerConfig(t, dir, "echo 'Tests:       1 failed, 1 passed, 2 total'; exit 1")
	writeFile(t, filepath.Join(dir, "a.test.ts"), validTest)

	stdout, _, code := execute(t, "run", "a.test.ts", "--json")

	assert.Equal(t, apperr.CodeTestRunFailed.ExitCode(), code)
	var out testrun.TestRunOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.False(t, out.Success)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, out.Passed)
	assert.Equal(t, 1, out.ExitCode)
	assert.True(t, out.SummaryFound)
}

func TestRunCmd_MissingFile(t *testing.T) {
	resetRootCmd(t)
	inTempDir(t)

	_, _, code := execute(t, "run", "nope.test.ts")

	assert.Equal(t, apperr.CodeFileNotFound.ExitCode(), code)
}
