package testrun_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// writeScript writes a shell script standing in for the framework binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-runner.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunner_Command(t *testing.T) {
	t.Parallel()

	r := testrun.New()
	argv, err := r.Command("src/a.test.ts", testrun.FrameworkJest)
	require.NoError(t, err)
	assert.Equal(t, []string{"npx", "jest", "src/a.test.ts", "--ci", "--colors=false", "--no-coverage", "--runTestsByPath"}, argv)

	argv, err = r.Command("src/a.test.ts", testrun.FrameworkVitest)
	require.NoError(t, err)
	assert.Equal(t, []string{"npx", "vitest", "run", "src/a.test.ts", "--reporter=verbose", "--no-color"}, argv)

	argv, err = testrun.New(testrun.WithCommand([]string{"pnpm", "exec", "mocha"})).Command("t.js", testrun.FrameworkMocha)
	require.NoError(t, err)
	assert.Equal(t, []string{"pnpm", "exec", "mocha", "t.js", "--reporter", "spec", "--no-colors"}, argv)

	_, err = r.Command("t.js", testrun.Framework("ava"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgs, apperr.KindOf(err))
}

func TestRunner_RunParsesOutput(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "  ● math › fails"
echo ""
echo "    Error: boom"
echo "Tests:       1 failed, 2 passed, 3 total" >&2
exit 1
`)
	r := testrun.New(testrun.WithCommand([]string{"sh", script}), testrun.WithTimeout(10*time.Second))

	out, err := r.Run(context.Background(), "math.test.ts", testrun.FrameworkJest)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, 3, out.TotalTests)
	assert.Equal(t, 2, out.Passed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "math › fails", out.Failures[0].TestName)
	assert.Contains(t, out.RawOutput, "Tests:")
}

func TestRunner_RunSetsNonInteractiveEnv(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "CI=$CI NO_COLOR=$NO_COLOR"
echo "      Tests  1 passed (1)"
`)
	r := testrun.New(testrun.WithCommand([]string{"sh", script}))

	out, err := r.Run(context.Background(), "a.test.ts", testrun.FrameworkVitest)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, out.RawOutput, "CI=true NO_COLOR=1")
}

func TestRunner_TimeoutSynthesizesFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "echo started\nsleep 30\n")
	r := testrun.New(testrun.WithCommand([]string{"sh", script}), testrun.WithTimeout(300*time.Millisecond))

	start := time.Now()
	out, err := r.Run(context.Background(), "slow.test.ts", testrun.FrameworkJest)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.False(t, out.Success)
	assert.True(t, out.TimedOut)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "<timeout>", out.Failures[0].TestName)
	assert.Contains(t, out.Failures[0].ErrorMessage, "timed out")
	assert.Equal(t, 1, out.Failed)
}

func TestRunner_StartFailureIsTestRunError(t *testing.T) {
	t.Parallel()

	r := testrun.New(testrun.WithCommand([]string{filepath.Join(t.TempDir(), "no-such-binary")}))
	_, err := r.Run(context.Background(), "a.test.ts", testrun.FrameworkJest)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTestRun, apperr.KindOf(err))
	assert.True(t, apperr.Recoverable(err))
}

func TestRunner_CancelledContext(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "sleep 30\n")
	r := testrun.New(testrun.WithCommand([]string{"sh", script}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, "a.test.ts", testrun.FrameworkJest)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
