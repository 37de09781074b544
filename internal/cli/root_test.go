package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
)

// resetRootCmd resets all global flag values and Cobra's "Changed" tracking
// on every command. It must be called at the start of every test that
// invokes Execute() or manipulates rootCmd.
func resetRootCmd(t *testing.T) {
	t.Helper()
	flagVerbose = false
	flagQuiet = false
	flagConfig = ""
	flagDir = ""
	flagDryRun = false
	flagNoColor = false
	scanJSON = false
	scanChangedSince = ""
	versionJSON = false
	initFlagProvider = "claude"
	initFlagFramework = ""
	initFlagImportSuffix = ""
	initFlagForce = false
	initFlagInteractive = false
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		visit := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(visit)
		c.PersistentFlags().VisitAll(visit)
		for _, child := range c.Commands() {
			reset(child)
		}
	}
	reset(rootCmd)
}

// inTempDir changes into a fresh temporary directory for the rest of the
// test.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })
	require.NoError(t, os.Chdir(dir))
	return dir
}

// execute runs the root command with args and returns its stdout, stderr
// and exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), ExitCode(err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRootCmd_Basics(t *testing.T) {
	assert.Equal(t, "testsmith", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	tests := []struct {
		flagName  string
		shorthand string
	}{
		{flagName: "verbose", shorthand: "v"},
		{flagName: "quiet", shorthand: "q"},
		{flagName: "config"},
		{flagName: "dir"},
		{flagName: "dry-run"},
		{flagName: "no-color"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.flagName)
			require.NotNil(t, flag, "persistent flag %q must be registered", tt.flagName)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
		})
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "scan", "batch", "validate", "run", "config", "init", "version", "completion"} {
		assert.True(t, names[want], "subcommand %q must be registered", want)
	}
}

func TestNewRootCmd_CarriesSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "testsmith", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("dry-run"))
	assert.Len(t, cmd.Commands(), len(rootCmd.Commands()))
}

func TestRootCmd_DirFlagChangesDirectory(t *testing.T) {
	resetRootCmd(t)
	inTempDir(t)
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "a.ts"), "export const a = 1;\n")

	stdout, _, code := execute(t, "--dir", target, "scan")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "a.ts")
}

func TestRootCmd_DirFlagMissing(t *testing.T) {
	resetRootCmd(t)
	inTempDir(t)

	_, _, code := execute(t, "--dir", filepath.Join(t.TempDir(), "missing"), "scan")

	assert.Equal(t, apperr.CodeInvalidArgs.ExitCode(), code)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "outcome", err: &outcomeError{code: apperr.CodeSelfHealExhausted, message: "x"}, want: apperr.CodeSelfHealExhausted.ExitCode()},
		{name: "wrapped outcome", err: fmt.Errorf("ctx: %w", &outcomeError{code: apperr.CodeValidationFailed}), want: apperr.CodeValidationFailed.ExitCode()},
		{name: "classified", err: apperr.New(apperr.KindFileNotFound, "op", "missing"), want: apperr.CodeFileNotFound.ExitCode()},
		{name: "provider", err: apperr.New(apperr.KindProviderNotAvailable, "op", "down"), want: apperr.CodeProviderError.ExitCode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
