package e2e_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownSubcommandFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	_, code := tp.runExpectFailure(nil, "nonexistent-command")
	assert.NotEqual(t, 0, code)
}

func TestMissingSourceExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out, code := tp.runExpectFailure(nil, "generate", "src/nope.ts")
	assert.Equal(t, 3, code, out)
}

func TestInvalidConfigExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig("this is not valid toml ][")
	tp.writeFile("src/math.ts", mathSource)

	out, code := tp.runExpectFailure(nil, "generate", "src/math.ts")
	assert.Equal(t, 2, code, out)
}

func TestUnavailableProviderExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig("[providers.claude]\ncommand = \"claude-not-installed-anywhere\"\n")
	tp.writeFile("src/math.ts", mathSource)

	out, code := tp.runExpectFailure(nil, "generate", "src/math.ts")
	assert.Equal(t, 4, code, out)
}

func TestVersionAndConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	assert.Contains(t, tp.runExpectSuccess("version", "--verbose"), "testsmith")

	tp.runExpectSuccess("init", "--framework", "jest")
	out := tp.runExpectSuccess("config", "validate")
	assert.Contains(t, out, "No issues found.")
}
