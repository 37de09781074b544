package testrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/textutil"
)

// DefaultTimeout bounds one test run when the caller sets none.
const DefaultTimeout = 60 * time.Second

// frameworkCommand describes how one framework is invoked.
type frameworkCommand struct {
	prefix []string
	args   func(file string) []string
	env    []string
}

var commands = map[Framework]frameworkCommand{
	FrameworkJest: {
		prefix: []string{"npx", "jest"},
		args: func(file string) []string {
			return []string{file, "--ci", "--colors=false", "--no-coverage", "--runTestsByPath"}
		},
		env: []string{"CI=true", "FORCE_COLOR=0"},
	},
	FrameworkVitest: {
		prefix: []string{"npx", "vitest", "run"},
		args: func(file string) []string {
			return []string{file, "--reporter=verbose", "--no-color"}
		},
		env: []string{"CI=true", "NO_COLOR=1"},
	},
	FrameworkMocha: {
		prefix: []string{"npx", "mocha"},
		args: func(file string) []string {
			return []string{file, "--reporter", "spec", "--no-colors"}
		},
		env: []string{"CI=true", "FORCE_COLOR=0"},
	},
}

// Runner executes test files. A Runner holds only configuration and is safe
// for concurrent use.
type Runner struct {
	timeout time.Duration
	command []string
	workDir string
	logger  *log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each run. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCommand replaces the framework's command prefix (for example
// ["pnpm", "exec", "jest"]). The test file and framework flags are still
// appended.
func WithCommand(prefix []string) Option {
	return func(r *Runner) {
		if len(prefix) > 0 {
			r.command = append([]string(nil), prefix...)
		}
	}
}

// WithWorkDir sets the directory the test command runs in.
func WithWorkDir(dir string) Option {
	return func(r *Runner) { r.workDir = dir }
}

// WithLogger sets the logger. A nil logger silences the runner.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New returns a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// Command returns the argv used to run testFile with fw.
func (r *Runner) Command(testFile string, fw Framework) ([]string, error) {
	spec, ok := commands[fw]
	if !ok {
		return nil, apperr.New(apperr.KindInvalidArgs, "testrun", "unsupported framework %q", fw)
	}
	prefix := spec.prefix
	if len(r.command) > 0 {
		prefix = r.command
	}
	argv := append(append([]string(nil), prefix...), spec.args(testFile)...)
	return argv, nil
}

// Run executes testFile with fw and parses the output.
//
// A run that exceeds the timeout has its process group killed and comes back
// as a failed TestRunOutput with one timeout failure and a nil error. An
// error is returned only when the command could not be started or ctx itself
// was cancelled.
func (r *Runner) Run(ctx context.Context, testFile string, fw Framework) (*TestRunOutput, error) {
	argv, err := r.Command(testFile, fw)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), commands[fw].env...)
	setProcGroup(cmd)

	// One buffer for both streams keeps their interleaving verbatim.
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	r.logger.Debug("running tests", "file", testFile, "framework", fw, "command", argv)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	raw := textutil.Truncate(buf.String())

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		out := Parse(fw, raw, 0)
		out.Success = false
		out.TimedOut = true
		out.ExitCode = -1
		out.Duration = elapsed
		out.Failures = append(out.Failures, TestFailure{
			TestName:     "<timeout>",
			ErrorMessage: fmt.Sprintf("test run timed out after %s and was terminated", r.timeout),
		})
		out.Failed++
		out.TotalTests = out.Passed + out.Failed + out.Skipped
		r.logger.Warn("test run timed out", "file", testFile, "timeout", r.timeout)
		return &out, nil
	}
	if ctx.Err() != nil {
		return nil, apperr.Wrap(apperr.KindTestRun, "testrun", ctx.Err())
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, apperr.Wrap(apperr.KindTestRun, "testrun", fmt.Errorf("starting %s: %w", argv[0], runErr))
		}
		exitCode = exitErr.ExitCode()
	}

	out := Parse(fw, raw, exitCode)
	out.Duration = elapsed

	r.logger.Info("test run finished",
		"file", testFile,
		"success", out.Success,
		"passed", out.Passed,
		"failed", out.Failed,
		"skipped", out.Skipped,
		"duration", elapsed.Round(time.Millisecond),
	)
	return &out, nil
}
