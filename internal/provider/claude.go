package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
)

// Compile-time check that ClaudeCLI implements Provider.
var _ Provider = (*ClaudeCLI)(nil)

var (
	// reRateLimit matches common rate-limit phrases in CLI output.
	reRateLimit = regexp.MustCompile(`(?i)(?:rate limit|too many requests|rate.?limited|usage limit)`)

	// reResetTime matches "reset in N seconds/minutes/hours".
	reResetTime = regexp.MustCompile(`(?i)reset\s+(?:in\s+)?(\d+)\s*(seconds?|minutes?|hours?)`)

	// reTryAgain matches "try again in N seconds/minutes/hours".
	reTryAgain = regexp.MustCompile(`(?i)try\s+again\s+in\s+(\d+)\s*(seconds?|minutes?|hours?)`)

	// reAuth matches login and credential failures.
	reAuth = regexp.MustCompile(`(?i)(?:invalid api key|not logged in|please run /login|unauthorized|authentication (?:failed|error))`)
)

// ClaudeConfig configures ClaudeCLI.
type ClaudeConfig struct {
	// Command is the CLI executable (default "claude").
	Command string
	// Model is passed as --model unless GenerateOpts.Model is set.
	Model string
	// WorkDir is the directory the CLI runs in.
	WorkDir string
}

// ClaudeCLI generates text by running the Claude CLI in print mode. The
// prompt goes over stdin, so its size is not limited by argv.
type ClaudeCLI struct {
	config ClaudeConfig
	logger *log.Logger
}

// NewClaudeCLI returns a ClaudeCLI. A nil logger discards output.
func NewClaudeCLI(config ClaudeConfig, logger *log.Logger) *ClaudeCLI {
	if config.Command == "" {
		config.Command = "claude"
	}
	return &ClaudeCLI{config: config, logger: logging.OrDiscard(logger)}
}

// Name returns "claude".
func (c *ClaudeCLI) Name() string { return "claude" }

// IsAvailable reports whether the CLI executable is on PATH.
func (c *ClaudeCLI) IsAvailable(context.Context) bool {
	_, err := exec.LookPath(c.config.Command)
	return err == nil
}

// Generate runs the CLI once and returns its stdout.
func (c *ClaudeCLI) Generate(ctx context.Context, prompt string, opts GenerateOpts) (string, error) {
	if _, err := exec.LookPath(c.config.Command); err != nil {
		return "", &apperr.Error{
			Kind:     apperr.KindProviderNotAvailable,
			Op:       "claude.generate",
			Provider: c.Name(),
			Err:      fmt.Errorf("claude CLI not found (looked for %q): %w", c.config.Command, err),
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := c.buildArgs(opts)
	cmd := exec.CommandContext(ctx, c.config.Command, args...)
	cmd.Dir = c.config.WorkDir
	cmd.Env = os.Environ()
	cmd.Stdin = strings.NewReader(prompt)
	setProcGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running claude", "command", c.config.Command, "args", args, "prompt_bytes", len(prompt))

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", apperr.ProviderFailure(c.Name(), apperr.ReasonTimeout,
				fmt.Errorf("no reply after %s: %w", duration.Round(time.Millisecond), ctxErr))
		}
		return "", ctxErr
	}

	combined := stdout.String() + stderr.String()
	if resetAfter, limited := parseRateLimit(combined); limited {
		pe := apperr.ProviderFailure(c.Name(), apperr.ReasonRateLimit, errors.New(firstLine(combined)))
		pe.RetryAfter = resetAfter
		return "", pe
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", apperr.ProviderFailure(c.Name(), apperr.ReasonUnavailable, fmt.Errorf("running claude: %w", err))
		}
		reason := apperr.ReasonUnavailable
		if reAuth.MatchString(combined) {
			reason = apperr.ReasonAuth
		}
		return "", apperr.ProviderFailure(c.Name(), reason,
			fmt.Errorf("claude exited with code %d: %s", exitErr.ExitCode(), firstLine(stderr.String()+stdout.String())))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", apperr.ProviderFailure(c.Name(), apperr.ReasonBadResponse, errors.New("empty reply"))
	}

	c.logger.Debug("claude finished", "duration", duration.Round(time.Millisecond), "reply_bytes", len(out))
	return out, nil
}

func (c *ClaudeCLI) buildArgs(opts GenerateOpts) []string {
	args := []string{"--print", "--output-format", "text"}
	model := opts.Model
	if model == "" {
		model = c.config.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// parseRateLimit reports whether output carries a rate-limit signal and the
// reset delay it names, zero when none is named.
func parseRateLimit(output string) (time.Duration, bool) {
	if !reRateLimit.MatchString(output) {
		return 0, false
	}
	if m := reResetTime.FindStringSubmatch(output); len(m) == 3 {
		return parseResetDuration(m[1], m[2]), true
	}
	if m := reTryAgain.FindStringSubmatch(output); len(m) == 3 {
		return parseResetDuration(m[1], m[2]), true
	}
	return 0, true
}

// parseResetDuration converts a count and a unit word into a duration.
// Unrecognised units return 0.
func parseResetDuration(amount, unit string) time.Duration {
	n, err := strconv.Atoi(amount)
	if err != nil || n <= 0 {
		return 0
	}
	unit = strings.ToLower(unit)
	switch {
	case strings.HasPrefix(unit, "second"):
		return time.Duration(n) * time.Second
	case strings.HasPrefix(unit, "minute"):
		return time.Duration(n) * time.Minute
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour
	default:
		return 0
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 200
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
