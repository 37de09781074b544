// Package generate turns a source file into test code, and failing test
// code into repaired test code, by prompting a text-generation provider.
//
// Prompts are rendered from embedded templates. Every provider call goes
// through provider.Retry, and the reply is reduced to the single code block
// it is asked to contain; a reply without code is an apperr.KindParse error.
package generate

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/provider"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/textutil"
)

// Request describes the test file to generate.
type Request struct {
	SourcePath string
	// TestPath is where the test file will be written. Relative imports in
	// the prompt are computed from it.
	TestPath     string
	Analysis     *analyzer.FileAnalysis
	Dependencies []resolver.DependencyInfo
	Framework    testrun.Framework
	// Mocks lists the module paths the test must register mocks for.
	Mocks        []string
	ImportSuffix string
}

// PriorAttempt summarizes an earlier fix attempt for the next fix prompt.
type PriorAttempt struct {
	Attempt int
	Summary string
	// Duplicate is set when the attempt returned code identical to an
	// earlier attempt.
	Duplicate bool
}

// FixRequest describes a repair of failing test code.
type FixRequest struct {
	Request
	Code    string
	Run     *testrun.TestRunOutput
	Report  *quality.QualityReport
	History []PriorAttempt
}

// Result is the outcome of one Generate or Fix call.
type Result struct {
	Code string
	// Raw is the provider's reply before extraction.
	Raw string
	// Calls counts provider calls, retries included.
	Calls    int
	Duration time.Duration
}

// Generator prompts a provider for test code.
type Generator struct {
	provider provider.Provider
	opts     provider.GenerateOpts
	retry    provider.RetryConfig
	logger   *log.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithGenerateOpts sets the options passed on every provider call.
func WithGenerateOpts(opts provider.GenerateOpts) Option {
	return func(g *Generator) { g.opts = opts }
}

// WithRetry replaces provider.DefaultRetryConfig.
func WithRetry(cfg provider.RetryConfig) Option {
	return func(g *Generator) { g.retry = cfg }
}

// WithLogger sets the generator's logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New returns a Generator backed by p.
func New(p provider.Provider, opts ...Option) *Generator {
	g := &Generator{provider: p, retry: provider.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrDiscard(g.logger)
	return g
}

// Provider returns the backend the generator calls.
func (g *Generator) Provider() provider.Provider { return g.provider }

// Generate writes a first version of the test file.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "generate", err)
	}
	return g.complete(ctx, "generate", prompt)
}

// Fix asks for a repaired version of req.Code.
func (g *Generator) Fix(ctx context.Context, req FixRequest) (*Result, error) {
	prompt, err := BuildFixPrompt(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "fix", err)
	}
	return g.complete(ctx, "fix", prompt)
}

func (g *Generator) complete(ctx context.Context, op, prompt string) (*Result, error) {
	if g.provider == nil {
		return nil, apperr.New(apperr.KindProviderNotAvailable, op, "no provider configured")
	}

	name := g.provider.Name()
	res := &Result{}
	start := time.Now()

	err := provider.Retry(ctx, g.retry, g.logger, op, func(ctx context.Context) error {
		res.Calls++
		out, err := g.provider.Generate(ctx, prompt, g.opts)
		if err != nil {
			return err
		}
		res.Raw = out
		return nil
	})
	res.Duration = time.Since(start)
	if err != nil {
		g.logger.Error("provider call failed", "op", op, "provider", name, "calls", res.Calls, "error", err)
		return res, apperr.Wrap(apperr.KindGeneration, op, err)
	}

	code, err := ExtractCode(res.Raw)
	if err != nil {
		g.logger.Warn("reply contained no code", "op", op, "provider", name, "reply_bytes", len(res.Raw))
		return res, err
	}
	res.Code = code

	g.logger.Info("provider replied",
		"op", op,
		"provider", name,
		"calls", res.Calls,
		"duration", res.Duration.Round(time.Millisecond),
		"code_bytes", len(code),
	)
	return res, nil
}

// codeLangs are the fence tags accepted as test code. Untagged fences are
// always accepted.
var codeLangs = []string{"ts", "typescript", "tsx", "js", "javascript", "jsx", "mjs", "cjs"}

// reLooksLikeTest recognizes an unfenced reply that is test code itself.
var reLooksLikeTest = regexp.MustCompile(`(?m)^\s*(?:import\s|const\s+\w+\s*=\s*require\(|describe\(|it\(|test\()`)

// reOpenFence matches a fence opening line left without its closing fence
// by a reply that was cut short.
var reOpenFence = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \\t]*\n")

// ExtractCode returns the test code in a provider reply: the largest
// JavaScript or TypeScript code block, or the whole reply when it is
// unfenced code. The result ends with one newline.
func ExtractCode(raw string) (string, error) {
	text, err := textutil.Sanitize(raw)
	if err != nil {
		return "", apperr.Wrap(apperr.KindParse, "extract", err)
	}
	if b, ok := textutil.LargestCodeBlock(text, codeLangs...); ok {
		return b.Body + "\n", nil
	}

	body := strings.TrimSpace(text)
	body = reOpenFence.ReplaceAllString(body, "")
	body = strings.TrimSpace(strings.TrimSuffix(body, "```"))
	if body != "" && reLooksLikeTest.MatchString(body) {
		return body + "\n", nil
	}
	return "", apperr.New(apperr.KindParse, "extract", "reply contains no test code (%d bytes)", len(raw))
}
