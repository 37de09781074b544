// Package pipeline drives one source file through analysis, test
// generation, static validation and a bounded run/fix loop.
//
// The Orchestrator is a state machine over Phase:
//
//	analyzing -> generating -> validating -> {running <-> fixing} -> complete | error
//
// Analysis and generation failures end the run in error. A failing test
// run enters fixing while the retry budget lasts; running out of budget
// completes the run with Success false rather than an error. Every phase
// transition is recorded in PipelineState.Phases and reported through the
// optional ProgressFunc.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/generate"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/resolver"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// transitionSlack is added to the transition guard on top of what the fix
// budget needs.
const transitionSlack = 16

// Generator produces and repairs test code.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Result, error)
	Fix(ctx context.Context, req generate.FixRequest) (*generate.Result, error)
}

// Validator statically checks test code.
type Validator interface {
	Validate(ctx context.Context, in quality.Input) (*quality.QualityReport, error)
	RequiredMocks(testFile string, deps []resolver.DependencyInfo, fw testrun.Framework) []string
}

// Runner executes a test file.
type Runner interface {
	Run(ctx context.Context, testFile string, fw testrun.Framework) (*testrun.TestRunOutput, error)
}

// Resolver resolves a file's imports. A fresh one is created per run.
type Resolver interface {
	ResolveDependencies(ctx context.Context, imports []analyzer.ImportInfo, fromFile string) (*resolver.Result, error)
}

// Orchestrator runs the per-file pipeline. It holds configuration only;
// each Run owns its PipelineState, so one Orchestrator may serve
// concurrent runs as long as its collaborators allow it.
type Orchestrator struct {
	analyzer  analyzer.Analyzer
	generator Generator
	validator Validator
	runner    Runner

	newResolver  func() Resolver
	framework    testrun.Framework
	selfHeal     bool
	maxRetries   int
	alwaysRun    bool
	acceptFixes  bool
	dryRun       bool
	minScore     int
	outputDir    string
	testSuffix   string
	importSuffix string
	progress     ProgressFunc
	logger       *log.Logger
}

// transitionLimit bounds the state machine loop so that a transition bug
// cannot spin forever. Analysis, generation, validation, one run and the
// final step take 5 transitions; every fix attempt adds fixing, validating
// and running.
func (o *Orchestrator) transitionLimit() int {
	return 5 + 3*o.maxRetries + transitionSlack
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFramework sets the test framework (default jest).
func WithFramework(fw testrun.Framework) Option {
	return func(o *Orchestrator) { o.framework = fw }
}

// WithSelfHeal enables or disables the run/fix loop and sets its budget.
// Negative budgets are treated as zero.
func WithSelfHeal(enabled bool, maxRetries int) Option {
	return func(o *Orchestrator) {
		o.selfHeal = enabled
		o.maxRetries = max(maxRetries, 0)
	}
}

// WithAlwaysRun sends statically valid code to the test runner too when
// self-healing is enabled.
func WithAlwaysRun(always bool) Option {
	return func(o *Orchestrator) { o.alwaysRun = always }
}

// WithAcceptFixes makes the pipeline adopt the QA validator's auto-fixed
// code whenever it offers some.
func WithAcceptFixes(accept bool) Option {
	return func(o *Orchestrator) { o.acceptFixes = accept }
}

// WithDryRun stops every run after validation without writing or running
// anything.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// WithMinScore sets the quality score a statically accepted file needs
// when it is not run.
func WithMinScore(score int) Option {
	return func(o *Orchestrator) { o.minScore = score }
}

// WithOutputDir writes test files into dir instead of next to the source.
func WithOutputDir(dir string) Option {
	return func(o *Orchestrator) { o.outputDir = dir }
}

// WithTestSuffix sets the infix between base name and extension
// (default ".test").
func WithTestSuffix(suffix string) Option {
	return func(o *Orchestrator) {
		if suffix != "" {
			o.testSuffix = suffix
		}
	}
}

// WithImportSuffix sets the extension relative imports must carry.
func WithImportSuffix(suffix string) Option {
	return func(o *Orchestrator) { o.importSuffix = suffix }
}

// WithProgress registers fn for phase transition events.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithResolverFactory replaces the default resolver.New(analyzer).
func WithResolverFactory(fn func() Resolver) Option {
	return func(o *Orchestrator) { o.newResolver = fn }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New returns an Orchestrator. Self-healing is on with a budget of 3.
func New(a analyzer.Analyzer, g Generator, v Validator, r Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:   a,
		generator:  g,
		validator:  v,
		runner:     r,
		framework:  testrun.FrameworkJest,
		selfHeal:   true,
		maxRetries: 3,
		testSuffix: ".test",
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrDiscard(o.logger)
	if o.progress == nil {
		o.progress = func(ProgressEvent) {}
	}
	if o.newResolver == nil {
		logger := o.logger
		o.newResolver = func() Resolver { return resolver.New(a, resolver.WithLogger(logger)) }
	}
	return o
}

// TestPath returns where the test file for sourcePath is written:
// <output dir or source dir>/<base><suffix><ext>.
func (o *Orchestrator) TestPath(sourcePath string) string {
	dir := o.outputDir
	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}
	ext := filepath.Ext(sourcePath)
	base := strings.TrimSuffix(filepath.Base(sourcePath), ext)
	return filepath.Join(dir, base+o.testSuffix+ext)
}

// run is the scratch state of one Run call.
type run struct {
	state   *PipelineState
	metrics Metrics
	logger  *log.Logger
	written bool

	success bool
	code    apperr.ResultCode
	reason  string
	err     error
}

func (r *run) finish(success bool, code apperr.ResultCode, reason string) Phase {
	r.success = success
	r.code = code
	r.reason = reason
	return PhaseComplete
}

func (r *run) abort(agent string, phase Phase, err error) (Phase, error) {
	r.state.addError(agent, phase, err)
	r.err = err
	return PhaseError, err
}

// Run drives sourcePath through the pipeline. A non-nil error means the
// run aborted; the FileResult is returned either way and describes the
// failure. A run that exhausts its fix budget returns Success false and a
// nil error.
func (o *Orchestrator) Run(ctx context.Context, sourcePath string) (*FileResult, error) {
	start := time.Now()
	state := &PipelineState{
		RunID:      uuid.NewString(),
		SourcePath: sourcePath,
		TestPath:   o.TestPath(sourcePath),
		Framework:  o.framework,
		Phase:      PhaseAnalyzing,
		History:    newFixHistory(o.maxRetries),
		Errors:     []PipelineError{},
		Phases:     []PhaseRecord{},
	}
	r := &run{
		state:   state,
		metrics: NewMetrics(),
		logger:  o.logger.With("run_id", state.RunID, "file", filepath.Base(sourcePath)),
	}
	r.logger.Info("pipeline started", "framework", o.framework, "self_heal", o.selfHeal, "max_retries", o.maxRetries)

	limit := o.transitionLimit()
	phase := PhaseAnalyzing
	for i := 0; !phase.Terminal(); i++ {
		if err := ctx.Err(); err != nil {
			phase, _ = r.abort("pipeline", phase, err)
			break
		}
		if i >= limit {
			phase, _ = r.abort("pipeline", phase, fmt.Errorf("pipeline: no terminal phase after %d transitions", limit))
			break
		}

		startedAt := time.Now()
		next, err := o.step(ctx, r, phase)
		duration := time.Since(startedAt)

		record := PhaseRecord{Phase: phase, Next: next, StartedAt: startedAt, Duration: duration}
		if err != nil {
			record.Error = err.Error()
		}
		state.Phases = append(state.Phases, record)
		r.metrics.AddPhase(phase, duration)
		r.logger.Debug("phase finished", "phase", phase, "next", next, "duration", duration.Round(time.Millisecond))

		phase = next
		state.Phase = phase
	}

	if phase == PhaseComplete && !o.dryRun && state.TestCode != "" {
		if err := o.write(state); err != nil {
			phase, _ = r.abort("writer", PhaseComplete, err)
			state.Phase = phase
		} else {
			r.written = true
		}
	}

	return o.result(r, time.Since(start))
}

func (o *Orchestrator) step(ctx context.Context, r *run, phase Phase) (Phase, error) {
	switch phase {
	case PhaseAnalyzing:
		return o.analyze(ctx, r)
	case PhaseGenerating:
		return o.generateTests(ctx, r)
	case PhaseValidating:
		return o.validatePhase(ctx, r)
	case PhaseRunning:
		return o.runTests(ctx, r)
	case PhaseFixing:
		return o.fix(ctx, r)
	default:
		return r.abort("pipeline", phase, fmt.Errorf("pipeline: unknown phase %q", phase))
	}
}

func (o *Orchestrator) analyze(ctx context.Context, r *run) (Phase, error) {
	s := r.state
	o.emit(s, PhaseAnalyzing, "analyzing source", 0, 0)

	fa, err := o.analyzer.Analyze(ctx, s.SourcePath)
	if err != nil {
		return r.abort("analyzer", PhaseAnalyzing, err)
	}
	s.analysis = fa
	s.SourceCode = fa.SourceCode
	s.Imports = fa.Imports
	s.Exports = fa.Exports

	res, err := o.newResolver().ResolveDependencies(ctx, fa.Imports, s.SourcePath)
	if err != nil {
		return r.abort("resolver", PhaseAnalyzing, err)
	}
	s.Dependencies = res.Dependencies
	s.Mocks = o.validator.RequiredMocks(s.TestPath, s.Dependencies, s.Framework)

	if len(res.CircularDependencies) > 0 {
		r.logger.Debug("import cycles found", "count", len(res.CircularDependencies))
	}
	r.logger.Debug("source analyzed",
		"imports", len(fa.Imports),
		"local", res.ResolvedCount,
		"external", res.ExternalCount,
		"mocks", len(s.Mocks),
	)
	return PhaseGenerating, nil
}

func (o *Orchestrator) generateTests(ctx context.Context, r *run) (Phase, error) {
	s := r.state
	o.emit(s, PhaseGenerating, "generating tests", 0, 0)

	res, err := o.generator.Generate(ctx, o.request(s))
	if res != nil {
		r.metrics.LLMCalls += res.Calls
	}
	if err != nil {
		return r.abort("generator", PhaseGenerating, err)
	}
	s.TestCode = res.Code
	return PhaseValidating, nil
}

func (o *Orchestrator) validatePhase(ctx context.Context, r *run) (Phase, error) {
	s := r.state
	o.emit(s, PhaseValidating, "validating generated tests", 0, 0)

	report, err := o.validate(ctx, s)
	if err != nil {
		return r.abort("validator", PhaseValidating, err)
	}

	switch {
	case o.dryRun || !o.selfHeal:
		if !report.IsValid() {
			return r.finish(false, apperr.CodeValidationFailed, "static validation failed"), nil
		}
		if report.Score < o.minScore {
			return r.finish(false, apperr.CodeValidationFailed,
				fmt.Sprintf("quality score %d is below the minimum of %d", report.Score, o.minScore)), nil
		}
		return r.finish(true, apperr.CodeSuccess, ""), nil
	case report.IsValid() && !o.alwaysRun:
		return r.finish(true, apperr.CodeSuccess, ""), nil
	default:
		return PhaseRunning, nil
	}
}

func (o *Orchestrator) runTests(ctx context.Context, r *run) (Phase, error) {
	s := r.state
	o.emit(s, PhaseRunning, "running tests", s.History.CurrentAttempt, o.maxRetries)

	if err := o.write(s); err != nil {
		return r.abort("writer", PhaseRunning, err)
	}
	r.written = true

	out, err := o.runner.Run(ctx, s.TestPath, s.Framework)
	r.metrics.TestRuns++
	if err != nil {
		if !apperr.Recoverable(err) {
			return r.abort("runner", PhaseRunning, err)
		}
		s.addError("runner", PhaseRunning, err)
		out = &testrun.TestRunOutput{
			Framework: s.Framework,
			Failed:    1,
			Failures:  []testrun.TestFailure{{TestName: "<runner>", ErrorMessage: err.Error()}},
			RawOutput: err.Error(),
		}
	}
	s.TestRun = out

	if out.Success {
		r.logger.Info("tests passed", "passed", out.Passed, "attempts", s.History.CurrentAttempt)
		return r.finish(true, apperr.CodeSuccess, ""), nil
	}
	if s.History.Remaining() {
		return PhaseFixing, nil
	}

	code := apperr.CodeTestRunFailed
	if s.History.CurrentAttempt > 0 {
		code = apperr.CodeSelfHealExhausted
	}
	return r.finish(false, code, fmt.Sprintf("%d test(s) still failing after %d fix attempt(s)",
		max(out.Failed, 1), s.History.CurrentAttempt)), nil
}

func (o *Orchestrator) fix(ctx context.Context, r *run) (Phase, error) {
	s := r.state
	n := s.History.begin()
	s.FixAttempts = n
	r.metrics.FixAttempts++
	o.emit(s, PhaseFixing, fmt.Sprintf("fix attempt %d/%d", n, o.maxRetries), n, o.maxRetries)

	attempt := HealingAttempt{Attempt: n}
	if s.TestRun != nil {
		attempt.Failures = s.TestRun.Failures
	}
	s.History.see(s.TestCode)

	res, err := o.generator.Fix(ctx, generate.FixRequest{
		Request: o.request(s),
		Code:    s.TestCode,
		Run:     s.TestRun,
		Report:  s.Validation,
		History: s.History.Prior(),
	})
	if res != nil {
		r.metrics.LLMCalls += res.Calls
	}
	if err != nil {
		attempt.Error = err.Error()
		s.History.record(attempt)
		if !apperr.Recoverable(err) {
			return r.abort("generator", PhaseFixing, err)
		}
		s.addError("generator", PhaseFixing, err)
		if s.History.Remaining() {
			return PhaseFixing, err
		}
		return r.finish(false, apperr.CodeSelfHealExhausted,
			fmt.Sprintf("fix budget of %d exhausted", o.maxRetries)), err
	}

	attempt.CodeHash, attempt.Duplicate = s.History.see(res.Code)
	if attempt.Duplicate {
		r.logger.Warn("fix repeated earlier code", "attempt", n, "hash", attempt.CodeHash)
	}
	s.TestCode = res.Code
	attempt.Fixes = []string{"regenerated " + filepath.Base(s.TestPath)}

	report, err := o.validate(ctx, s)
	if err != nil {
		s.History.record(attempt)
		return r.abort("validator", PhaseFixing, err)
	}
	attempt.Fixes = append(attempt.Fixes, report.FixesApplied...)
	s.History.record(attempt)
	return PhaseRunning, nil
}

// validate checks the current code and, when accepting fixes, adopts the
// validator's fixed code and checks that instead. The stored report
// describes the code the state now holds.
func (o *Orchestrator) validate(ctx context.Context, s *PipelineState) (*quality.QualityReport, error) {
	in := quality.Input{
		TestFile:     s.TestPath,
		Code:         s.TestCode,
		Dependencies: s.Dependencies,
		Framework:    s.Framework,
	}
	report, err := o.validator.Validate(ctx, in)
	if err != nil {
		return nil, err
	}

	if o.acceptFixes && report.FixedCode != "" {
		in.Code = report.FixedCode
		fixed, err := o.validator.Validate(ctx, in)
		if err != nil {
			return nil, err
		}
		s.TestCode = report.FixedCode
		fixed.FixesApplied = report.FixesApplied
		fixed.FixedCode = ""
		report = fixed
	}
	s.Validation = report
	return report, nil
}

func (o *Orchestrator) request(s *PipelineState) generate.Request {
	return generate.Request{
		SourcePath:   s.SourcePath,
		TestPath:     s.TestPath,
		Analysis:     s.analysis,
		Dependencies: s.Dependencies,
		Framework:    s.Framework,
		Mocks:        s.Mocks,
		ImportSuffix: o.importSuffix,
	}
}

func (o *Orchestrator) write(s *PipelineState) error {
	if err := os.MkdirAll(filepath.Dir(s.TestPath), 0o755); err != nil {
		return fmt.Errorf("pipeline: creating output dir: %w", err)
	}
	if err := os.WriteFile(s.TestPath, []byte(s.TestCode), 0o644); err != nil {
		return fmt.Errorf("pipeline: writing %s: %w", s.TestPath, err)
	}
	return nil
}

func (o *Orchestrator) emit(s *PipelineState, phase Phase, message string, current, total int) {
	o.progress(ProgressEvent{
		Phase:   phase,
		File:    s.SourcePath,
		Message: message,
		Current: current,
		Total:   total,
	})
}

func (o *Orchestrator) result(r *run, duration time.Duration) (*FileResult, error) {
	s := r.state
	res := &FileResult{
		RunID:      s.RunID,
		SourcePath: s.SourcePath,
		TestPath:   s.TestPath,
		Attempts:   s.History.CurrentAttempt,
		Written:    r.written,
		Duration:   duration,
		State:      s,
	}
	if s.Validation != nil {
		res.Score = s.Validation.Score
	}

	if r.err != nil {
		r.metrics.Failed++
		res.Code = apperr.CodeFor(r.err)
		res.Error = r.err.Error()
		res.Metrics = r.metrics
		o.emit(s, PhaseError, res.Error, 0, 0)
		r.logger.Error("pipeline failed", "phase", lastPhase(s), "code", res.Code, "error", r.err)
		return res, r.err
	}

	r.metrics.Completed++
	if !r.success {
		r.metrics.Failed++
	}
	res.Success = r.success
	res.Code = r.code
	res.Error = r.reason
	res.Metrics = r.metrics

	message := "tests generated"
	if !r.success {
		message = r.reason
	}
	o.emit(s, PhaseComplete, message, s.History.CurrentAttempt, o.maxRetries)
	r.logger.Info("pipeline finished",
		"success", res.Success,
		"code", res.Code,
		"score", res.Score,
		"attempts", res.Attempts,
		"llm_calls", r.metrics.LLMCalls,
		"duration", duration.Round(time.Millisecond),
	)
	return res, nil
}

func lastPhase(s *PipelineState) Phase {
	if len(s.Phases) == 0 {
		return PhaseAnalyzing
	}
	return s.Phases[len(s.Phases)-1].Phase
}
