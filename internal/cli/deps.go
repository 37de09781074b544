package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/analyzer"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/generate"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/pipeline"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/provider"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/quality"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/testrun"
)

// lookupProvider returns the named backend from the configured providers.
// Tests replace it to inject a provider.MockProvider.
var lookupProvider = func(cfg *config.Config, name string) (provider.Provider, error) {
	reg, err := provider.RegistryFromConfig(cfg.Providers, os.Getenv, logging.New("provider"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "provider", err)
	}
	p, err := reg.Get(name)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidArgs, "provider",
			"unknown provider %q (configured: %v)", name, reg.List())
	}
	return p, nil
}

// loadAndResolveConfig loads testsmith.toml (from --config or by walking up
// from the working directory) and layers env and CLI overrides on top. The
// returned metadata is nil when no file was found.
func loadAndResolveConfig(overrides *config.CLIOverrides) (*config.ResolvedConfig, *toml.MetaData, error) {
	var (
		fileCfg *config.Config
		meta    *toml.MetaData
		cfgPath = flagConfig
	)

	if cfgPath == "" {
		found, err := config.FindConfigFile(".")
		if err != nil {
			return nil, nil, fmt.Errorf("finding config file: %w", err)
		}
		cfgPath = found
	}
	if cfgPath != "" {
		fc, md, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.KindInvalidArgs, "config", err)
		}
		fileCfg = fc
		meta = &md
	}

	resolved, err := config.Resolve(config.NewDefaults(), fileCfg, meta, os.LookupEnv, overrides)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInvalidArgs, "config", err)
	}
	resolved.Path = cfgPath
	return resolved, meta, nil
}

// loadConfig resolves and validates the configuration. Warnings are
// logged; errors fail the command as invalid arguments.
func loadConfig(overrides *config.CLIOverrides) (*config.ResolvedConfig, error) {
	resolved, meta, err := loadAndResolveConfig(overrides)
	if err != nil {
		return nil, err
	}
	result := config.Validate(resolved.Config, meta)
	logger := logging.New("config")
	for _, w := range result.Warnings() {
		logger.Warn("config", "field", w.Field, "issue", w.Message)
	}
	if err := result.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "config", err)
	}
	logger.Debug("config resolved", "path", resolved.Path, "provider", resolved.Config.Generation.Provider)
	return resolved, nil
}

// components are the collaborators shared by the pipeline commands.
type components struct {
	cfg       *config.Config
	framework testrun.Framework
	analyzer  *analyzer.TreeSitter
	validator *quality.Validator
	runner    *testrun.Runner
	generator *generate.Generator
	limiter   *provider.RateLimitCoordinator
}

// buildComponents wires the analyzer, validator and runner from cfg. The
// generator is built only when withProvider is set, since it needs an
// available backend.
func buildComponents(ctx context.Context, cfg *config.Config, withProvider bool) (*components, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	fw, err := testrun.ResolveFramework(cfg.Runner.Framework, wd)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgs, "config", err)
	}

	ts := analyzer.NewTreeSitter(analyzer.WithLogger(logging.New("analyzer")))
	c := &components{
		cfg:       cfg,
		framework: fw,
		analyzer:  ts,
		validator: quality.New(
			quality.WithAutoFix(cfg.Quality.AutoFix),
			quality.WithImportSuffix(cfg.Project.ImportSuffix),
			quality.WithMockExempt(cfg.Quality.MockExempt),
			quality.WithAnalyzer(ts),
			quality.WithLogger(logging.New("quality")),
		),
		runner: testrun.New(
			testrun.WithTimeout(cfg.Runner.Timeout),
			testrun.WithCommand(cfg.Runner.Command),
			testrun.WithWorkDir(wd),
			testrun.WithLogger(logging.New("runner")),
		),
	}
	if !withProvider {
		return c, nil
	}

	p, err := lookupProvider(cfg, cfg.Generation.Provider)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable(ctx) {
		return nil, apperr.New(apperr.KindProviderNotAvailable, "provider",
			"provider %q is not available (CLI not on PATH or API key not set)", p.Name())
	}

	// One coordinator per invocation lets batch workers share a backend's
	// rate-limit wait.
	c.limiter = provider.NewRateLimitCoordinator(provider.DefaultBackoffConfig())
	limitLog := logging.New("ratelimit")
	c.limiter.SetUpdateCallback(func(s provider.LimitState) {
		if s.IsLimited {
			limitLog.Warn("provider rate limited", "provider", s.Provider, "wait", s.RemainingWait().Round(time.Second), "waits", s.WaitCount)
		}
	})

	g := cfg.Generation
	temp := g.Temperature
	c.generator = generate.New(
		provider.WithCoordinator(p, c.limiter),
		generate.WithGenerateOpts(provider.GenerateOpts{
			Temperature: &temp,
			MaxTokens:   g.MaxTokens,
			Timeout:     g.Timeout,
			Model:       g.Model,
		}),
		generate.WithRetry(retryConfig(g)),
		generate.WithLogger(logging.New("generate")),
	)
	return c, nil
}

func retryConfig(g config.GenerationConfig) provider.RetryConfig {
	rc := provider.DefaultRetryConfig()
	if g.MaxAttempts > 0 {
		rc.MaxAttempts = g.MaxAttempts
	}
	if g.BaseDelay > 0 {
		rc.BaseDelay = g.BaseDelay
	}
	if g.MaxDelay > 0 {
		rc.MaxDelay = g.MaxDelay
	}
	return rc
}

// orchestrator builds the per-file pipeline from c.
func (c *components) orchestrator(progress pipeline.ProgressFunc, logger *log.Logger) *pipeline.Orchestrator {
	cfg := c.cfg
	return pipeline.New(c.analyzer, c.generator, c.validator, c.runner,
		pipeline.WithFramework(c.framework),
		pipeline.WithSelfHeal(cfg.Healing.Enabled, cfg.Healing.MaxRetries),
		pipeline.WithAlwaysRun(cfg.Healing.AlwaysRun),
		pipeline.WithAcceptFixes(cfg.Quality.AutoFix),
		pipeline.WithDryRun(flagDryRun),
		pipeline.WithMinScore(cfg.Quality.MinScore),
		pipeline.WithOutputDir(cfg.Project.OutputDir),
		pipeline.WithTestSuffix(cfg.Project.TestSuffix),
		pipeline.WithImportSuffix(cfg.Project.ImportSuffix),
		pipeline.WithProgress(progress),
		pipeline.WithLogger(logger),
	)
}
