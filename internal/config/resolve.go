package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceFile    ConfigSource = "file"
	SourceEnv     ConfigSource = "env"
	SourceCLI     ConfigSource = "cli"
)

// ResolvedConfig holds the merged configuration with per-key sources.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // dotted key, e.g. "healing.max_retries"
	Path    string                  // config file used, empty if none
}

// Keys returns the tracked keys in sorted order.
func (rc *ResolvedConfig) Keys() []string {
	keys := make([]string, 0, len(rc.Sources))
	for k := range rc.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CLIOverrides captures flag values. A nil field means the flag was not given.
type CLIOverrides struct {
	Provider      *string
	Model         *string
	Framework     *string
	OutputDir     *string
	SelfHeal      *bool
	MaxRetries    *int
	AutoFix       *bool
	Concurrency   *int
	StopOnFailure *bool
}

// EnvFunc looks up environment variables. os.LookupEnv in production.
type EnvFunc func(key string) (string, bool)

// Resolve merges configuration in priority order:
// CLI flags > environment variables > config file > defaults.
//
// meta is the metadata returned by LoadFromFile. When it is nil, file values
// count as set only when they are non-zero. An error is returned only for
// malformed environment values.
func Resolve(defaults, fileConfig *Config, meta *toml.MetaData, envFn EnvFunc, overrides *CLIOverrides) (*ResolvedConfig, error) {
	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}

	// Layer 1: defaults, unconditionally.
	apply(rc, defaults, layer{source: SourceDefault, all: true})

	// Layer 2: file.
	if fileConfig != nil {
		apply(rc, fileConfig, layer{source: SourceFile, meta: meta})
	}

	// Layer 3: environment.
	if err := resolveFromEnv(rc, envFn); err != nil {
		return nil, err
	}

	// Layer 4: CLI.
	resolveFromCLI(rc, overrides)

	return rc, nil
}

// layer decides whether a value from one source is present.
type layer struct {
	source ConfigSource
	meta   *toml.MetaData
	all    bool
}

func (l layer) defined(key string, zero bool) bool {
	if l.all {
		return true
	}
	if l.meta != nil {
		return l.meta.IsDefined(strings.Split(key, ".")...)
	}
	return !zero
}

func mergeValue[T comparable](rc *ResolvedConfig, l layer, key string, target *T, value T) {
	var zero T
	if l.defined(key, value == zero) {
		*target = value
		rc.Sources[key] = l.source
	}
}

func mergeSlice(rc *ResolvedConfig, l layer, key string, target *[]string, value []string) {
	if l.defined(key, len(value) == 0) {
		*target = append([]string(nil), value...)
		rc.Sources[key] = l.source
	}
}

func apply(rc *ResolvedConfig, src *Config, l layer) {
	c := rc.Config

	mergeSlice(rc, l, "project.source_extensions", &c.Project.SourceExtensions, src.Project.SourceExtensions)
	mergeSlice(rc, l, "project.exclude", &c.Project.Exclude, src.Project.Exclude)
	mergeValue(rc, l, "project.output_dir", &c.Project.OutputDir, src.Project.OutputDir)
	mergeValue(rc, l, "project.test_suffix", &c.Project.TestSuffix, src.Project.TestSuffix)
	mergeValue(rc, l, "project.import_suffix", &c.Project.ImportSuffix, src.Project.ImportSuffix)

	g, sg := &c.Generation, &src.Generation
	mergeValue(rc, l, "generation.provider", &g.Provider, sg.Provider)
	mergeValue(rc, l, "generation.model", &g.Model, sg.Model)
	mergeValue(rc, l, "generation.temperature", &g.Temperature, sg.Temperature)
	mergeValue(rc, l, "generation.max_tokens", &g.MaxTokens, sg.MaxTokens)
	mergeValue(rc, l, "generation.timeout", &g.Timeout, sg.Timeout)
	mergeValue(rc, l, "generation.max_attempts", &g.MaxAttempts, sg.MaxAttempts)
	mergeValue(rc, l, "generation.base_delay", &g.BaseDelay, sg.BaseDelay)
	mergeValue(rc, l, "generation.max_delay", &g.MaxDelay, sg.MaxDelay)

	mergeValue(rc, l, "healing.enabled", &c.Healing.Enabled, src.Healing.Enabled)
	mergeValue(rc, l, "healing.max_retries", &c.Healing.MaxRetries, src.Healing.MaxRetries)
	mergeValue(rc, l, "healing.always_run", &c.Healing.AlwaysRun, src.Healing.AlwaysRun)

	mergeValue(rc, l, "runner.framework", &c.Runner.Framework, src.Runner.Framework)
	mergeValue(rc, l, "runner.timeout", &c.Runner.Timeout, src.Runner.Timeout)
	mergeSlice(rc, l, "runner.command", &c.Runner.Command, src.Runner.Command)

	mergeValue(rc, l, "quality.auto_fix", &c.Quality.AutoFix, src.Quality.AutoFix)
	mergeValue(rc, l, "quality.min_score", &c.Quality.MinScore, src.Quality.MinScore)
	mergeSlice(rc, l, "quality.mock_exempt", &c.Quality.MockExempt, src.Quality.MockExempt)

	mergeValue(rc, l, "batch.concurrency", &c.Batch.Concurrency, src.Batch.Concurrency)
	mergeValue(rc, l, "batch.stop_on_failure", &c.Batch.StopOnFailure, src.Batch.StopOnFailure)

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, pc := range src.Providers {
		merged := c.Providers[name]
		prefix := "providers." + name
		mergeValue(rc, l, prefix+".command", &merged.Command, pc.Command)
		mergeValue(rc, l, prefix+".model", &merged.Model, pc.Model)
		mergeValue(rc, l, prefix+".base_url", &merged.BaseURL, pc.BaseURL)
		mergeValue(rc, l, prefix+".api_key_env", &merged.APIKeyEnv, pc.APIKeyEnv)
		mergeValue(rc, l, prefix+".requests_per_minute", &merged.RequestsPerMinute, pc.RequestsPerMinute)
		c.Providers[name] = merged
	}
}

// Environment variable mapping:
//
//	TESTSMITH_PROVIDER        -> generation.provider
//	TESTSMITH_MODEL           -> generation.model
//	TESTSMITH_FRAMEWORK       -> runner.framework
//	TESTSMITH_RUNNER_TIMEOUT  -> runner.timeout
//	TESTSMITH_MAX_RETRIES     -> healing.max_retries
//	TESTSMITH_CONCURRENCY     -> batch.concurrency
//	TESTSMITH_OUTPUT_DIR      -> project.output_dir
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) error {
	c := rc.Config

	strs := []struct {
		env    string
		key    string
		target *string
	}{
		{"TESTSMITH_PROVIDER", "generation.provider", &c.Generation.Provider},
		{"TESTSMITH_MODEL", "generation.model", &c.Generation.Model},
		{"TESTSMITH_FRAMEWORK", "runner.framework", &c.Runner.Framework},
		{"TESTSMITH_OUTPUT_DIR", "project.output_dir", &c.Project.OutputDir},
	}
	for _, s := range strs {
		if val, ok := envFn(s.env); ok {
			*s.target = val
			rc.Sources[s.key] = SourceEnv
		}
	}

	ints := []struct {
		env    string
		key    string
		target *int
	}{
		{"TESTSMITH_MAX_RETRIES", "healing.max_retries", &c.Healing.MaxRetries},
		{"TESTSMITH_CONCURRENCY", "batch.concurrency", &c.Batch.Concurrency},
	}
	for _, s := range ints {
		val, ok := envFn(s.env)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", s.env, val)
		}
		*s.target = n
		rc.Sources[s.key] = SourceEnv
	}

	if val, ok := envFn("TESTSMITH_RUNNER_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("TESTSMITH_RUNNER_TIMEOUT: invalid duration %q", val)
		}
		c.Runner.Timeout = d
		rc.Sources["runner.timeout"] = SourceEnv
	}
	return nil
}

func resolveFromCLI(rc *ResolvedConfig, o *CLIOverrides) {
	c := rc.Config

	setPtr(rc, "generation.provider", &c.Generation.Provider, o.Provider)
	setPtr(rc, "generation.model", &c.Generation.Model, o.Model)
	setPtr(rc, "runner.framework", &c.Runner.Framework, o.Framework)
	setPtr(rc, "project.output_dir", &c.Project.OutputDir, o.OutputDir)
	setPtr(rc, "healing.enabled", &c.Healing.Enabled, o.SelfHeal)
	setPtr(rc, "healing.max_retries", &c.Healing.MaxRetries, o.MaxRetries)
	setPtr(rc, "quality.auto_fix", &c.Quality.AutoFix, o.AutoFix)
	setPtr(rc, "batch.concurrency", &c.Batch.Concurrency, o.Concurrency)
	setPtr(rc, "batch.stop_on_failure", &c.Batch.StopOnFailure, o.StopOnFailure)
}

func setPtr[T any](rc *ResolvedConfig, key string, target *T, value *T) {
	if value == nil {
		return
	}
	*target = *value
	rc.Sources[key] = SourceCLI
}
