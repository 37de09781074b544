package config

import "time"

// Config is the top-level configuration structure mapping to testsmith.toml.
type Config struct {
	Project    ProjectConfig             `toml:"project"`
	Generation GenerationConfig          `toml:"generation"`
	Healing    HealingConfig             `toml:"healing"`
	Runner     RunnerConfig              `toml:"runner"`
	Quality    QualityConfig             `toml:"quality"`
	Batch      BatchConfig               `toml:"batch"`
	Providers  map[string]ProviderConfig `toml:"providers"`
}

// ProjectConfig maps to the [project] section.
type ProjectConfig struct {
	SourceExtensions []string `toml:"source_extensions" validate:"dive,startswith=."`
	Exclude          []string `toml:"exclude"`
	// OutputDir holds generated tests. Empty writes them next to the source.
	OutputDir  string `toml:"output_dir"`
	TestSuffix string `toml:"test_suffix" validate:"omitempty,oneof=.test .spec"`
	// ImportSuffix, when set, is the extension relative imports must carry
	// (".js" for TypeScript ESM projects).
	ImportSuffix string `toml:"import_suffix" validate:"omitempty,startswith=."`
}

// GenerationConfig maps to the [generation] section.
type GenerationConfig struct {
	Provider    string        `toml:"provider"`
	Model       string        `toml:"model"`
	Temperature float64       `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `toml:"max_tokens" validate:"gte=0"`
	Timeout     time.Duration `toml:"timeout"`
	MaxAttempts int           `toml:"max_attempts" validate:"gte=0,lte=10"`
	BaseDelay   time.Duration `toml:"base_delay"`
	MaxDelay    time.Duration `toml:"max_delay"`
}

// HealingConfig maps to the [healing] section.
type HealingConfig struct {
	Enabled    bool `toml:"enabled"`
	MaxRetries int  `toml:"max_retries" validate:"gte=0,lte=20"`
	// AlwaysRun sends statically valid code through the test runner too.
	AlwaysRun bool `toml:"always_run"`
}

// RunnerConfig maps to the [runner] section.
type RunnerConfig struct {
	Framework string        `toml:"framework" validate:"omitempty,oneof=auto jest vitest mocha"`
	Timeout   time.Duration `toml:"timeout"`
	// Command replaces the default "npx <framework>" prefix.
	Command []string `toml:"command"`
}

// QualityConfig maps to the [quality] section.
type QualityConfig struct {
	AutoFix    bool     `toml:"auto_fix"`
	MinScore   int      `toml:"min_score" validate:"gte=0,lte=100"`
	MockExempt []string `toml:"mock_exempt"`
}

// BatchConfig maps to the [batch] section.
type BatchConfig struct {
	Concurrency   int  `toml:"concurrency" validate:"gte=0,lte=64"`
	StopOnFailure bool `toml:"stop_on_failure"`
}

// ProviderConfig maps to a [providers.<name>] section.
type ProviderConfig struct {
	// Command is the CLI binary for subprocess backends.
	Command string `toml:"command"`
	Model   string `toml:"model"`
	// BaseURL points the OpenAI backend at a compatible server.
	BaseURL           string `toml:"base_url" validate:"omitempty,url"`
	APIKeyEnv         string `toml:"api_key_env"`
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"gte=0"`
}
