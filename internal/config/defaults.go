package config

import "time"

// NewDefaults returns a Config populated with all default values.
func NewDefaults() *Config {
	return &Config{
		Project: ProjectConfig{
			SourceExtensions: []string{".ts", ".tsx", ".js", ".jsx"},
			Exclude: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/build/**",
				"**/coverage/**",
				"**/__mocks__/**",
				"**/.git/**",
				"**/*.d.ts",
			},
			TestSuffix: ".test",
		},
		Generation: GenerationConfig{
			Provider:    "claude",
			Temperature: 0.2,
			MaxTokens:   8192,
			Timeout:     120 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    60 * time.Second,
		},
		Healing: HealingConfig{
			Enabled:    true,
			MaxRetries: 3,
		},
		Runner: RunnerConfig{
			Framework: "auto",
			Timeout:   60 * time.Second,
		},
		Quality: QualityConfig{
			AutoFix:  true,
			MinScore: 70,
			MockExempt: []string{
				"jest", "vitest", "mocha", "chai", "sinon", "supertest",
				"@jest/*", "@vitest/*", "@testing-library/*", "@types/*", "node:test",
			},
		},
		Batch: BatchConfig{
			Concurrency: 1,
		},
		Providers: map[string]ProviderConfig{
			"claude": {Command: "claude"},
			"openai": {APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini", RequestsPerMinute: 60},
		},
	}
}
