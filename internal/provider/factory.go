package provider

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/config"
)

// EnvFunc looks up an environment variable. os.Getenv satisfies it.
type EnvFunc func(string) string

// FromConfig builds the provider called name from its [providers.<name>]
// section. "claude", or any section with a command, runs a CLI; "openai",
// or any section with a base_url or api_key_env, talks to a chat
// completions endpoint. A nil getenv reads the process environment.
func FromConfig(name string, pc config.ProviderConfig, getenv EnvFunc, logger *log.Logger) (Provider, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("build provider %q: %w", name, ErrInvalidName)
	}

	switch {
	case name == "claude" || (pc.Command != "" && pc.BaseURL == "" && pc.APIKeyEnv == ""):
		return NewClaudeCLI(ClaudeConfig{Command: pc.Command, Model: pc.Model}, logger), nil
	case name == "openai" || pc.BaseURL != "" || pc.APIKeyEnv != "":
		var key string
		if pc.APIKeyEnv != "" {
			key = getenv(pc.APIKeyEnv)
		}
		return NewOpenAI(OpenAIConfig{
			Name:              name,
			APIKey:            key,
			BaseURL:           pc.BaseURL,
			Model:             pc.Model,
			RequestsPerMinute: pc.RequestsPerMinute,
		}, logger), nil
	default:
		return nil, fmt.Errorf("build provider %q: section needs a command, base_url or api_key_env: %w", name, ErrNotFound)
	}
}

// RegistryFromConfig registers every configured provider. A section that
// cannot be built fails the whole registry.
func RegistryFromConfig(providers map[string]config.ProviderConfig, getenv EnvFunc, logger *log.Logger) (*Registry, error) {
	reg := NewRegistry()
	for name, pc := range providers {
		p, err := FromConfig(name, pc, getenv, logger)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
