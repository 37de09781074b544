// Package provider abstracts the text-generation backends testsmith drives.
//
// A Provider turns a prompt into text. Failures are *apperr.Error values of
// kind ProviderError, ProviderNotAvailable or TimeoutError, tagged with the
// backend name and a reason, so Retry can decide what to retry without
// string matching.
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// nameRe validates provider names: alphanumeric characters and hyphens only.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*$`)

// ErrNotFound is returned by Registry.Get when no provider with the
// requested name has been registered.
var ErrNotFound = errors.New("provider not found")

// ErrDuplicateName is returned by Registry.Register when a provider with the
// same name is already present.
var ErrDuplicateName = errors.New("provider already registered")

// ErrInvalidName is returned by Registry.Register when the provider name is
// empty or contains invalid characters.
var ErrInvalidName = errors.New("invalid provider name")

// GenerateOpts tunes one generation call. Zero values mean "backend
// default".
type GenerateOpts struct {
	Temperature *float64
	MaxTokens   int
	// Timeout bounds the call. The caller's context still applies.
	Timeout time.Duration
	Model   string
}

// Provider is a text-generation backend.
type Provider interface {
	// Name returns the backend identifier, e.g. "claude" or "openai".
	Name() string

	// IsAvailable reports whether the backend can be called at all: its CLI
	// is on PATH or its credentials are present. It does not make a network
	// call.
	IsAvailable(ctx context.Context) bool

	// Generate returns the backend's reply to prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOpts) (string, error)
}

// Registry stores named providers. Providers are registered at startup and
// looked up by name afterwards; it is safe for concurrent reads once
// registration is complete.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under its Name().
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("register provider: %w", ErrInvalidName)
	}
	name := p.Name()
	if name == "" || !nameRe.MatchString(name) {
		return fmt.Errorf("register provider %q: %w", name, ErrInvalidName)
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("register provider %q: %w", name, ErrDuplicateName)
	}
	r.providers[name] = p
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("get provider %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}
