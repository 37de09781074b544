package provider

import (
	"context"
	"sync"
)

// Compile-time check that MockProvider implements Provider.
var _ Provider = (*MockProvider)(nil)

// MockCall records one Generate call.
type MockCall struct {
	Prompt string
	Opts   GenerateOpts
}

// MockProvider is a scripted Provider for tests. Generate consumes
// Responses and Errors in order; when both are exhausted it returns
// DefaultResponse. It is safe for concurrent use.
type MockProvider struct {
	ProviderName string
	Unavailable  bool

	// GenerateFunc, when set, replaces the scripted behavior.
	GenerateFunc func(ctx context.Context, prompt string, opts GenerateOpts) (string, error)

	// Responses and Errors are consumed pairwise: call i returns
	// Responses[i] (or "") and Errors[i] (or nil).
	Responses       []string
	Errors          []error
	DefaultResponse string

	mu    sync.Mutex
	calls []MockCall
}

// NewMockProvider returns a MockProvider named name that replies with
// responses in order.
func NewMockProvider(name string, responses ...string) *MockProvider {
	return &MockProvider{ProviderName: name, Responses: responses, DefaultResponse: "mock output"}
}

// Name returns ProviderName.
func (m *MockProvider) Name() string { return m.ProviderName }

// IsAvailable returns !Unavailable.
func (m *MockProvider) IsAvailable(context.Context) bool { return !m.Unavailable }

// Generate records the call and returns the next scripted reply.
func (m *MockProvider) Generate(ctx context.Context, prompt string, opts GenerateOpts) (string, error) {
	m.mu.Lock()
	i := len(m.calls)
	m.calls = append(m.calls, MockCall{Prompt: prompt, Opts: opts})
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, opts)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if i < len(m.Responses) || i < len(m.Errors) {
		var resp string
		var err error
		if i < len(m.Responses) {
			resp = m.Responses[i]
		}
		if i < len(m.Errors) {
			err = m.Errors[i]
		}
		return resp, err
	}
	return m.DefaultResponse, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of Generate calls so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
