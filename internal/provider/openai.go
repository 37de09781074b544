package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
)

// Compile-time check that OpenAI implements Provider.
var _ Provider = (*OpenAI)(nil)

const defaultSystemPrompt = "You are a senior engineer who writes focused, deterministic unit tests. Reply with code only."

// OpenAIConfig configures an OpenAI-compatible chat completion backend.
type OpenAIConfig struct {
	// Name overrides the provider name (default "openai"), so several
	// compatible servers can be registered side by side.
	Name   string
	APIKey string
	// BaseURL points at a compatible server, e.g. "http://localhost:11434/v1".
	BaseURL string
	Model   string
	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
	SystemPrompt      string
}

// OpenAI generates text through the chat completions API.
type OpenAI struct {
	name    string
	config  OpenAIConfig
	client  *openai.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewOpenAI returns an OpenAI provider. A nil logger discards output.
func NewOpenAI(config OpenAIConfig, logger *log.Logger) *OpenAI {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}

	p := &OpenAI{
		name:   config.Name,
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logging.OrDiscard(logger),
	}
	if p.name == "" {
		p.name = "openai"
	}
	if config.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}
	return p
}

// Name returns the configured provider name.
func (o *OpenAI) Name() string { return o.name }

// IsAvailable reports whether an API key is set. Servers reached through a
// custom BaseURL often need none, so a BaseURL alone also counts.
func (o *OpenAI) IsAvailable(context.Context) bool {
	return o.config.APIKey != "" || o.config.BaseURL != ""
}

// Generate sends prompt as a single user message.
func (o *OpenAI) Generate(ctx context.Context, prompt string, opts GenerateOpts) (string, error) {
	if !o.IsAvailable(ctx) {
		return "", &apperr.Error{
			Kind:     apperr.KindProviderNotAvailable,
			Op:       o.name + ".generate",
			Provider: o.name,
			Err:      errors.New("no API key configured"),
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", o.classify(ctx, err)
		}
	}

	model := opts.Model
	if model == "" {
		model = o.config.Model
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}

	o.logger.Debug("requesting chat completion", "provider", o.name, "model", model, "prompt_bytes", len(prompt))

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", o.classify(ctx, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperr.ProviderFailure(o.name, apperr.ReasonBadResponse, errors.New("no choices in reply"))
	}

	o.logger.Debug("chat completion finished",
		"provider", o.name,
		"finish_reason", resp.Choices[0].FinishReason,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return resp.Choices[0].Message.Content, nil
}

// classify maps a client error onto the provider taxonomy.
func (o *OpenAI) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.ProviderFailure(o.name, apperr.ReasonTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return apperr.ProviderFailure(o.name, reasonForStatus(status), fmt.Errorf("chat completion: %w", err))
}

func reasonForStatus(status int) apperr.Reason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.ReasonAuth
	case status == http.StatusTooManyRequests:
		return apperr.ReasonRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return apperr.ReasonTimeout
	case status >= 500 || status == 0:
		return apperr.ReasonUnavailable
	default:
		return apperr.ReasonBadResponse
	}
}
