// Package llm is the text generation client. One Client talks to one
// provider (Anthropic Messages API or an OpenAI-compatible chat
// completions API) behind a circuit breaker, a retry loop and a bulkhead.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/llm")

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
)

var defaultBaseURLs = map[string]string{
	ProviderAnthropic: "https://api.anthropic.com/v1",
	ProviderOpenAI:    "https://api.openai.com/v1",
	ProviderGroq:      "https://api.groq.com/openai/v1",
}

// Options selects and tunes the provider.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Resilience  resilience.Config
}

type usage struct {
	prompt     int
	completion int
}

// provider knows the wire format of one API family.
type provider interface {
	endpoint(baseURL string) string
	headers(h http.Header, apiKey string)
	body(model, prompt, system string, maxTokens int, temperature float64) any
	parse(raw []byte) (string, usage, error)
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm api returned status %d: %s", e.Code, e.Body)
}

// Transient reports whether retrying may help.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client generates text through one provider.
type Client struct {
	httpClient *http.Client
	provider   provider
	opts       Options
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New creates a Client. The provider name is validated here so a typo in
// the configuration fails at startup.
func New(httpClient *http.Client, opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Client, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Provider))

	var p provider
	switch name {
	case ProviderAnthropic:
		p = anthropicProvider{}
	case ProviderOpenAI, ProviderGroq:
		p = openAIProvider{}
	default:
		return nil, &domain.ErrValidation{Field: "LLM_PROVIDER", Message: fmt.Sprintf("unknown provider %q", opts.Provider)}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURLs[name]
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.Resilience.Retryable == nil {
		opts.Resilience.Retryable = retryable
	}
	opts.Provider = name

	return &Client{
		httpClient: httpClient,
		provider:   p,
		opts:       opts,
		baseURL:    baseURL,
		cb:         resilience.NewCircuitBreaker("llm"),
		bulkhead:   resilience.NewBulkhead(opts.Resilience.MaxConcurrency),
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Generate sends prompt (and an optional system prompt) and returns the
// model's text.
func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.opts.Provider),
		attribute.String("llm.model", c.opts.Model),
	)

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "llm bulkhead"}
	}
	defer c.bulkhead.Release()

	text, err := resilience.Execute(c.cb, func() (string, error) {
		var out string
		err := resilience.RetryWithBackoff(ctx, c.opts.Resilience, func() error {
			var callErr error
			out, callErr = c.call(ctx, prompt, system)
			return callErr
		})
		return out, err
	})
	if err != nil {
		span.RecordError(err)
		if c.metrics != nil {
			c.metrics.IncrExternalError("llm")
		}
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return "", err
		}
		return "", &domain.ErrExternalService{Service: "llm", Err: err}
	}
	return text, nil
}

// BreakerState exposes the circuit breaker state for health checks.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

func (c *Client) call(ctx context.Context, prompt, system string) (string, error) {
	payload, err := json.Marshal(c.provider.body(c.opts.Model, prompt, system, c.opts.MaxTokens, c.opts.Temperature))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.endpoint(c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.provider.headers(req.Header, c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: truncate(string(raw), 300)}
	}

	text, u, err := c.provider.parse(raw)
	if err != nil {
		return "", err
	}
	if c.metrics != nil {
		c.metrics.RecordTokens(u.prompt, u.completion)
	}
	c.logger.Debug("llm call completed",
		zap.String("provider", c.opts.Provider),
		zap.Int("prompt_tokens", u.prompt),
		zap.Int("completion_tokens", u.completion),
	)
	return text, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return resilience.IsTransient(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
