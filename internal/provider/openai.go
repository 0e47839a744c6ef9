package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const defaultHTTPTimeout = 120 * time.Second

// OpenAIClient speaks the OpenAI-compatible chat completions API. OpenAI,
// OpenRouter, DeepSeek, xAI and NVIDIA NIM all share this wire shape and
// differ only in base URL and key. Retries use exponential backoff with
// jitter; per-model circuit breakers isolate a misbehaving model.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxTokens  int
	maxRetries int
	logger     *slog.Logger
	sleepFn    func(context.Context, time.Duration) // for testing

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Completion]
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(cl *OpenAIClient) { cl.httpClient = c }
}

// WithMaxTokens caps the completion length requested from the provider.
func WithMaxTokens(n int) OpenAIOption {
	return func(cl *OpenAIClient) {
		if n > 0 {
			cl.maxTokens = n
		}
	}
}

// WithMaxRetries bounds retry attempts for retryable errors.
func WithMaxRetries(n int) OpenAIOption {
	return func(cl *OpenAIClient) {
		if n >= 0 {
			cl.maxRetries = n
		}
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) OpenAIOption {
	return func(cl *OpenAIClient) { cl.logger = l }
}

// WithSleepFunc overrides the retry sleep function (for testing).
func WithSleepFunc(fn func(context.Context, time.Duration)) OpenAIOption {
	return func(cl *OpenAIClient) { cl.sleepFn = fn }
}

// defaultSleep respects context cancellation while waiting.
func defaultSleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(baseURL, apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxTokens:  1024,
		maxRetries: 3,
		logger:     slog.Default(),
		sleepFn:    defaultSleep,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[*Completion]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one chat completion, with retry and circuit breaking
// handled transparently.
func (c *OpenAIClient) Complete(ctx context.Context, model, prompt string) (*Completion, error) {
	cb := c.getOrCreateBreaker(model)

	comp, err := cb.Execute(func() (*Completion, error) {
		return c.completeWithRetry(ctx, model, prompt)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &APIError{
				Type:    ErrOverloaded,
				Message: fmt.Sprintf("circuit breaker open for model %s", model),
			}
		}
		return nil, err
	}
	return comp, nil
}

func (c *OpenAIClient) completeWithRetry(ctx context.Context, model, prompt string) (*Completion, error) {
	for attempt := 0; ; attempt++ {
		comp, err := c.doRequest(ctx, model, prompt)
		if err == nil {
			return comp, nil
		}

		apiErr, ok := err.(*APIError)
		if !ok {
			// Context cancellation or transport-level failure.
			return nil, err
		}
		if !apiErr.Retryable() || attempt >= c.maxRetries {
			return nil, apiErr
		}

		delay := retryDelay(apiErr, attempt)
		c.logger.Warn("retrying provider request",
			"model", model,
			"error_type", apiErr.Type.String(),
			"attempt", attempt+1,
			"delay", delay,
		)
		c.sleepFn(ctx, delay)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

func (c *OpenAIClient) doRequest(ctx context.Context, model, prompt string) (*Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Type: ErrMalformedResponse, Message: fmt.Sprintf("read response body: %v", err)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &APIError{Type: ErrMalformedResponse, Message: fmt.Sprintf("parse response JSON: %v", err)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &APIError{Type: ErrMalformedResponse, Message: "response contains no choices"}
	}

	return &Completion{
		Text: chatResp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		},
	}, nil
}

// retryDelay computes exponential backoff with jitter. Rate limits honor
// the server's Retry-After when present.
func retryDelay(err *APIError, attempt int) time.Duration {
	if err.Type == ErrRateLimit && err.RetryAfter > 0 {
		return jitter(err.RetryAfter)
	}
	base := time.Second * time.Duration(1<<uint(attempt))
	if base > 16*time.Second {
		base = 16 * time.Second
	}
	return jitter(base)
}

// jitter scales a delay by [0.5, 1.5) to avoid thundering herd.
func jitter(d time.Duration) time.Duration {
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(d) * factor)
}

// getOrCreateBreaker returns the circuit breaker for a model, creating
// one on first use. Per-model breakers isolate failures.
func (c *OpenAIClient) getOrCreateBreaker(model string) *gobreaker.CircuitBreaker[*Completion] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[model]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[*Completion](gobreaker.Settings{
		Name:        model,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Client-side errors are not provider failures.
			apiErr, ok := err.(*APIError)
			if !ok {
				return false
			}
			switch apiErr.Type {
			case ErrAuth, ErrBadRequest:
				return true
			default:
				return false
			}
		},
	})
	c.breakers[model] = cb
	return cb
}
