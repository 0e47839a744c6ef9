package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic messages API, which uses its own
// auth header and response shape.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxTokens  int
}

func NewAnthropicClient(baseURL, apiKey string, maxTokens int) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxTokens:  maxTokens,
	}
}

// WithHTTPClient swaps the HTTP client (for testing).
func (c *AnthropicClient) WithHTTPClient(hc *http.Client) *AnthropicClient {
	c.httpClient = hc
	return c
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) Complete(ctx context.Context, model, prompt string) (*Completion, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
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

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{Type: ErrMalformedResponse, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if result.Error != nil {
		return nil, &APIError{Type: ErrUnknown, Message: result.Error.Message}
	}
	if len(result.Content) == 0 || result.Content[0].Text == "" {
		return nil, &APIError{Type: ErrMalformedResponse, Message: "empty response"}
	}

	return &Completion{
		Text: result.Content[0].Text,
		Usage: Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}, nil
}
