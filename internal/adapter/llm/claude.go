package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/httpx"
)

// ClaudeClient talks to Anthropic's messages API.
type ClaudeClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClaudeClient constructs a client bound to apiKey. baseURL defaults
// to the public Anthropic endpoint and model to claude-3-5-haiku when empty.
func NewClaudeClient(apiKey, baseURL, model string) *ClaudeClient {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &ClaudeClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		http:    httpx.NewTracedClient(30 * time.Second),
	}
}

func (c *ClaudeClient) Kind() domain.LLMKind { return domain.LLMClaude }

func (c *ClaudeClient) Generate(ctx context.Context, prompt string, params map[string]any) (string, error) {
	reqBody := map[string]any{
		"model":      c.model,
		"max_tokens": intParam(params, "max_tokens", 512),
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("claude status %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Content) == 0 {
		return "", fmt.Errorf("claude returned no content")
	}
	return decoded.Content[0].Text, nil
}
