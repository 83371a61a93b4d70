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

// HyperClovaClient talks to Naver's HyperCLOVA X chat-completions API.
type HyperClovaClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewHyperClovaClient constructs a client bound to apiKey. baseURL
// defaults to the public HyperCLOVA X endpoint when empty.
func NewHyperClovaClient(apiKey, baseURL string) *HyperClovaClient {
	if baseURL == "" {
		baseURL = "https://clovastudio.stream.ntruss.com"
	}
	return &HyperClovaClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpx.NewTracedClient(30 * time.Second),
	}
}

func (c *HyperClovaClient) Kind() domain.LLMKind { return domain.LLMHyperClova }

func (c *HyperClovaClient) Generate(ctx context.Context, prompt string, params map[string]any) (string, error) {
	reqBody := map[string]any{
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"topP":        floatParam(params, "top_p", 0.8),
		"temperature": floatParam(params, "temperature", 0.5),
		"maxTokens":   intParam(params, "max_tokens", 512),
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/testapp/v1/chat-completions/HCX-003"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return "", fmt.Errorf("hyperclova status %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Result struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return decoded.Result.Message.Content, nil
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return fallback
}

func intParam(params map[string]any, key string, fallback int) int {
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
		if i, ok := v.(int); ok {
			return i
		}
	}
	return fallback
}
