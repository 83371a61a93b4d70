package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer x", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello from openai"}},
			},
		})
	}))
	defer server.Close()

	c := NewOpenAIClient("x", server.URL, "")
	out, err := c.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "hello from openai", out)
}

func TestOpenAIClient_Generate_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	c := NewOpenAIClient("x", server.URL, "")
	_, err := c.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
}

func TestOpenAIClient_Kind(t *testing.T) {
	c := NewOpenAIClient("x", "", "")
	require.Equal(t, "openai", string(c.Kind()))
}
