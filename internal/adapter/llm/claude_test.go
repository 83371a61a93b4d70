package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "x", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"text": "hello from claude"}},
		})
	}))
	defer server.Close()

	c := NewClaudeClient("x", server.URL, "")
	out, err := c.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "hello from claude", out)
}

func TestClaudeClient_Generate_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
	}))
	defer server.Close()

	c := NewClaudeClient("x", server.URL, "")
	_, err := c.Generate(context.Background(), "hi", nil)
	require.Error(t, err)
}
