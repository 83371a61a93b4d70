package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTelegramClient_SendText(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	c := NewTelegramClient("tok", server.URL)
	err := c.SendText(context.Background(), "chat1", "hello")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(gotPath, "/bottok/sendMessage"))
}

func TestTelegramClient_SendText_SplitsLongMessages(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	c := NewTelegramClient("tok", server.URL)
	long := strings.Repeat("a", maxMessageLength+100)
	err := c.SendText(context.Background(), "chat1", long)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestTelegramClient_SendText_PermanentAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer server.Close()

	c := NewTelegramClient("tok", server.URL)
	err := c.SendText(context.Background(), "bad-chat", "hello")
	require.Error(t, err)
}

func TestTelegramClient_SendDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/sendDocument"))
		require.NoError(t, r.ParseMultipartForm(10<<20))
		require.Equal(t, "chat1", r.FormValue("chat_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	c := NewTelegramClient("tok", server.URL)
	err := c.SendDocument(context.Background(), "chat1", []byte("%PDF-1.4 fake"), "report.pdf", "weekly report")
	require.NoError(t, err)
}
