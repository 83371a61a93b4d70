// Package notify fans signals out to chat channels. TelegramClient is
// the sole implementation, grounded on the original Telegram bot client
// (text + document delivery, retried on transient failure).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"

	"github.com/peter0524/service-fabric/internal/adapter/observability"
	"github.com/peter0524/service-fabric/internal/httpx"
)

const maxMessageLength = 4096

// TelegramClient implements domain.NotificationAdapter over the
// Telegram Bot HTTP API.
type TelegramClient struct {
	botToken string
	baseURL  string
	http     *http.Client
}

// NewTelegramClient constructs a client bound to botToken. baseURL
// defaults to the public Telegram Bot API when empty.
func NewTelegramClient(botToken, baseURL string) *TelegramClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramClient{
		botToken: botToken,
		baseURL:  baseURL,
		http:     httpx.NewTracedClient(30 * time.Second),
	}
}

func (c *TelegramClient) apiURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendText delivers message to channelID, splitting it across multiple
// calls if it exceeds Telegram's 4096-character message limit, and
// retrying transient failures with exponential backoff.
func (c *TelegramClient) SendText(ctx context.Context, channelID, message string) error {
	for len(message) > 0 {
		chunk := message
		if len(chunk) > maxMessageLength {
			chunk = chunk[:maxMessageLength]
		}
		message = message[len(chunk):]

		if err := c.sendTextChunk(ctx, channelID, chunk); err != nil {
			observability.RecordNotificationSent("telegram", err)
			return err
		}
	}
	observability.RecordNotificationSent("telegram", nil)
	return nil
}

func (c *TelegramClient) sendTextChunk(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  channelID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("sendMessage"), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req)
	})
}

// SendDocument delivers content as a file attachment named filename
// with the given caption. The attachment's MIME type is sniffed from
// its content rather than trusted from the filename extension.
func (c *TelegramClient) SendDocument(ctx context.Context, channelID string, content []byte, filename, caption string) error {
	mtype := mimetype.Detect(content)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", channelID); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="document"; filename=%q`, filename)},
		"Content-Type":        {mtype.String()},
	})
	if err != nil {
		return fmt.Errorf("create document part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write document content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	payload := buf.Bytes()
	contentType := writer.FormDataContentType()

	err = c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("sendDocument"), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		return c.do(req)
	})
	observability.RecordNotificationSent("telegram", err)
	return err
}

func (c *TelegramClient) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("telegram status %d: %s", resp.StatusCode, string(raw)))
	}

	var decoded telegramResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return backoff.Permanent(fmt.Errorf("decode telegram response: %w", err))
	}
	if !decoded.OK {
		return backoff.Permanent(fmt.Errorf("telegram API error: %s", decoded.Description))
	}
	return nil
}

func (c *TelegramClient) retry(ctx context.Context, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 5 * time.Second
	expo.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(op, backoff.WithContext(expo, ctx))
}
