package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// telegramAPIBase is the default Telegram Bot API base URL.
// Overridable in tests via TelegramClientConfig.BaseURL.
const telegramAPIBase = "https://api.telegram.org"

// TelegramClientConfig holds the configuration for creating a TelegramClient.
type TelegramClientConfig struct {
	BotToken string
	BaseURL  string // Override for testing; defaults to telegramAPIBase
}

// TelegramClient talks to the Telegram Bot API through BaseClient so all
// requests inherit the platform's resilience behavior (circuit breaker,
// transport retries, error mapping) and are testable with httptest.
type TelegramClient struct {
	base    *BaseClient
	token   string
	baseURL string
}

// NewTelegramClient creates a TelegramClient. An empty token is permitted:
// every call then fails with a configuration error, which callers treat as
// "skip this unit of work".
func NewTelegramClient(httpClient *http.Client, cfg TelegramClientConfig) *TelegramClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = telegramAPIBase
	}

	base := NewBaseClient(
		httpClient,
		"telegram",
		DefaultRetryPolicy(),
		"FreshTrack/1.0",
	)

	return &TelegramClient{
		base:    base,
		token:   cfg.BotToken,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Configured reports whether the client has a bot token.
func (c *TelegramClient) Configured() bool { return c.token != "" }

// Update is one entry of the Bot API inbound update stream, trimmed to the
// fields the command router consumes.
type Update struct {
	UpdateID     int64          `json:"update_id"`
	Message      *Message       `json:"message,omitempty"`
	MyChatMember *MemberUpdated `json:"my_chat_member,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Chat identifies the conversation an update came from.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// MemberUpdated signals the bot's own membership change in a chat. Status
// "left" or "kicked" means the bot was removed.
type MemberUpdated struct {
	Chat          Chat `json:"chat"`
	NewChatMember struct {
		Status string `json:"status"`
	} `json:"new_chat_member"`
}

// apiEnvelope is the uniform Bot API response wrapper.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// SendMessage delivers a text message to a chat and returns the provider
// message id, which the delivery worker stores for potential future
// edit/delete. silent maps to Telegram's disable_notification.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error) {
	if !c.Configured() {
		return "", types.NewAppError(types.ErrCodeGatewayUnconfigured,
			"telegram gateway is not configured", nil)
	}

	body := map[string]any{
		"chat_id":              chatID,
		"text":                 text,
		"parse_mode":           "HTML",
		"disable_notification": silent,
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", body, &result); err != nil {
		return "", err
	}

	return strconv.FormatInt(result.MessageID, 10), nil
}

// GetUpdates long-polls the inbound update stream. Development only: the Bot
// API allows a single consumer, so running this from more than one process
// instance loses updates.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	if !c.Configured() {
		return nil, types.NewAppError(types.ErrCodeGatewayUnconfigured,
			"telegram gateway is not configured", nil)
	}

	body := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "my_chat_member"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers the production inbound delivery URL with a shared
// secret Telegram echoes back on every webhook call.
func (c *TelegramClient) SetWebhook(ctx context.Context, url, secret string) error {
	if !c.Configured() {
		return types.NewAppError(types.ErrCodeGatewayUnconfigured,
			"telegram gateway is not configured", nil)
	}
	body := map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message", "my_chat_member"},
	}
	return c.call(ctx, "setWebhook", body, nil)
}

// DeleteWebhook unregisters the webhook (switching back to polling).
func (c *TelegramClient) DeleteWebhook(ctx context.Context) error {
	if !c.Configured() {
		return types.NewAppError(types.ErrCodeGatewayUnconfigured,
			"telegram gateway is not configured", nil)
	}
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

// call performs one Bot API method invocation and decodes the result into
// out when non-nil.
func (c *TelegramClient) call(ctx context.Context, method string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to marshal telegram request", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build telegram request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamTelegram,
			fmt.Sprintf("telegram %s failed", method), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamTelegram,
			"failed to read telegram response", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamTelegram,
			"failed to decode telegram response", err)
	}

	if !env.OK {
		// 4xx from the Bot API (bad chat id, bot blocked) is not transient.
		return types.NewAppError(types.ErrCodeUpstreamTelegram,
			fmt.Sprintf("telegram %s rejected: %s", method, env.Description), nil)
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return types.NewAppError(types.ErrCodeUpstreamTelegram,
				"failed to decode telegram result", err)
		}
	}

	return nil
}
