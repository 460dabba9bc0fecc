package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// mailAPIBase is the default Mailgun API base URL.
// Overridable in tests via MailClientConfig.BaseURL.
const mailAPIBase = "https://api.mailgun.net"

// MailClientConfig holds the configuration for creating a MailClient.
type MailClientConfig struct {
	APIKey   string
	Domain   string
	BaseURL  string // Override for testing; defaults to mailAPIBase
	FromAddr string
	FromName string
}

// MailClient sends transactional email through the Mailgun HTTP API via
// BaseClient, inheriting circuit breaking and transport retries.
type MailClient struct {
	base     *BaseClient
	apiKey   string
	domain   string
	baseURL  string
	fromAddr string
	fromName string
}

// NewMailClient creates a MailClient. Missing API key or domain is permitted:
// sends then fail with a configuration error, which callers treat as "skip".
func NewMailClient(httpClient *http.Client, cfg MailClientConfig) *MailClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mailAPIBase
	}

	base := NewBaseClient(
		httpClient,
		"mailgun",
		DefaultRetryPolicy(),
		"FreshTrack/1.0",
	)

	return &MailClient{
		base:     base,
		apiKey:   cfg.APIKey,
		domain:   cfg.Domain,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		fromAddr: cfg.FromAddr,
		fromName: cfg.FromName,
	}
}

// Configured reports whether the client can send.
func (c *MailClient) Configured() bool { return c.apiKey != "" && c.domain != "" }

// EmailMessage is one outbound email with both renderings; providers fall
// back to the text part for clients that refuse HTML.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Send delivers the message and returns the provider message id.
func (c *MailClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if !c.Configured() {
		return "", types.NewAppError(types.ErrCodeGatewayUnconfigured,
			"mail gateway is not configured", nil)
	}

	form := url.Values{}
	form.Set("from", fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr))
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.HTMLBody)
	form.Set("text", msg.TextBody)

	endpoint := fmt.Sprintf("%s/v3/%s/messages", c.baseURL, c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build mail request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamMail, "mail send failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamMail,
			"failed to read mail response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(types.ErrCodeUpstreamMail,
			fmt.Sprintf("mail provider rejected send: %d", resp.StatusCode), nil)
	}

	var result struct {
		ID string `json:"id"`
	}
	// Best effort: a missing id is not a delivery failure.
	_ = json.Unmarshal(body, &result)

	return result.ID, nil
}
