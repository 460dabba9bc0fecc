package bot

import (
	"encoding/json"
	"net/http"

	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// secretHeader carries the webhook secret the Bot API echoes back on every
// delivery when one was registered via setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook receives Bot API update deliveries over HTTP.
type Webhook struct {
	router *Router
	secret string
	logger types.Logger
}

// NewWebhook creates a Webhook validating deliveries against secret. An
// empty secret disables validation.
func NewWebhook(router *Router, secret string, logger types.Logger) *Webhook {
	return &Webhook{router: router, secret: secret, logger: logger}
}

// ServeHTTP decodes one update and hands it to the router. The Bot API
// retries non-200 responses, so routing failures still answer 200 and a
// malformed body is the only 4xx.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" && r.Header.Get(secretHeader) != w.secret {
		w.logger.Warn("webhook delivery with bad secret", "remote", r.RemoteAddr)
		rw.WriteHeader(http.StatusUnauthorized)
		return
	}

	var u external.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	w.router.HandleUpdate(r.Context(), &u)
	rw.WriteHeader(http.StatusOK)
}
