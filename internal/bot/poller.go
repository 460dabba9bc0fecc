package bot

import (
	"context"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/external"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// UpdateSource is the slice of the chat gateway the poller consumes.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]external.Update, error)
}

// Poller consumes updates via long polling, for local development where no
// public webhook URL exists. Run one poller per bot token: concurrent
// getUpdates calls conflict with each other and with a registered webhook.
type Poller struct {
	source  UpdateSource
	router  *Router
	timeout time.Duration
	logger  types.Logger
}

// NewPoller creates a Poller with a 30s long-poll timeout.
func NewPoller(source UpdateSource, router *Router, logger types.Logger) *Poller {
	return &Poller{source: source, router: router, timeout: 30 * time.Second, logger: logger}
}

// Run polls until ctx is canceled. A poll error backs off briefly and
// retries; the consumed offset only advances past updates that were handed
// to the router.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("poll failed, backing off", "error", err.Error())
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for i := range updates {
			p.router.HandleUpdate(ctx, &updates[i])
			offset = updates[i].UpdateID + 1
		}
	}
}
