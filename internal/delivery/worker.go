package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// NotificationQueue is the slice of the notification store the worker drives
// the state machine through.
type NotificationQueue interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*types.Notification, error)
	MarkSending(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string, providerMsgID string, at time.Time) error
	MarkRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// BatchStatusSource checks whether a notification's batch is still worth
// alerting about at send time.
type BatchStatusSource interface {
	GetBatchStatus(ctx context.Context, batchID string) (types.BatchStatus, error)
}

// RecipientLookup resolves a recipient's current addresses at send time so a
// just-linked chat or a changed email takes effect without re-evaluation.
type RecipientLookup interface {
	GetByID(ctx context.Context, userID string) (*types.Recipient, error)
}

// Worker sweeps due notifications through dispatch. One sweep handles at
// most batchSize records; the scheduler calls Sweep on an interval.
type Worker struct {
	queue      NotificationQueue
	batches    BatchStatusSource
	recipients RecipientLookup
	dispatcher *Dispatcher
	policy     RetryPolicy

	batchSize       int
	dispatchTimeout time.Duration
	clock           types.Clock
	logger          types.Logger
}

// WorkerConfig holds the dependencies and tuning for a Worker.
type WorkerConfig struct {
	Queue           NotificationQueue
	Batches         BatchStatusSource
	Recipients      RecipientLookup
	Dispatcher      *Dispatcher
	Policy          RetryPolicy
	BatchSize       int
	DispatchTimeout time.Duration
	Clock           types.Clock
	Logger          types.Logger
}

// NewWorker creates a Worker. BatchSize defaults to 100 and DispatchTimeout
// to 30s when unset.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	return &Worker{
		queue:           cfg.Queue,
		batches:         cfg.Batches,
		recipients:      cfg.Recipients,
		dispatcher:      cfg.Dispatcher,
		policy:          cfg.Policy,
		batchSize:       cfg.BatchSize,
		dispatchTimeout: cfg.DispatchTimeout,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
	}
}

// Sweep picks up every due notification (pending, or retry whose backoff has
// elapsed) and attempts delivery. Returns the number delivered. A failure on
// one record is logged and never blocks the rest of the sweep.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	now := w.clock.Now()
	due, err := w.queue.ListDue(ctx, now, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("sweep: list due: %w", err)
	}

	delivered := 0
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := w.process(ctx, n); err != nil {
			w.logger.Error("notification processing failed",
				"notification_id", n.ID, "channel", string(n.Channel), "error", err.Error())
			continue
		}
		if n.Status == types.StatusDelivered {
			delivered++
		}
	}

	if len(due) > 0 {
		w.logger.Info("delivery sweep complete", "due", len(due), "delivered", delivered)
	}
	return delivered, nil
}

// process drives one notification through a single state transition. The
// returned error covers store failures only; a gateway failure is absorbed
// into the retry schedule.
func (w *Worker) process(ctx context.Context, n *types.Notification) error {
	// A batch collected or written off while the notification sat in the
	// queue resolves it without touching the gateway.
	if n.BatchID != nil {
		status, err := w.batches.GetBatchStatus(ctx, *n.BatchID)
		if err != nil {
			return fmt.Errorf("batch status: %w", err)
		}
		if status.Resolved() {
			if err := w.queue.MarkFailed(ctx, n.ID, "already resolved"); err != nil {
				return fmt.Errorf("mark failed: %w", err)
			}
			n.Status = types.StatusFailed
			return nil
		}
	}

	if err := w.queue.MarkSending(ctx, n.ID); err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	n.Status = types.StatusSending

	rcpt, err := w.resolveRecipient(ctx, n)
	if err != nil {
		return w.handleFailure(ctx, n, err)
	}

	dctx, cancel := context.WithTimeout(ctx, w.dispatchTimeout)
	msgID, err := w.dispatcher.Dispatch(dctx, n, rcpt)
	cancel()
	if err != nil {
		return w.handleFailure(ctx, n, err)
	}

	at := w.clock.Now()
	if err := w.queue.MarkDelivered(ctx, n.ID, msgID, at); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	n.Status = types.StatusDelivered
	return nil
}

func (w *Worker) resolveRecipient(ctx context.Context, n *types.Notification) (*types.Recipient, error) {
	if n.UserID == nil {
		return nil, nil
	}
	return w.recipients.GetByID(ctx, *n.UserID)
}

// handleFailure applies the retry schedule: schedule the next attempt when
// rungs remain, otherwise mark the notification permanently failed with the
// final cause recorded.
func (w *Worker) handleFailure(ctx context.Context, n *types.Notification, cause error) error {
	delay, ok := w.policy.NextDelay(n.RetryCount)
	if !ok {
		reason := fmt.Sprintf("max retries exceeded: %s", cause.Error())
		if err := w.queue.MarkFailed(ctx, n.ID, reason); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		n.Status = types.StatusFailed
		w.logger.Warn("notification permanently failed",
			"notification_id", n.ID, "retries", n.RetryCount, "error", cause.Error())
		return nil
	}

	next := w.clock.Now().Add(delay)
	if err := w.queue.MarkRetry(ctx, n.ID, n.RetryCount+1, next, cause.Error()); err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	n.Status = types.StatusRetry
	n.RetryCount++
	w.logger.Warn("delivery attempt failed, scheduled retry",
		"notification_id", n.ID, "retry", n.RetryCount, "next_attempt", next.Format(time.RFC3339),
		"error", cause.Error())
	return nil
}
