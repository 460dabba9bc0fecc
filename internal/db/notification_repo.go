package db

import (
	"context"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// NotificationRepository provides data access for the notifications table,
// the single source of truth for the delivery state machine. Records are
// append-only: status transitions only, never deleted.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateIfNotDuplicate performs an idempotent insert keyed on the dedup
// fingerprint using INSERT ... ON CONFLICT DO NOTHING against the partial
// unique index over non-failed records. Returns whether a new record was
// created. This closes the check-then-act race under concurrent evaluation;
// the Deduplicator's read-side check is an optimization, the index is the
// enforcement.
func (r *NotificationRepository) CreateIfNotDuplicate(ctx context.Context, n *types.Notification) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, hotel_id, user_id, batch_id, rule_id, type, channel, priority,
		  status, title, message, dedup_fingerprint, retry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, COALESCE($13, NOW()))
		 ON CONFLICT (dedup_fingerprint)
		   WHERE status <> 'failed' AND dedup_fingerprint <> ''
		 DO NOTHING`,
		n.ID,
		n.HotelID,
		n.UserID,
		n.BatchID,
		n.RuleID,
		string(n.Type),
		string(n.Channel),
		int(n.Priority),
		string(types.StatusPending),
		n.Title,
		n.Message,
		n.DedupFingerprint,
		nilIfZeroTime(n.CreatedAt),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExistsActiveFingerprint reports whether a non-failed record with the given
// fingerprint was created within the rolling window ending now.
func (r *NotificationRepository) ExistsActiveFingerprint(ctx context.Context, fingerprint string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE dedup_fingerprint = $1
		     AND status <> 'failed'
		     AND created_at > $2
		 )`,
		fingerprint, since,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check fingerprint", err)
	}
	return exists, nil
}

// ListDue returns up to limit deliverable records: pending records plus retry
// records whose next_retry_at has passed, ordered by priority descending then
// creation time ascending. The worker drains these sequentially.
func (r *NotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*types.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, hotel_id, user_id, batch_id, rule_id, type, channel,
		        priority, status, title, message, dedup_fingerprint,
		        retry_count, next_retry_at, failure_reason,
		        provider_message_id, created_at, delivered_at
		 FROM notifications
		 WHERE status = 'pending'
		    OR (status = 'retry' AND next_retry_at <= $1)
		 ORDER BY priority DESC, created_at ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due notifications", err)
	}
	defer rows.Close()

	var out []*types.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "notification rows iteration", err)
	}

	return out, nil
}

// MarkSending transitions a record to SENDING before a dispatch attempt.
func (r *NotificationRepository) MarkSending(ctx context.Context, id string) error {
	return r.updateStatus(ctx,
		`UPDATE notifications SET status = 'sending' WHERE id = $1`, id)
}

// MarkDelivered transitions a record to the terminal DELIVERED state,
// recording the provider message id and delivery timestamp.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, providerMsgID string, at time.Time) error {
	return r.updateStatus(ctx,
		`UPDATE notifications
		 SET status = 'delivered', provider_message_id = $2, delivered_at = $3,
		     failure_reason = NULL, next_retry_at = NULL
		 WHERE id = $1`,
		id, nilIfEmpty(providerMsgID), at)
}

// MarkRetry transitions a record to RETRY, persisting the incremented retry
// count, the scheduled next attempt time, and the failure reason.
func (r *NotificationRepository) MarkRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, reason string) error {
	return r.updateStatus(ctx,
		`UPDATE notifications
		 SET status = 'retry', retry_count = $2, next_retry_at = $3,
		     failure_reason = $4
		 WHERE id = $1`,
		id, retryCount, nextRetryAt, reason)
}

// MarkFailed transitions a record to the terminal FAILED state with a reason.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.updateStatus(ctx,
		`UPDATE notifications
		 SET status = 'failed', failure_reason = $2, next_retry_at = NULL
		 WHERE id = $1`,
		id, reason)
}

// CountByStatus returns the number of records per delivery status, used by
// the admin job-status query.
func (r *NotificationRepository) CountByStatus(ctx context.Context) (map[types.DeliveryStatus]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count notifications", err)
	}
	defer rows.Close()

	counts := make(map[types.DeliveryStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan status count", err)
		}
		counts[types.DeliveryStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "status count rows iteration", err)
	}

	return counts, nil
}

func (r *NotificationRepository) updateStatus(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update notification status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*types.Notification, error) {
	var (
		n             types.Notification
		notifType     string
		channel       string
		priority      int
		status        string
		failureReason *string
		providerMsgID *string
	)

	err := row.Scan(
		&n.ID,
		&n.HotelID,
		&n.UserID,
		&n.BatchID,
		&n.RuleID,
		&notifType,
		&channel,
		&priority,
		&status,
		&n.Title,
		&n.Message,
		&n.DedupFingerprint,
		&n.RetryCount,
		&n.NextRetryAt,
		&failureReason,
		&providerMsgID,
		&n.CreatedAt,
		&n.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}

	n.Type = types.NotificationType(notifType)
	n.Channel = types.Channel(channel)
	n.Priority = types.Priority(priority)
	n.Status = types.DeliveryStatus(status)
	if failureReason != nil {
		n.FailureReason = *failureReason
	}
	if providerMsgID != nil {
		n.ProviderMsgID = *providerMsgID
	}

	return &n, nil
}
