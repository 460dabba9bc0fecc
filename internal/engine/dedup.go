package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// dedupWindow is the rolling window within which an equal fingerprint
// suppresses re-creation.
const dedupWindow = 24 * time.Hour

// DedupStore is the slice of the notification store the deduplicator needs.
type DedupStore interface {
	ExistsActiveFingerprint(ctx context.Context, fingerprint string, since time.Time) (bool, error)
}

// Fingerprint computes the stable dedup key for one (batch, recipient,
// channel, calendar day) tuple. The day is taken in the engine's resolved
// timezone so "same day" matches what staff see on the wall clock.
func Fingerprint(batchID, recipientID string, channel types.Channel, day time.Time, loc *time.Location) string {
	date := day.In(loc).Format("2006-01-02")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", batchID, recipientID, channel, date)))
	return hex.EncodeToString(sum[:])
}

// Deduplicator suppresses re-alerting for a condition that already produced
// a non-failed notification within the rolling window. The read-side check
// here is advisory; the store's partial unique index on the fingerprint is
// the atomic enforcement under concurrent evaluation.
type Deduplicator struct {
	store DedupStore
	clock types.Clock
}

// NewDeduplicator creates a Deduplicator over the given store.
func NewDeduplicator(store DedupStore, clock types.Clock) *Deduplicator {
	return &Deduplicator{store: store, clock: clock}
}

// IsDuplicate reports whether a non-failed notification with the same
// fingerprint was created within the last 24 hours.
func (d *Deduplicator) IsDuplicate(ctx context.Context, batchID, recipientID string, channel types.Channel, loc *time.Location) (bool, error) {
	now := d.clock.Now()
	fp := Fingerprint(batchID, recipientID, channel, now, loc)
	return d.store.ExistsActiveFingerprint(ctx, fp, now.Add(-dedupWindow))
}
