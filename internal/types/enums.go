package types

// NotificationType identifies what condition a notification reports.
type NotificationType string

const (
	TypeExpiryWarning      NotificationType = "expiry_warning"
	TypeExpiryCritical     NotificationType = "expiry_critical"
	TypeExpired            NotificationType = "expired"
	TypeLowStock           NotificationType = "low_stock"
	TypeCollectionReminder NotificationType = "collection_reminder"
	TypeSystemAlert        NotificationType = "system_alert"
)

// Channel identifies a delivery channel. The set is closed: the dispatcher
// carries one implementation per variant, so an unknown channel is rejected
// at the storage boundary rather than at send time.
type Channel string

const (
	ChannelApp   Channel = "app"
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

// Valid reports whether c is a known channel variant.
func (c Channel) Valid() bool {
	switch c {
	case ChannelApp, ChannelChat, ChannelEmail:
		return true
	}
	return false
}

// Priority orders notifications in the delivery sweep. Higher drains first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// String returns the human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// DeliveryStatus is the state machine position of a notification record.
//
// PENDING -> SENDING -> DELIVERED               (terminal success)
// SENDING -> RETRY -> SENDING -> ... -> FAILED  (terminal after retries)
// PENDING/RETRY -> FAILED                       (batch already resolved)
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSending   DeliveryStatus = "sending"
	StatusRetry     DeliveryStatus = "retry"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// RuleType identifies what a notification rule evaluates. Only expiry rules
// exist today; the column is typed so new rule families slot in without a
// schema change.
type RuleType string

const (
	RuleExpiry RuleType = "expiry"
)

// BatchStatus is the lifecycle state of an inventory batch (owned by the
// inventory collaborator; the engine only reads it).
type BatchStatus string

const (
	BatchActive     BatchStatus = "active"
	BatchCollected  BatchStatus = "collected"
	BatchWrittenOff BatchStatus = "written_off"
)

// Resolved reports whether the batch no longer needs alerting: it was
// collected or written off after the notification was created.
func (s BatchStatus) Resolved() bool {
	return s == BatchCollected || s == BatchWrittenOff
}
