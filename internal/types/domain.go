// Package types defines the domain model shared across the notification
// engine: rules, notification records, chat bindings, and the read models of
// external collaborators (batches, recipients). It also carries the ambient
// interfaces (Logger, Clock) and the application error taxonomy.
package types

import "time"

// NotificationRule is an administrator-configured policy mapping an urgency
// window to recipients and channels. Nullable scope fields encode generality:
// a rule with no hotel applies system-wide, a rule with a hotel but no
// department applies hotel-wide. At most one effective rule resolves per
// (hotel, department, type): system rules are overridden by hotel rules,
// which are overridden by department rules.
//
// Rules are created and edited by administrators only; the engine never
// creates them.
type NotificationRule struct {
	ID             string     `json:"id"`
	HotelID        *string    `json:"hotel_id,omitempty"`
	DepartmentID   *string    `json:"department_id,omitempty"`
	Type           RuleType   `json:"type"`
	WarningDays    int        `json:"warning_days"`
	CriticalDays   int        `json:"critical_days"`
	Channels       ChannelSet `json:"channels"`
	RecipientRoles RoleSet    `json:"recipient_roles"`
	Enabled        bool       `json:"enabled"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks the rule's window invariant (critical <= warning) and the
// decoded channel set.
func (r *NotificationRule) Validate() error {
	if r.CriticalDays > r.WarningDays {
		return NewAppError(ErrCodeValidationRule,
			"critical_days must not exceed warning_days", nil)
	}
	if len(r.Channels) == 0 {
		return NewAppError(ErrCodeValidationRule, "rule has no channels", nil)
	}
	return r.Channels.Validate()
}

// Notification is one deliverable unit: one condition, one recipient, one
// channel. Records are append-only history; the delivery worker mutates only
// the state-machine columns, never deletes.
type Notification struct {
	ID               string           `json:"id"`
	HotelID          string           `json:"hotel_id"`
	UserID           *string          `json:"user_id,omitempty"`
	BatchID          *string          `json:"batch_id,omitempty"`
	RuleID           *string          `json:"rule_id,omitempty"`
	Type             NotificationType `json:"type"`
	Channel          Channel          `json:"channel"`
	Priority         Priority         `json:"priority"`
	Status           DeliveryStatus   `json:"status"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	DedupFingerprint string           `json:"-"`
	RetryCount       int              `json:"retry_count"`
	NextRetryAt      *time.Time       `json:"next_retry_at,omitempty"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	ProviderMsgID    string           `json:"provider_message_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty"`
}

// ChatBinding links an external chat-bot conversation to a hotel and
// optionally one of its departments. Created by the /link command, cleared by
// /unlink, and deactivated when the bot is removed from the chat.
type ChatBinding struct {
	ID           string     `json:"id"`
	ChatID       int64      `json:"chat_id"`
	HotelID      string     `json:"hotel_id"`
	DepartmentID *string    `json:"department_id,omitempty"`
	Active       bool       `json:"active"`
	Silent       bool       `json:"silent"`
	Types        TypeFilter `json:"types,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Batch is the engine's read model of an inventory batch (owned by the
// inventory collaborator). Only the fields the engine consumes appear here.
type Batch struct {
	ID           string      `json:"id"`
	HotelID      string      `json:"hotel_id"`
	DepartmentID *string     `json:"department_id,omitempty"`
	ProductName  string      `json:"product_name"`
	Quantity     float64     `json:"quantity"`
	Unit         string      `json:"unit"`
	ExpiryDate   time.Time   `json:"expiry_date"`
	Status       BatchStatus `json:"status"`
}

// DaysUntilExpiry returns the whole number of calendar days between now and
// the batch's expiry date, negative when already expired. The comparison is
// calendar-based in the given location, not a 24h-interval division, so a
// batch expiring "tomorrow" reports 1 regardless of the current wall clock.
func (b *Batch) DaysUntilExpiry(now time.Time, loc *time.Location) int {
	n := now.In(loc)
	e := b.ExpiryDate.In(loc)
	nd := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	ed := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
	return int(ed.Sub(nd) / (24 * time.Hour))
}

// Recipient is the engine's read model of a user eligible to receive
// notifications (owned by the user-management collaborator). A recipient with
// no department is hotel-wide and also receives department-scoped rules.
type Recipient struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	HotelID      string  `json:"hotel_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	Email        string  `json:"email,omitempty"`
	EmailBlocked bool    `json:"email_blocked"`
	ChatID       int64   `json:"chat_id,omitempty"`
}

// DepartmentInbox pairs a department with its configured report address for
// the daily email statistics bundle.
type DepartmentInbox struct {
	DepartmentID string `json:"department_id"`
	HotelID      string `json:"hotel_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
}

// Logger defines the structured logging interface used throughout the engine.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
