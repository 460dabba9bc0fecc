// Package engine implements rule evaluation: scanning active expiry rules
// against live inventory, classifying batches into urgency tiers, resolving
// recipients, and creating deduplicated notification records.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// RuleSource lists the enabled rules, ordered system-first, unscoped-first.
type RuleSource interface {
	ListEnabled(ctx context.Context) ([]*types.NotificationRule, error)
}

// BatchSource queries inventory batches inside a rule's threshold window.
type BatchSource interface {
	ListExpiringBatches(ctx context.Context, cutoff time.Time, hotelID, departmentID *string) ([]*types.Batch, error)
}

// RecipientSource resolves the users eligible for a rule's scope.
type RecipientSource interface {
	ResolveForScope(ctx context.Context, roles types.RoleSet, hotelID string, departmentID *string) ([]*types.Recipient, error)
}

// NotificationStore persists notification records with fingerprint-keyed
// idempotent creation.
type NotificationStore interface {
	CreateIfNotDuplicate(ctx context.Context, n *types.Notification) (bool, error)
}

// BindingSource lists the active chat bindings matching a location.
type BindingSource interface {
	ListActive(ctx context.Context, hotelID string, departmentID *string) ([]*types.ChatBinding, error)
}

// ChatGateway pushes aggregated messages to bound group chats.
type ChatGateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, silent bool) (string, error)
}

// LocationResolver supplies the timezone days-until-expiry and dedup calendar
// dates are computed in. Implemented by the scheduler's settings resolution.
type LocationResolver interface {
	Location(ctx context.Context) *time.Location
}

// Evaluator scans the enabled rules and creates pending notifications for
// batches inside their threshold windows.
type Evaluator struct {
	rules      RuleSource
	batches    BatchSource
	recipients RecipientSource
	store      NotificationStore
	dedup      *Deduplicator
	bindings   BindingSource
	chat       ChatGateway
	locs       LocationResolver
	clock      types.Clock
	logger     types.Logger
}

// EvaluatorConfig holds the dependencies needed to create an Evaluator.
type EvaluatorConfig struct {
	Rules      RuleSource
	Batches    BatchSource
	Recipients RecipientSource
	Store      NotificationStore
	Dedup      *Deduplicator
	Bindings   BindingSource
	Chat       ChatGateway
	Locations  LocationResolver
	Clock      types.Clock
	Logger     types.Logger
}

// NewEvaluator creates an Evaluator with the given dependencies.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{
		rules:      cfg.Rules,
		batches:    cfg.Batches,
		recipients: cfg.Recipients,
		store:      cfg.Store,
		dedup:      cfg.Dedup,
		bindings:   cfg.Bindings,
		chat:       cfg.Chat,
		locs:       cfg.Locations,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
}

// classify maps a batch's remaining days to a notification type and priority.
// The tie-breaks are exact: remaining == criticalDays is critical, remaining
// == warningDays is a warning, remaining == 0 is expired. ok=false means the
// batch is outside the rule's window (defensive; the query already filters).
func classify(remaining, warningDays, criticalDays int) (types.NotificationType, types.Priority, bool) {
	switch {
	case remaining <= 0:
		return types.TypeExpired, types.PriorityUrgent, true
	case remaining <= criticalDays:
		return types.TypeExpiryCritical, types.PriorityHigh, true
	case remaining <= warningDays:
		return types.TypeExpiryWarning, types.PriorityNormal, true
	default:
		return "", 0, false
	}
}

// chatPush accumulates the aggregated message for one bound chat during an
// evaluation run.
type chatPush struct {
	binding *types.ChatBinding
	lines   []string
}

// Evaluate runs one pass over every enabled rule and returns the number of
// notification records created. Per-rule and per-batch failures are logged
// and skipped; only a failure to list the rules aborts the run.
func (e *Evaluator) Evaluate(ctx context.Context) (int, error) {
	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("evaluate: list rules: %w", err)
	}

	loc := e.locs.Location(ctx)
	now := e.clock.Now()

	created := 0
	pushes := make(map[int64]*chatPush)

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			e.logger.Warn("skipping malformed rule", "rule_id", rule.ID, "error", err.Error())
			continue
		}

		n, err := e.evaluateRule(ctx, rules, rule, now, loc, pushes)
		if err != nil {
			e.logger.Error("rule evaluation failed", "rule_id", rule.ID, "error", err.Error())
			continue
		}
		created += n
	}

	e.sendChatPushes(ctx, pushes)

	e.logger.Info("rule evaluation complete",
		"rules", len(rules),
		"notifications_created", created,
	)

	return created, nil
}

// evaluateRule processes one rule: fetch batches in its window, classify,
// resolve recipients, and create deduplicated records.
func (e *Evaluator) evaluateRule(
	ctx context.Context,
	all []*types.NotificationRule,
	rule *types.NotificationRule,
	now time.Time,
	loc *time.Location,
	pushes map[int64]*chatPush,
) (int, error) {
	cutoff := endOfDay(now, loc).AddDate(0, 0, rule.WarningDays)

	batches, err := e.batches.ListExpiringBatches(ctx, cutoff, rule.HotelID, rule.DepartmentID)
	if err != nil {
		return 0, fmt.Errorf("list batches: %w", err)
	}

	created := 0
	for _, batch := range batches {
		// Rule precedence: system rules are overridden by hotel rules, which
		// are overridden by department rules. A batch only belongs to the
		// most specific enabled rule covering its location.
		if effectiveRule(all, batch.HotelID, batch.DepartmentID) != rule {
			continue
		}

		remaining := batch.DaysUntilExpiry(now, loc)
		notifType, priority, ok := classify(remaining, rule.WarningDays, rule.CriticalDays)
		if !ok {
			continue
		}

		n, err := e.notifyBatch(ctx, rule, batch, notifType, priority, remaining, now, loc)
		if err != nil {
			e.logger.Error("batch notification failed",
				"batch_id", batch.ID, "rule_id", rule.ID, "error", err.Error())
			continue
		}
		created += n

		if rule.Channels.Contains(types.ChannelChat) {
			e.collectChatPush(ctx, batch, notifType, remaining, pushes)
		}
	}

	return created, nil
}

// notifyBatch creates one pending record per (recipient, channel) pair in the
// rule's channel set, consulting the deduplicator before each creation.
func (e *Evaluator) notifyBatch(
	ctx context.Context,
	rule *types.NotificationRule,
	batch *types.Batch,
	notifType types.NotificationType,
	priority types.Priority,
	remaining int,
	now time.Time,
	loc *time.Location,
) (int, error) {
	recipients, err := e.recipients.ResolveForScope(ctx, rule.RecipientRoles, batch.HotelID, batch.DepartmentID)
	if err != nil {
		return 0, fmt.Errorf("resolve recipients: %w", err)
	}

	title, message := composeBatchMessage(batch, notifType, remaining)

	created := 0
	for _, rcpt := range recipients {
		for _, channel := range rule.Channels {
			dup, err := e.dedup.IsDuplicate(ctx, batch.ID, rcpt.ID, channel, loc)
			if err != nil {
				e.logger.Error("dedup check failed",
					"batch_id", batch.ID, "recipient_id", rcpt.ID, "error", err.Error())
				continue
			}
			if dup {
				continue
			}

			userID := rcpt.ID
			batchID := batch.ID
			ruleID := rule.ID
			n := &types.Notification{
				ID:               "notif_" + uuid.NewString(),
				HotelID:          batch.HotelID,
				UserID:           &userID,
				BatchID:          &batchID,
				RuleID:           &ruleID,
				Type:             notifType,
				Channel:          channel,
				Priority:         priority,
				Status:           types.StatusPending,
				Title:            title,
				Message:          message,
				DedupFingerprint: Fingerprint(batch.ID, rcpt.ID, channel, now, loc),
				CreatedAt:        now,
			}

			wasCreated, err := e.store.CreateIfNotDuplicate(ctx, n)
			if err != nil {
				e.logger.Error("notification creation failed",
					"batch_id", batch.ID, "recipient_id", rcpt.ID, "error", err.Error())
				continue
			}
			if wasCreated {
				created++
			}
		}
	}

	return created, nil
}

// collectChatPush appends the batch's line to every binding matching its
// location. Chat pushes are aggregated per binding and are not deduplicated.
func (e *Evaluator) collectChatPush(ctx context.Context, batch *types.Batch, notifType types.NotificationType, remaining int, pushes map[int64]*chatPush) {
	bindings, err := e.bindings.ListActive(ctx, batch.HotelID, batch.DepartmentID)
	if err != nil {
		e.logger.Error("binding lookup failed", "hotel_id", batch.HotelID, "error", err.Error())
		return
	}

	line := batchLine(batch, notifType, remaining)
	for _, b := range bindings {
		if !b.Types.Allows(notifType) {
			continue
		}
		p, ok := pushes[b.ChatID]
		if !ok {
			p = &chatPush{binding: b}
			pushes[b.ChatID] = p
		}
		p.lines = append(p.lines, line)
	}
}

// sendChatPushes delivers one aggregated message per bound chat. A failed
// push is logged and does not affect the other chats.
func (e *Evaluator) sendChatPushes(ctx context.Context, pushes map[int64]*chatPush) {
	for chatID, p := range pushes {
		text := "⏰ <b>Expiry alerts</b>\n" + joinLines(p.lines)
		if _, err := e.chat.SendMessage(ctx, chatID, text, p.binding.Silent); err != nil {
			if types.IsCode(err, types.ErrCodeGatewayUnconfigured) {
				e.logger.Warn("chat gateway not configured, skipping pushes")
				return
			}
			e.logger.Error("chat push failed", "chat_id", chatID, "error", err.Error())
		}
	}
}

// effectiveRule returns the most specific enabled rule covering a location:
// department rule over hotel rule over system rule. Returns nil when no rule
// covers the location.
func effectiveRule(rules []*types.NotificationRule, hotelID string, departmentID *string) *types.NotificationRule {
	var system, hotel, department *types.NotificationRule
	for _, r := range rules {
		switch {
		case r.HotelID == nil:
			if system == nil {
				system = r
			}
		case *r.HotelID == hotelID && r.DepartmentID == nil:
			if hotel == nil {
				hotel = r
			}
		case *r.HotelID == hotelID && departmentID != nil && *r.DepartmentID == *departmentID:
			if department == nil {
				department = r
			}
		}
	}
	if department != nil {
		return department
	}
	if hotel != nil {
		return hotel
	}
	return system
}

// endOfDay returns the last instant of the calendar day containing t in loc.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, 0, loc)
}
