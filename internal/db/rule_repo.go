package db

import (
	"context"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// RuleRepository provides data access for the notification_rules table.
// Rules are written by the admin CRUD collaborator; the engine only reads.
type RuleRepository struct {
	db DBTX
}

// NewRuleRepository creates a RuleRepository backed by the given database
// connection (pool or transaction).
func NewRuleRepository(db DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

// ListEnabled returns all enabled rules ordered system-first, unscoped-first:
// system rules before hotel rules before department rules, so the evaluator
// processes the general rules ahead of their overrides.
//
// Channel and role columns are decoded into typed sets at this boundary;
// a malformed row fails the scan here rather than leaking into the evaluator.
func (r *RuleRepository) ListEnabled(ctx context.Context) ([]*types.NotificationRule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, hotel_id, department_id, type, warning_days, critical_days,
		        channels, recipient_roles, enabled, created_at, updated_at
		 FROM notification_rules
		 WHERE enabled = TRUE
		 ORDER BY (hotel_id IS NOT NULL), (department_id IS NOT NULL), created_at`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list rules", err)
	}
	defer rows.Close()

	var rules []*types.NotificationRule
	for rows.Next() {
		var rule types.NotificationRule
		if err := rows.Scan(
			&rule.ID,
			&rule.HotelID,
			&rule.DepartmentID,
			&rule.Type,
			&rule.WarningDays,
			&rule.CriticalDays,
			&rule.Channels,
			&rule.RecipientRoles,
			&rule.Enabled,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan rule", err)
		}
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "rule rows iteration", err)
	}

	return rules, nil
}
