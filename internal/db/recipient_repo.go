package db

import (
	"context"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// RecipientRepository resolves eligible notification recipients from the
// user-management collaborator's users table.
type RecipientRepository struct {
	db DBTX
}

// NewRecipientRepository creates a RecipientRepository backed by the given
// database connection (pool or transaction).
func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// ResolveForScope returns the active users that match the given role set and
// location. Hotel-wide users (no department) also receive department-scoped
// notifications; department users receive only their own department's.
// An empty role set resolves nobody.
func (r *RecipientRepository) ResolveForScope(ctx context.Context, roles types.RoleSet, hotelID string, departmentID *string) ([]*types.Recipient, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, name, role, hotel_id, department_id,
		        COALESCE(email, ''), email_blocked,
		        COALESCE(telegram_chat_id, 0)
		 FROM users
		 WHERE active = TRUE
		   AND hotel_id = $1
		   AND role = ANY($2)
		   AND (department_id IS NULL
		        OR $3::text IS NULL
		        OR department_id = $3)
		 ORDER BY id`,
		hotelID, []string(roles), departmentID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve recipients", err)
	}
	defer rows.Close()

	var out []*types.Recipient
	for rows.Next() {
		var rc types.Recipient
		if err := rows.Scan(&rc.ID, &rc.Name, &rc.Role, &rc.HotelID,
			&rc.DepartmentID, &rc.Email, &rc.EmailBlocked, &rc.ChatID); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan recipient", err)
		}
		out = append(out, &rc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "recipient rows iteration", err)
	}

	return out, nil
}

// GetByID returns a single recipient by user id. The dispatcher uses this to
// resolve channel addresses at send time rather than freezing them at
// creation time.
func (r *RecipientRepository) GetByID(ctx context.Context, userID string) (*types.Recipient, error) {
	var rc types.Recipient
	err := r.db.QueryRow(ctx,
		`SELECT id, name, role, hotel_id, department_id,
		        COALESCE(email, ''), email_blocked,
		        COALESCE(telegram_chat_id, 0)
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&rc.ID, &rc.Name, &rc.Role, &rc.HotelID, &rc.DepartmentID,
		&rc.Email, &rc.EmailBlocked, &rc.ChatID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get recipient", err)
	}
	return &rc, nil
}
