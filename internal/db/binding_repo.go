package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// BindingRepository provides data access for the chat_bindings table, keyed
// by external chat id.
type BindingRepository struct {
	db DBTX
}

// NewBindingRepository creates a BindingRepository backed by the given
// database connection (pool or transaction).
func NewBindingRepository(db DBTX) *BindingRepository {
	return &BindingRepository{db: db}
}

// Upsert creates or replaces the binding for a chat. A chat holds at most one
// binding; re-linking overwrites scope and reactivates.
func (r *BindingRepository) Upsert(ctx context.Context, b *types.ChatBinding) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_bindings (id, chat_id, hotel_id, department_id, active, silent, types)
		 VALUES ($1, $2, $3, $4, TRUE, $5, COALESCE($6, '[]'::jsonb))
		 ON CONFLICT (chat_id) DO UPDATE
		 SET hotel_id = EXCLUDED.hotel_id,
		     department_id = EXCLUDED.department_id,
		     active = TRUE,
		     silent = EXCLUDED.silent,
		     types = EXCLUDED.types,
		     updated_at = NOW()`,
		b.ID, b.ChatID, b.HotelID, b.DepartmentID, b.Silent, b.Types,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert chat binding", err)
	}
	return nil
}

// GetByChatID returns the binding for a chat, active or not. Returns a
// not-found AppError when the chat was never linked.
func (r *BindingRepository) GetByChatID(ctx context.Context, chatID int64) (*types.ChatBinding, error) {
	var b types.ChatBinding
	err := r.db.QueryRow(ctx,
		`SELECT id, chat_id, hotel_id, department_id, active, silent, types,
		        created_at, updated_at
		 FROM chat_bindings WHERE chat_id = $1`,
		chatID,
	).Scan(&b.ID, &b.ChatID, &b.HotelID, &b.DepartmentID, &b.Active,
		&b.Silent, &b.Types, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundBinding, "chat is not linked", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get chat binding", err)
	}
	return &b, nil
}

// ListActive returns all active bindings, optionally narrowed to a location.
// Passing empty hotelID returns every active binding (daily report loop);
// passing a hotel and optional department returns the bindings the evaluator
// pushes aggregated batch messages to.
func (r *BindingRepository) ListActive(ctx context.Context, hotelID string, departmentID *string) ([]*types.ChatBinding, error) {
	// A hotel-wide binding (NULL department) matches department-scoped pushes.
	rows, err := r.db.Query(ctx,
		`SELECT id, chat_id, hotel_id, department_id, active, silent, types,
		        created_at, updated_at
		 FROM chat_bindings
		 WHERE active = TRUE
		   AND ($1 = '' OR hotel_id = $1)
		   AND ($2::text IS NULL OR department_id IS NULL OR department_id = $2)
		 ORDER BY created_at`,
		hotelID, departmentID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list chat bindings", err)
	}
	defer rows.Close()

	var out []*types.ChatBinding
	for rows.Next() {
		var b types.ChatBinding
		if err := rows.Scan(&b.ID, &b.ChatID, &b.HotelID, &b.DepartmentID,
			&b.Active, &b.Silent, &b.Types, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan chat binding", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "chat binding rows iteration", err)
	}

	return out, nil
}

// Deactivate marks a chat's binding inactive. Used by /unlink and when the
// bot is removed from the chat. Deactivating an unknown chat is a no-op.
func (r *BindingRepository) Deactivate(ctx context.Context, chatID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE chat_bindings SET active = FALSE, updated_at = NOW()
		 WHERE chat_id = $1`,
		chatID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate chat binding", err)
	}
	return nil
}
