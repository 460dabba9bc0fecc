package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// DirectoryRepository provides lookups into the hotel/department directory
// owned by the CRUD collaborators: code resolution for the bot's /link
// command and the department report inboxes for the daily email loop.
type DirectoryRepository struct {
	db DBTX
}

// NewDirectoryRepository creates a DirectoryRepository backed by the given
// database connection (pool or transaction).
func NewDirectoryRepository(db DBTX) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ResolveHotelCode returns the hotel id for a short code. Codes are the
// stable human-facing identifiers used in chat commands.
func (r *DirectoryRepository) ResolveHotelCode(ctx context.Context, code string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM hotels WHERE code = $1`, code,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.NewAppError(types.ErrCodeNotFoundHotel, "unknown hotel code", err)
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to resolve hotel code", err)
	}
	return id, nil
}

// ResolveDepartmentCode returns the department id for a short code within a
// hotel.
func (r *DirectoryRepository) ResolveDepartmentCode(ctx context.Context, hotelID, code string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM departments WHERE hotel_id = $1 AND code = $2`,
		hotelID, code,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.NewAppError(types.ErrCodeNotFoundDepartment, "unknown department code", err)
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to resolve department code", err)
	}
	return id, nil
}

// ListDepartmentInboxes returns every department with a configured report
// email address.
func (r *DirectoryRepository) ListDepartmentInboxes(ctx context.Context) ([]*types.DepartmentInbox, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, hotel_id, name, report_email
		 FROM departments
		 WHERE report_email IS NOT NULL AND report_email <> ''
		 ORDER BY hotel_id, name`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list department inboxes", err)
	}
	defer rows.Close()

	var out []*types.DepartmentInbox
	for rows.Next() {
		var in types.DepartmentInbox
		if err := rows.Scan(&in.DepartmentID, &in.HotelID, &in.Name, &in.Email); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan department inbox", err)
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "department inbox rows iteration", err)
	}

	return out, nil
}
