package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// InventoryReader provides the engine's read-only view of the inventory
// collaborator's tables (batches, collections). The engine never writes
// inventory data.
type InventoryReader struct {
	db DBTX
}

// NewInventoryReader creates an InventoryReader backed by the given database
// connection (pool or transaction).
func NewInventoryReader(db DBTX) *InventoryReader {
	return &InventoryReader{db: db}
}

// ListExpiringBatches returns active batches whose expiry date falls on or
// before the given cutoff, optionally scoped to a hotel and department.
// Already-expired batches are included: they classify as `expired`.
func (r *InventoryReader) ListExpiringBatches(ctx context.Context, cutoff time.Time, hotelID, departmentID *string) ([]*types.Batch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, hotel_id, department_id, product_name, quantity, unit,
		        expiry_date, status
		 FROM batches
		 WHERE status = 'active'
		   AND expiry_date <= $1
		   AND ($2::text IS NULL OR hotel_id = $2)
		   AND ($3::text IS NULL OR department_id = $3)
		 ORDER BY expiry_date ASC`,
		cutoff, hotelID, departmentID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list expiring batches", err)
	}
	defer rows.Close()

	var out []*types.Batch
	for rows.Next() {
		var (
			b      types.Batch
			status string
		)
		if err := rows.Scan(&b.ID, &b.HotelID, &b.DepartmentID, &b.ProductName,
			&b.Quantity, &b.Unit, &b.ExpiryDate, &status); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan batch", err)
		}
		b.Status = types.BatchStatus(status)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "batch rows iteration", err)
	}

	return out, nil
}

// GetBatchStatus returns the current lifecycle status of a batch. The worker
// calls this before dispatch to short-circuit notifications whose batch has
// since been collected or written off.
func (r *InventoryReader) GetBatchStatus(ctx context.Context, batchID string) (types.BatchStatus, error) {
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT status FROM batches WHERE id = $1`, batchID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		// A deleted batch counts as resolved: nothing left to alert on.
		return types.BatchWrittenOff, nil
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to get batch status", err)
	}
	return types.BatchStatus(status), nil
}

// HealthSummary counts good, soon-expiring, and expired active batches for a
// location. warningCutoff is the end of the soon-expiring window; dayStart is
// the start of the current calendar day in the report timezone.
func (r *InventoryReader) HealthSummary(ctx context.Context, hotelID string, departmentID *string, dayStart, warningCutoff time.Time) (*types.HealthSummary, error) {
	var s types.HealthSummary
	err := r.db.QueryRow(
		ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE expiry_date >  $4)                          AS good,
		   COUNT(*) FILTER (WHERE expiry_date >= $3 AND expiry_date <= $4)   AS warning,
		   COUNT(*) FILTER (WHERE expiry_date <  $3)                          AS expired
		 FROM batches
		 WHERE status = 'active'
		   AND hotel_id = $1
		   AND ($2::text IS NULL OR department_id = $2)`,
		hotelID, departmentID, dayStart, warningCutoff,
	).Scan(&s.Good, &s.Warning, &s.Expired)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to compute health summary", err)
	}
	return &s, nil
}

// DepartmentStats computes the email report bundle for one department: total
// active batches, soon-expiring and expired counts, and collections performed
// since dayStart.
func (r *InventoryReader) DepartmentStats(ctx context.Context, departmentID string, dayStart, warningCutoff time.Time) (*types.DepartmentStats, error) {
	var s types.DepartmentStats
	err := r.db.QueryRow(
		ctx,
		`SELECT
		   COUNT(*)                                                          AS total,
		   COUNT(*) FILTER (WHERE expiry_date >= $2 AND expiry_date <= $3)  AS expiring,
		   COUNT(*) FILTER (WHERE expiry_date <  $2)                         AS expired
		 FROM batches
		 WHERE status = 'active' AND department_id = $1`,
		departmentID, dayStart, warningCutoff,
	).Scan(&s.TotalBatches, &s.ExpiringCount, &s.ExpiredCount)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to compute department stats", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM collections
		 WHERE department_id = $1 AND collected_at >= $2`,
		departmentID, dayStart,
	).Scan(&s.CollectionsToday)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count collections", err)
	}

	return &s, nil
}
