package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"returns-backend/internal/domains/returns/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresReturnRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReturnRepository(pool *pgxpool.Pool) ReturnRepository {
	return &postgresReturnRepository{
		pool: pool,
	}
}

const returnColumns = `
	id, order_id, product_id, product_title, quantity, unit_price, total_price,
	reason, customer_notes, requested_by, status, admin_notes,
	refund_amount, refund_method,
	pickup_customer_name, pickup_phone, pickup_address, pickup_city,
	pickup_state, pickup_pincode, pickup_date, pickup_time_slot,
	pickup_instructions, pickup_tracking_number, pickup_scheduled_at,
	requested_at, updated_at, archived_at, version
`

// =====================================================
// CREATE
// =====================================================

func (r *postgresReturnRepository) Create(ctx context.Context, ret *model.ReturnRequest) error {
	query := `
		INSERT INTO return_requests (
			id, order_id, product_id, product_title, quantity,
			unit_price, total_price, reason, customer_notes,
			requested_by, status, version
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12
		)
		RETURNING requested_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		ret.ID,
		ret.OrderID,
		ret.ProductID,
		ret.ProductTitle,
		ret.Quantity,
		ret.UnitPrice,
		ret.TotalPrice,
		ret.Reason,
		ret.CustomerNotes,
		ret.RequestedBy,
		ret.Status,
		ret.Version,
	).Scan(&ret.RequestedAt, &ret.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create return request: %w", err)
	}

	return nil
}

// =====================================================
// GET
// =====================================================

func (r *postgresReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1`

	ret, err := scanReturn(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReturnNotFound
		}
		return nil, fmt.Errorf("failed to get return request: %w", err)
	}

	return ret, nil
}

// =====================================================
// COMPARE-AND-UPDATE
// =====================================================

// Update commits the record and its audit entry in one transaction, guarded
// by the optimistic version check. RowsAffected == 0 means either the row is
// gone or another operator committed first; the two cases are distinguished
// so callers can report NotFound vs Conflict.
func (r *postgresReturnRepository) Update(
	ctx context.Context,
	ret *model.ReturnRequest,
	expectedVersion int,
	history *model.ReturnStatusHistory,
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE return_requests
		SET status = $1,
			admin_notes = $2,
			refund_amount = $3,
			refund_method = $4,
			pickup_customer_name = $5,
			pickup_phone = $6,
			pickup_address = $7,
			pickup_city = $8,
			pickup_state = $9,
			pickup_pincode = $10,
			pickup_date = $11,
			pickup_time_slot = $12,
			pickup_instructions = $13,
			pickup_tracking_number = $14,
			pickup_scheduled_at = $15,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $16 AND version = $17
		RETURNING version, updated_at
	`

	var (
		pickupName, pickupPhone, pickupAddress, pickupCity   *string
		pickupState, pickupPincode, pickupSlot, pickupNumber *string
		pickupInstructions                                   *string
		pickupDate, pickupScheduledAt                        *time.Time
	)
	if ret.Pickup != nil {
		p := ret.Pickup
		pickupName = &p.CustomerName
		pickupPhone = &p.Phone
		pickupAddress = &p.Address
		pickupCity = &p.City
		pickupState = &p.State
		pickupPincode = &p.Pincode
		pickupDate = &p.PickupDate
		pickupSlot = &p.TimeSlot
		pickupInstructions = p.SpecialInstructions
		pickupNumber = &p.TrackingNumber
		pickupScheduledAt = &p.ScheduledAt
	}

	err = tx.QueryRow(ctx, query,
		ret.Status,
		ret.AdminNotes,
		ret.RefundAmount,
		ret.RefundMethod,
		pickupName,
		pickupPhone,
		pickupAddress,
		pickupCity,
		pickupState,
		pickupPincode,
		pickupDate,
		pickupSlot,
		pickupInstructions,
		pickupNumber,
		pickupScheduledAt,
		ret.ID,
		expectedVersion,
	).Scan(&ret.Version, &ret.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Zero rows: stale version or missing row.
			var exists bool
			if checkErr := r.pool.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM return_requests WHERE id = $1)`, ret.ID,
			).Scan(&exists); checkErr != nil {
				return fmt.Errorf("failed to check return existence: %w", checkErr)
			}
			if !exists {
				return model.ErrReturnNotFound
			}
			return model.ErrVersionMismatch
		}
		return fmt.Errorf("failed to update return request: %w", err)
	}

	if history != nil {
		if err := createHistoryTx(ctx, tx, history); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit return update: %w", err)
	}

	return nil
}

// =====================================================
// ARCHIVE (SOFT DELETE)
// =====================================================

// Archive flags the request instead of deleting the row; refund history is
// compliance-relevant and is never physically removed.
func (r *postgresReturnRepository) Archive(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE return_requests
		SET archived_at = NOW(),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to archive return request: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM return_requests WHERE id = $1)`, id,
		).Scan(&exists); checkErr != nil {
			return fmt.Errorf("failed to check return existence: %w", checkErr)
		}
		if !exists {
			return model.ErrReturnNotFound
		}
		// Already archived: idempotent no-op.
	}

	return nil
}

// =====================================================
// LIST
// =====================================================

func (r *postgresReturnRepository) List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnRequest, int, error) {
	filter = filter.Normalized()
	offset := (filter.Page - 1) * filter.Limit

	where := ` WHERE archived_at IS NULL`
	args := []interface{}{}

	if filter.Status != nil && *filter.Status != "" {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (
			product_title ILIKE $%d OR requested_by ILIKE $%d OR reason ILIKE $%d
			OR id::text ILIKE $%d OR order_id ILIKE $%d
		)`, n, n, n, n, n)
	}

	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		where += fmt.Sprintf(" AND requested_at >= $%d", len(args))
	}

	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		where += fmt.Sprintf(" AND requested_at <= $%d", len(args))
	}

	countQuery := `SELECT COUNT(*) FROM return_requests` + where

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count return requests: %w", err)
	}

	orderBy := map[string]string{
		"requested_at_desc": "requested_at DESC",
		"requested_at_asc":  "requested_at ASC",
		"updated_at_desc":   "updated_at DESC",
		"total_price_desc":  "total_price DESC",
		"total_price_asc":   "total_price ASC",
	}[filter.Sort]
	if orderBy == "" {
		orderBy = "requested_at DESC"
	}

	query := `SELECT ` + returnColumns + ` FROM return_requests` + where +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", orderBy, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list return requests: %w", err)
	}
	defer rows.Close()

	var returns []model.ReturnRequest
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan return request: %w", err)
		}
		returns = append(returns, *ret)
	}

	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("error iterating return requests: %w", rows.Err())
	}

	return returns, total, nil
}

// =====================================================
// STATS
// =====================================================

func (r *postgresReturnRepository) CountByStatus(ctx context.Context) (map[model.ReturnStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM return_requests
		WHERE archived_at IS NULL
		GROUP BY status
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ReturnStatus]int)
	for rows.Next() {
		var status model.ReturnStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", rows.Err())
	}

	return counts, nil
}

// =====================================================
// STATUS HISTORY
// =====================================================

func (r *postgresReturnRepository) GetStatusHistory(ctx context.Context, id uuid.UUID) ([]model.ReturnStatusHistory, error) {
	query := `
		SELECT id, return_id, from_status, to_status, changed_by, notes, changed_at
		FROM return_status_history
		WHERE return_id = $1
		ORDER BY changed_at ASC
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var histories []model.ReturnStatusHistory
	for rows.Next() {
		var h model.ReturnStatusHistory
		err := rows.Scan(
			&h.ID,
			&h.ReturnID,
			&h.FromStatus,
			&h.ToStatus,
			&h.ChangedBy,
			&h.Notes,
			&h.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		histories = append(histories, h)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating status history: %w", rows.Err())
	}

	return histories, nil
}

func createHistoryTx(ctx context.Context, tx pgx.Tx, history *model.ReturnStatusHistory) error {
	query := `
		INSERT INTO return_status_history (
			id, return_id, from_status, to_status, changed_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING changed_at
	`

	err := tx.QueryRow(ctx, query,
		history.ID,
		history.ReturnID,
		history.FromStatus,
		history.ToStatus,
		history.ChangedBy,
		history.Notes,
	).Scan(&history.ChangedAt)

	if err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}

	return nil
}

// =====================================================
// ROW SCANNING
// =====================================================

func scanReturn(row pgx.Row) (*model.ReturnRequest, error) {
	var (
		ret model.ReturnRequest

		pickupName, pickupPhone, pickupAddress, pickupCity   *string
		pickupState, pickupPincode, pickupSlot, pickupNumber *string
		pickupInstructions                                   *string
		pickupDate, pickupScheduledAt                        *time.Time
	)

	err := row.Scan(
		&ret.ID,
		&ret.OrderID,
		&ret.ProductID,
		&ret.ProductTitle,
		&ret.Quantity,
		&ret.UnitPrice,
		&ret.TotalPrice,
		&ret.Reason,
		&ret.CustomerNotes,
		&ret.RequestedBy,
		&ret.Status,
		&ret.AdminNotes,
		&ret.RefundAmount,
		&ret.RefundMethod,
		&pickupName,
		&pickupPhone,
		&pickupAddress,
		&pickupCity,
		&pickupState,
		&pickupPincode,
		&pickupDate,
		&pickupSlot,
		&pickupInstructions,
		&pickupNumber,
		&pickupScheduledAt,
		&ret.RequestedAt,
		&ret.UpdatedAt,
		&ret.ArchivedAt,
		&ret.Version,
	)
	if err != nil {
		return nil, err
	}

	if pickupNumber != nil && *pickupNumber != "" {
		ret.Pickup = &model.PickupBooking{
			CustomerName:        deref(pickupName),
			Phone:               deref(pickupPhone),
			Address:             deref(pickupAddress),
			City:                deref(pickupCity),
			State:               deref(pickupState),
			Pincode:             deref(pickupPincode),
			TimeSlot:            deref(pickupSlot),
			SpecialInstructions: pickupInstructions,
			TrackingNumber:      *pickupNumber,
		}
		if pickupDate != nil {
			ret.Pickup.PickupDate = *pickupDate
		}
		if pickupScheduledAt != nil {
			ret.Pickup.ScheduledAt = *pickupScheduledAt
		}
	}

	return &ret, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
