package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const approvalRuleColumns = `id, restaurant_id, min_amount, max_amount, required_role, is_active, created_by, created_at`

func scanApprovalRule(row pgx.Row) (ApprovalRule, error) {
	var i ApprovalRule
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.MinAmount,
		&i.MaxAmount,
		&i.RequiredRole,
		&i.IsActive,
		&i.CreatedBy,
		&i.CreatedAt,
	)
	return i, err
}

const listActiveApprovalRules = `-- name: ListActiveApprovalRules :many
SELECT ` + approvalRuleColumns + ` FROM approval_rules
WHERE restaurant_id = $1 AND is_active
ORDER BY min_amount, created_at`

func (q *Queries) ListActiveApprovalRules(ctx context.Context, restaurantID uuid.UUID) ([]ApprovalRule, error) {
	rows, err := q.db.Query(ctx, listActiveApprovalRules, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ApprovalRule{}
	for rows.Next() {
		i, err := scanApprovalRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createApprovalRule = `-- name: CreateApprovalRule :one
INSERT INTO approval_rules (restaurant_id, min_amount, max_amount, required_role, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + approvalRuleColumns

type CreateApprovalRuleParams struct {
	RestaurantID uuid.UUID
	MinAmount    pgtype.Numeric
	MaxAmount    pgtype.Numeric
	RequiredRole string
	CreatedBy    uuid.UUID
}

func (q *Queries) CreateApprovalRule(ctx context.Context, arg CreateApprovalRuleParams) (ApprovalRule, error) {
	row := q.db.QueryRow(ctx, createApprovalRule,
		arg.RestaurantID,
		arg.MinAmount,
		arg.MaxAmount,
		arg.RequiredRole,
		arg.CreatedBy,
	)
	return scanApprovalRule(row)
}

const deleteApprovalRule = `-- name: DeleteApprovalRule :one
DELETE FROM approval_rules WHERE id = $1 AND restaurant_id = $2
RETURNING id`

type DeleteApprovalRuleParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) DeleteApprovalRule(ctx context.Context, arg DeleteApprovalRuleParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteApprovalRule, arg.ID, arg.RestaurantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const orderApprovalColumns = `id, order_id, status, notes, requested_by, reviewed_by, reviewed_at, created_at`

func scanOrderApproval(row pgx.Row) (OrderApproval, error) {
	var i OrderApproval
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Status,
		&i.Notes,
		&i.RequestedBy,
		&i.ReviewedBy,
		&i.ReviewedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderApproval = `-- name: CreateOrderApproval :one
INSERT INTO order_approvals (order_id, requested_by)
VALUES ($1, $2)
RETURNING ` + orderApprovalColumns

type CreateOrderApprovalParams struct {
	OrderID     uuid.UUID
	RequestedBy uuid.UUID
}

func (q *Queries) CreateOrderApproval(ctx context.Context, arg CreateOrderApprovalParams) (OrderApproval, error) {
	return scanOrderApproval(q.db.QueryRow(ctx, createOrderApproval, arg.OrderID, arg.RequestedBy))
}

const getPendingApprovalForUpdate = `-- name: GetPendingApprovalForUpdate :one
SELECT ` + orderApprovalColumns + ` FROM order_approvals
WHERE order_id = $1 AND status = 'PENDING'
FOR UPDATE`

func (q *Queries) GetPendingApprovalForUpdate(ctx context.Context, orderID uuid.UUID) (OrderApproval, error) {
	return scanOrderApproval(q.db.QueryRow(ctx, getPendingApprovalForUpdate, orderID))
}

const resolveOrderApproval = `-- name: ResolveOrderApproval :one
UPDATE order_approvals
SET status = $2, reviewed_by = $3, reviewed_at = $4, notes = $5
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + orderApprovalColumns

type ResolveOrderApprovalParams struct {
	ID         uuid.UUID
	Status     ApprovalStatus
	ReviewedBy pgtype.UUID
	ReviewedAt time.Time
	Notes      pgtype.Text
}

// ResolveOrderApproval returns pgx.ErrNoRows if the approval was already resolved.
func (q *Queries) ResolveOrderApproval(ctx context.Context, arg ResolveOrderApprovalParams) (OrderApproval, error) {
	row := q.db.QueryRow(ctx, resolveOrderApproval,
		arg.ID,
		arg.Status,
		arg.ReviewedBy,
		arg.ReviewedAt,
		arg.Notes,
	)
	return scanOrderApproval(row)
}

const listApprovalsByOrder = `-- name: ListApprovalsByOrder :many
SELECT ` + orderApprovalColumns + ` FROM order_approvals
WHERE order_id = $1
ORDER BY created_at, id`

func (q *Queries) ListApprovalsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderApproval, error) {
	rows, err := q.db.Query(ctx, listApprovalsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderApproval{}
	for rows.Next() {
		i, err := scanOrderApproval(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
