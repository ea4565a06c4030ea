package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getSupplier = `-- name: GetSupplier :one
SELECT id, name, email, status, minimum_order, lead_time_days, created_at
FROM suppliers WHERE id = $1`

func (q *Queries) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	row := q.db.QueryRow(ctx, getSupplier, id)
	var i Supplier
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.Status,
		&i.MinimumOrder,
		&i.LeadTimeDays,
		&i.CreatedAt,
	)
	return i, err
}

const createSupplier = `-- name: CreateSupplier :one
INSERT INTO suppliers (name, email, status, minimum_order, lead_time_days)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, email, status, minimum_order, lead_time_days, created_at`

type CreateSupplierParams struct {
	Name         string
	Email        pgtype.Text
	Status       SupplierStatus
	MinimumOrder pgtype.Numeric
	LeadTimeDays int32
}

func (q *Queries) CreateSupplier(ctx context.Context, arg CreateSupplierParams) (Supplier, error) {
	row := q.db.QueryRow(ctx, createSupplier,
		arg.Name,
		arg.Email,
		arg.Status,
		arg.MinimumOrder,
		arg.LeadTimeDays,
	)
	var i Supplier
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.Status,
		&i.MinimumOrder,
		&i.LeadTimeDays,
		&i.CreatedAt,
	)
	return i, err
}
