package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, status, subtotal, tax, delivery_fee, discount, total,
restaurant_id, supplier_id, created_by, delivery_date, delivered_at, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.Status,
		&i.Subtotal,
		&i.Tax,
		&i.DeliveryFee,
		&i.Discount,
		&i.Total,
		&i.RestaurantID,
		&i.SupplierID,
		&i.CreatedBy,
		&i.DeliveryDate,
		&i.DeliveredAt,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (order_number, subtotal, tax, delivery_fee, discount, total, restaurant_id, supplier_id, created_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber  string
	Subtotal     pgtype.Numeric
	Tax          pgtype.Numeric
	DeliveryFee  pgtype.Numeric
	Discount     pgtype.Numeric
	Total        pgtype.Numeric
	RestaurantID uuid.UUID
	SupplierID   uuid.UUID
	CreatedBy    uuid.UUID
	Notes        pgtype.Text
}

// CreateOrder inserts a DRAFT order. Drafting is owned by the ordering UI;
// the seed tool and integration tests use it to stage data.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.Subtotal,
		arg.Tax,
		arg.DeliveryFee,
		arg.Discount,
		arg.Total,
		arg.RestaurantID,
		arg.SupplierID,
		arg.CreatedBy,
		arg.Notes,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::uuid IS NULL OR restaurant_id = $1::uuid)
  AND ($2::uuid IS NULL OR supplier_id = $2::uuid)
  AND ($3::text IS NULL OR status = $3::text)
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`

type ListOrdersParams struct {
	RestaurantID pgtype.UUID
	SupplierID   pgtype.UUID
	Status       pgtype.Text
	Limit        int32
	Offset       int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.RestaurantID,
		arg.SupplierID,
		arg.Status,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    delivery_date = COALESCE($4::timestamptz, delivery_date),
    delivered_at = COALESCE($5::timestamptz, delivered_at),
    updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID           uuid.UUID
	Status       OrderStatus
	FromStatus   OrderStatus
	DeliveryDate pgtype.Timestamptz
	DeliveredAt  pgtype.Timestamptz
}

// UpdateOrderStatus moves the order only if it is still in FromStatus.
// It returns pgx.ErrNoRows when another writer got there first.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.FromStatus,
		arg.DeliveryDate,
		arg.DeliveredAt,
	)
	return scanOrder(row)
}
