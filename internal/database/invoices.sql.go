package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, invoice_number, status, subtotal, tax, total, due_date, paid_at, paid_amount,
payment_method, payment_reference, notes, restaurant_id, supplier_id, order_id, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.Status,
		&i.Subtotal,
		&i.Tax,
		&i.Total,
		&i.DueDate,
		&i.PaidAt,
		&i.PaidAmount,
		&i.PaymentMethod,
		&i.PaymentReference,
		&i.Notes,
		&i.RestaurantID,
		&i.SupplierID,
		&i.OrderID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getInvoice = `-- name: GetInvoice :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, id))
}

const getInvoiceForUpdate = `-- name: GetInvoiceForUpdate :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceForUpdate, id))
}

const getInvoiceByOrder = `-- name: GetInvoiceByOrder :one
SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`

func (q *Queries) GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceByOrder, orderID))
}

const countInvoicesBySupplier = `-- name: CountInvoicesBySupplier :one
SELECT count(*) FROM invoices WHERE supplier_id = $1`

func (q *Queries) CountInvoicesBySupplier(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countInvoicesBySupplier, supplierID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO invoices (invoice_number, status, subtotal, tax, total, due_date, notes, restaurant_id, supplier_id, order_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	InvoiceNumber string
	Status        InvoiceStatus
	Subtotal      pgtype.Numeric
	Tax           pgtype.Numeric
	Total         pgtype.Numeric
	DueDate       time.Time
	Notes         pgtype.Text
	RestaurantID  uuid.UUID
	SupplierID    uuid.UUID
	OrderID       uuid.UUID
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, createInvoice,
		arg.InvoiceNumber,
		arg.Status,
		arg.Subtotal,
		arg.Tax,
		arg.Total,
		arg.DueDate,
		arg.Notes,
		arg.RestaurantID,
		arg.SupplierID,
		arg.OrderID,
	)
	return scanInvoice(row)
}

const updateInvoice = `-- name: UpdateInvoice :one
UPDATE invoices
SET status = $2,
    paid_at = $3,
    paid_amount = $4,
    payment_method = $5,
    payment_reference = $6,
    notes = $7,
    due_date = $8,
    updated_at = now()
WHERE id = $1
RETURNING ` + invoiceColumns

// UpdateInvoiceParams carries the full next state of the row; the service
// merges the caller's partial update onto the locked current row.
type UpdateInvoiceParams struct {
	ID               uuid.UUID
	Status           InvoiceStatus
	PaidAt           pgtype.Timestamptz
	PaidAmount       pgtype.Numeric
	PaymentMethod    pgtype.Text
	PaymentReference pgtype.Text
	Notes            pgtype.Text
	DueDate          time.Time
}

func (q *Queries) UpdateInvoice(ctx context.Context, arg UpdateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, updateInvoice,
		arg.ID,
		arg.Status,
		arg.PaidAt,
		arg.PaidAmount,
		arg.PaymentMethod,
		arg.PaymentReference,
		arg.Notes,
		arg.DueDate,
	)
	return scanInvoice(row)
}

const listInvoices = `-- name: ListInvoices :many
SELECT ` + invoiceColumns + ` FROM invoices
WHERE ($1::uuid IS NULL OR restaurant_id = $1::uuid)
  AND ($2::uuid IS NULL OR supplier_id = $2::uuid)
  AND ($3::text IS NULL OR status = $3::text)
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`

type ListInvoicesParams struct {
	RestaurantID pgtype.UUID
	SupplierID   pgtype.UUID
	Status       pgtype.Text
	Limit        int32
	Offset       int32
}

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoices,
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
	items := []Invoice{}
	for rows.Next() {
		i, err := scanInvoice(rows)
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
