// Package service holds the procurement state machines: orders, approvals,
// invoices and the inventory ledger. Every write runs in one transaction;
// events collected along the way are dispatched only after commit.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/procurement/internal/auth"
	"github.com/kiwari-pos/procurement/internal/database"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxInvoiceNumberRetries = 3

var tracer = otel.Tracer("github.com/kiwari-pos/procurement/internal/service")

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is a TxBeginner that can also run single statements.
// Satisfied by *pgxpool.Pool.
type Pool interface {
	TxBeginner
	database.DBTX
}

// Principal is the authenticated caller. Exactly one of RestaurantID and
// SupplierID is normally set.
type Principal struct {
	UserID       uuid.UUID
	RestaurantID uuid.UUID
	SupplierID   uuid.UUID
	Role         string
}

func PrincipalFromClaims(c *auth.Claims) Principal {
	return Principal{
		UserID:       c.UserID,
		RestaurantID: c.RestaurantID,
		SupplierID:   c.SupplierID,
		Role:         c.Role,
	}
}

// canSee reports whether the caller is a party to a restaurant/supplier pair.
func (p Principal) canSee(restaurantID, supplierID uuid.UUID) bool {
	if p.RestaurantID != uuid.Nil && p.RestaurantID == restaurantID {
		return true
	}
	return p.SupplierID != uuid.Nil && p.SupplierID == supplierID
}

func (p Principal) isRestaurant(restaurantID uuid.UUID) bool {
	return p.RestaurantID != uuid.Nil && p.RestaurantID == restaurantID
}

// scopeFilter narrows list queries to the caller's side of the relationship.
func (p Principal) scopeFilter() (restaurantID, supplierID pgtype.UUID) {
	if p.RestaurantID != uuid.Nil {
		return pgtype.UUID{Bytes: p.RestaurantID, Valid: true}, pgtype.UUID{}
	}
	return pgtype.UUID{}, pgtype.UUID{Bytes: p.SupplierID, Valid: true}
}

// isUniqueViolation checks for pgconn error 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

// isInvoiceNumberConflict reports a race between two invoices of one supplier
// picking the same sequence number.
func isInvoiceNumberConflict(err error) bool {
	return isUniqueViolation(err, "invoices_supplier_id_invoice_number_key")
}

func isInvoiceOrderConflict(err error) bool {
	return isUniqueViolation(err, "invoices_order_id_key")
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func clampLimit(limit, offset int32) (int32, int32) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
