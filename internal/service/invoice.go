package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/procurement/internal/apperr"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/enum"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/money"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// invoiceWriter is what invoice creation needs from the store.
type invoiceWriter interface {
	GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	CountInvoicesBySupplier(ctx context.Context, supplierID uuid.UUID) (int64, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
}

// InvoiceStore defines the DB methods needed by the invoice service.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (database.Invoice, error)
	UpdateInvoice(ctx context.Context, arg database.UpdateInvoiceParams) (database.Invoice, error)
	ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	invoiceWriter
}

type NewInvoiceStore func(db database.DBTX) InvoiceStore

// invoiceTransitions lists the allowed target statuses per current status.
// PAID and CANCELLED are terminal.
var invoiceTransitions = map[database.InvoiceStatus][]database.InvoiceStatus{
	database.InvoiceStatusPENDING: {
		database.InvoiceStatusPAID, database.InvoiceStatusPARTIALLYPAID, database.InvoiceStatusCANCELLED,
	},
	database.InvoiceStatusOVERDUE: {
		database.InvoiceStatusPAID, database.InvoiceStatusPARTIALLYPAID, database.InvoiceStatusCANCELLED, database.InvoiceStatusDISPUTED,
	},
	database.InvoiceStatusPARTIALLYPAID: {
		database.InvoiceStatusPAID, database.InvoiceStatusCANCELLED,
	},
	database.InvoiceStatusDISPUTED: {
		database.InvoiceStatusPAID, database.InvoiceStatusCANCELLED,
	},
}

// ValidateInvoiceTransition checks one edge of the payment state machine.
func ValidateInvoiceTransition(from, to database.InvoiceStatus) error {
	allowed, ok := invoiceTransitions[from]
	if !ok || len(allowed) == 0 {
		return apperr.InvalidTransition(fmt.Sprintf("Cannot transition from %s", from))
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.InvalidTransition(fmt.Sprintf("Invalid transition from %s to %s", from, to))
}

func ParseInvoiceStatus(s string) (database.InvoiceStatus, error) {
	switch st := database.InvoiceStatus(s); st {
	case database.InvoiceStatusPENDING, database.InvoiceStatusOVERDUE, database.InvoiceStatusPARTIALLYPAID,
		database.InvoiceStatusDISPUTED, database.InvoiceStatusPAID, database.InvoiceStatusCANCELLED:
		return st, nil
	}
	return "", apperr.Validation("Invalid invoice status")
}

func validPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodBankTransfer, enum.PaymentMethodCard, enum.PaymentMethodCheck, enum.PaymentMethodCash:
		return true
	}
	return false
}

// invoiceNumber formats INV-{last 4 of supplier id}-{seq}.
func invoiceNumber(supplierID uuid.UUID, seq int64) string {
	id := strings.ToUpper(supplierID.String())
	return fmt.Sprintf("INV-%s-%05d", id[len(id)-4:], seq)
}

// invoiceAmounts copies the order's tax and total. The subtotal absorbs the
// delivery fee and discount so that total = subtotal + tax holds.
func invoiceAmounts(order database.Order) (subtotal, tax, total decimal.Decimal) {
	total = money.FromNumeric(order.Total)
	tax = money.FromNumeric(order.Tax)
	return total.Sub(tax), tax, total
}

func insertInvoice(ctx context.Context, store invoiceWriter, order database.Order, status database.InvoiceStatus, dueDate time.Time, notes pgtype.Text) (database.Invoice, error) {
	count, err := store.CountInvoicesBySupplier(ctx, order.SupplierID)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("count supplier invoices: %w", err)
	}

	subtotal, tax, total := invoiceAmounts(order)
	inv, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		InvoiceNumber: invoiceNumber(order.SupplierID, count+1),
		Status:        status,
		Subtotal:      money.ToNumeric(subtotal),
		Tax:           money.ToNumeric(tax),
		Total:         money.ToNumeric(total),
		DueDate:       dueDate,
		Notes:         notes,
		RestaurantID:  order.RestaurantID,
		SupplierID:    order.SupplierID,
		OrderID:       order.ID,
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

// generateInvoice issues the invoice for a just-delivered order inside the
// caller's transaction. An existing invoice for the order is returned as is.
func generateInvoice(ctx context.Context, store invoiceWriter, order database.Order, now time.Time) (database.Invoice, error) {
	existing, err := store.GetInvoiceByOrder(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, fmt.Errorf("get invoice by order: %w", err)
	}

	due := now.AddDate(0, 0, enum.InvoiceDueDays)
	inv, err := insertInvoice(ctx, store, order, database.InvoiceStatusPENDING, due, pgtype.Text{})
	if err != nil {
		return database.Invoice{}, err
	}

	_, err = store.CreateNotification(ctx, database.CreateNotificationParams{
		UserID:    order.CreatedBy,
		Type:      enum.NotificationInvoiceIssued,
		Title:     "Invoice Issued",
		Message:   fmt.Sprintf("Invoice %s for order %s: %s due %s", inv.InvoiceNumber, order.OrderNumber, money.String(money.FromNumeric(inv.Total)), due.Format("2006-01-02")),
		OrderID:   pgtype.UUID{Bytes: order.ID, Valid: true},
		InvoiceID: pgtype.UUID{Bytes: inv.ID, Valid: true},
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("create invoice notification: %w", err)
	}
	return inv, nil
}

// InvoiceUpdate is a partial update. Nil fields are left unchanged.
type InvoiceUpdate struct {
	Status           *string
	PaidAmount       *decimal.Decimal
	PaymentMethod    *string
	PaymentReference *string
	Notes            *string
	DueDate          *time.Time
}

type CreateInvoiceInput struct {
	OrderID uuid.UUID
	DueDate *time.Time
	Notes   *string
}

// InvoiceService owns invoices after issue.
type InvoiceService struct {
	pool       Pool
	newStore   NewInvoiceStore
	dispatcher *events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewInvoiceService(pool Pool, newStore NewInvoiceStore, dispatcher *events.Dispatcher, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		pool:       pool,
		newStore:   newStore,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Update applies a status transition and/or field changes under a row lock.
func (s *InvoiceService) Update(ctx context.Context, p Principal, invoiceID uuid.UUID, in InvoiceUpdate) (inv database.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Update", trace.WithAttributes(
		attribute.String("invoice.id", invoiceID.String()),
	))
	defer func() { finishSpan(span, err) }()

	var target database.InvoiceStatus
	if in.Status != nil {
		if target, err = ParseInvoiceStatus(*in.Status); err != nil {
			return database.Invoice{}, err
		}
	}
	if in.PaymentMethod != nil && !validPaymentMethod(*in.PaymentMethod) {
		return database.Invoice{}, apperr.Validation("Invalid paymentMethod")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetInvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, apperr.NotFound("Invoice not found")
		}
		return database.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	if !p.canSee(current.RestaurantID, current.SupplierID) {
		return database.Invoice{}, apperr.NotFound("Invoice not found")
	}

	now := s.now()
	next := database.UpdateInvoiceParams{
		ID:               current.ID,
		Status:           current.Status,
		PaidAt:           current.PaidAt,
		PaidAmount:       current.PaidAmount,
		PaymentMethod:    current.PaymentMethod,
		PaymentReference: current.PaymentReference,
		Notes:            current.Notes,
		DueDate:          current.DueDate,
	}

	if in.Status != nil {
		if err := ValidateInvoiceTransition(current.Status, target); err != nil {
			return database.Invoice{}, err
		}
		total := money.FromNumeric(current.Total)
		// Guards compare the amount as it will be stored.
		var paid *decimal.Decimal
		if in.PaidAmount != nil {
			rounded := money.Round(*in.PaidAmount)
			paid = &rounded
		}
		switch target {
		case database.InvoiceStatusPAID:
			amount := total
			if paid != nil {
				if !paid.IsPositive() {
					return database.Invoice{}, apperr.Validation("PAID requires paidAmount > 0")
				}
				amount = *paid
			}
			next.PaidAt = pgtype.Timestamptz{Time: now, Valid: true}
			next.PaidAmount = money.ToNumeric(amount)
		case database.InvoiceStatusPARTIALLYPAID:
			if paid == nil || !paid.IsPositive() {
				return database.Invoice{}, apperr.Validation("PARTIALLY_PAID requires paidAmount > 0")
			}
			if !paid.LessThan(total) {
				return database.Invoice{}, apperr.Validation("PARTIALLY_PAID requires paidAmount < total")
			}
			next.PaidAmount = money.ToNumeric(*paid)
		}
		next.Status = target
	}
	if in.PaymentMethod != nil {
		next.PaymentMethod = textOrNull(in.PaymentMethod)
	}
	if in.PaymentReference != nil {
		next.PaymentReference = textOrNull(in.PaymentReference)
	}
	if in.Notes != nil {
		next.Notes = textOrNull(in.Notes)
	}
	if in.DueDate != nil {
		next.DueDate = *in.DueDate
	}

	inv, err = store.UpdateInvoice(ctx, next)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Invoice{}, fmt.Errorf("commit tx: %w", err)
	}

	if inv.Status != current.Status {
		s.dispatcher.Dispatch(ctx, events.New(events.TypeInvoiceStatusChanged, inv.OrderID.String(), inv.RestaurantID, now, events.InvoiceStatusChanged{
			InvoiceID:      inv.ID,
			InvoiceNumber:  inv.InvoiceNumber,
			OrderID:        inv.OrderID,
			PreviousStatus: string(current.Status),
			NewStatus:      string(inv.Status),
		}))
	}
	return inv, nil
}

// Create issues an invoice by hand for an order that has none. Status is
// PENDING when the due date lies ahead, OVERDUE otherwise.
func (s *InvoiceService) Create(ctx context.Context, p Principal, in CreateInvoiceInput) (inv database.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Create", trace.WithAttributes(
		attribute.String("order.id", in.OrderID.String()),
	))
	defer func() { finishSpan(span, err) }()

	for attempt := 0; attempt < maxInvoiceNumberRetries; attempt++ {
		inv, err = s.createTx(ctx, p, in)
		if err == nil || !isInvoiceNumberConflict(err) {
			break
		}
	}
	if isInvoiceOrderConflict(err) {
		return database.Invoice{}, apperr.Validation("Invoice already exists for this order")
	}
	return inv, err
}

func (s *InvoiceService) createTx(ctx context.Context, p Principal, in CreateInvoiceInput) (database.Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, apperr.NotFound("Order not found")
		}
		return database.Invoice{}, fmt.Errorf("get order: %w", err)
	}
	if !p.canSee(order.RestaurantID, order.SupplierID) {
		return database.Invoice{}, apperr.NotFound("Order not found")
	}
	if order.Status == database.OrderStatusCANCELLED || order.Status == database.OrderStatusDRAFT {
		return database.Invoice{}, apperr.InvalidState(fmt.Sprintf("Cannot invoice a %s order", strings.ToLower(string(order.Status))))
	}

	_, err = store.GetInvoiceByOrder(ctx, order.ID)
	if err == nil {
		return database.Invoice{}, apperr.Validation("Invoice already exists for this order")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, fmt.Errorf("get invoice by order: %w", err)
	}

	now := s.now()
	due := now.AddDate(0, 0, enum.InvoiceDueDays)
	if in.DueDate != nil {
		due = *in.DueDate
	}
	status := database.InvoiceStatusOVERDUE
	if due.After(now) {
		status = database.InvoiceStatusPENDING
	}

	inv, err := insertInvoice(ctx, store, order, status, due, textOrNull(in.Notes))
	if err != nil {
		return database.Invoice{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Invoice{}, fmt.Errorf("commit tx: %w", err)
	}
	return inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, p Principal, invoiceID uuid.UUID) (database.Invoice, error) {
	inv, err := s.newStore(s.pool).GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Invoice{}, apperr.NotFound("Invoice not found")
		}
		return database.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	if !p.canSee(inv.RestaurantID, inv.SupplierID) {
		return database.Invoice{}, apperr.NotFound("Invoice not found")
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, p Principal, status string, limit, offset int32) ([]database.Invoice, error) {
	filter := pgtype.Text{}
	if status != "" {
		st, err := ParseInvoiceStatus(status)
		if err != nil {
			return nil, err
		}
		filter = pgtype.Text{String: string(st), Valid: true}
	}

	rid, sid := p.scopeFilter()
	limit, offset = clampLimit(limit, offset)
	invoices, err := s.newStore(s.pool).ListInvoices(ctx, database.ListInvoicesParams{
		RestaurantID: rid,
		SupplierID:   sid,
		Status:       filter,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}
