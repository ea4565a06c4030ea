package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/procurement/internal/apperr"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/money"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OrderStore defines the DB methods needed to move orders through their
// lifecycle. Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (database.Supplier, error)
	GetUser(ctx context.Context, id uuid.UUID) (database.User, error)
	ListActiveApprovalRules(ctx context.Context, restaurantID uuid.UUID) ([]database.ApprovalRule, error)
	CreateOrderApproval(ctx context.Context, arg database.CreateOrderApprovalParams) (database.OrderApproval, error)
	GetPendingApprovalForUpdate(ctx context.Context, orderID uuid.UUID) (database.OrderApproval, error)
	ResolveOrderApproval(ctx context.Context, arg database.ResolveOrderApprovalParams) (database.OrderApproval, error)
	ListApprovalsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderApproval, error)
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
	invoiceWriter
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Command is one of Submit, Cancel, Confirm, Ship or Deliver.
type Command interface {
	Name() string
	apply(ctx context.Context, t *transition) error
}

type (
	Submit  struct{}
	Cancel  struct{}
	Confirm struct{}
	Ship    struct{}
	Deliver struct{}
)

func (Submit) Name() string  { return "submit" }
func (Cancel) Name() string  { return "cancel" }
func (Confirm) Name() string { return "confirm" }
func (Ship) Name() string    { return "ship" }
func (Deliver) Name() string { return "deliver" }

// ParseCommand decodes a client-supplied action.
func ParseCommand(action string) (Command, error) {
	switch action {
	case "submit":
		return Submit{}, nil
	case "cancel":
		return Cancel{}, nil
	case "confirm":
		return Confirm{}, nil
	case "ship":
		return Ship{}, nil
	case "deliver":
		return Deliver{}, nil
	}
	return nil, apperr.Validation("Invalid action")
}

// OrderResult is an order after a command, with the rows the command created.
type OrderResult struct {
	Order    database.Order
	Approval *database.OrderApproval
	Invoice  *database.Invoice
}

// OrderDetail is an order with its approval history and invoice.
type OrderDetail struct {
	Order     database.Order
	Approvals []database.OrderApproval
	Invoice   *database.Invoice
}

// OrderService handles order lifecycle business logic.
type OrderService struct {
	pool       Pool
	newStore   NewOrderStore
	dispatcher *events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrderService(pool Pool, newStore NewOrderStore, dispatcher *events.Dispatcher, logger *zap.Logger) *OrderService {
	return &OrderService{
		pool:       pool,
		newStore:   newStore,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Apply runs cmd against the order. Deliveries are retried when a concurrent
// delivery for the same supplier took the invoice number first.
func (s *OrderService) Apply(ctx context.Context, p Principal, orderID uuid.UUID, cmd Command) (res *OrderResult, err error) {
	if cmd == nil {
		return nil, apperr.Validation("Invalid action")
	}
	ctx, span := tracer.Start(ctx, "OrderService.Apply", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.action", cmd.Name()),
	))
	defer func() { finishSpan(span, err) }()

	var lastErr error
	for attempt := 0; attempt < maxInvoiceNumberRetries; attempt++ {
		out, txErr := s.applyTx(ctx, p, orderID, cmd)
		if txErr == nil {
			return out, nil
		}
		if isInvoiceNumberConflict(txErr) || isInvoiceOrderConflict(txErr) {
			s.logger.Info("invoice conflict, retrying delivery",
				zap.String("order_id", orderID.String()),
				zap.Int("attempt", attempt+1),
			)
			lastErr = txErr
			continue
		}
		return nil, txErr
	}
	return nil, &apperr.Error{Kind: apperr.KindConflict, Message: "Invoice number conflict, retry", Err: lastErr}
}

func (s *OrderService) applyTx(ctx context.Context, p Principal, orderID uuid.UUID, cmd Command) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock the row so the guards below see the state we will update.
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !p.canSee(order.RestaurantID, order.SupplierID) {
		return nil, apperr.NotFound("Order not found")
	}

	t := &transition{
		store:  store,
		order:  order,
		actor:  p,
		now:    s.now(),
		outbox: &events.Outbox{},
	}
	if err := cmd.apply(ctx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.dispatcher.Dispatch(ctx, t.outbox.Events()...)

	return &OrderResult{Order: t.order, Approval: t.approval, Invoice: t.invoice}, nil
}

// Get returns an order visible to the caller.
func (s *OrderService) Get(ctx context.Context, p Principal, orderID uuid.UUID) (*OrderDetail, error) {
	store := s.newStore(s.pool)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !p.canSee(order.RestaurantID, order.SupplierID) {
		return nil, apperr.NotFound("Order not found")
	}

	approvals, err := store.ListApprovalsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}

	detail := &OrderDetail{Order: order, Approvals: approvals}
	inv, err := store.GetInvoiceByOrder(ctx, order.ID)
	switch {
	case err == nil:
		detail.Invoice = &inv
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return detail, nil
}

// List returns the caller's orders, newest first. status is optional.
func (s *OrderService) List(ctx context.Context, p Principal, status string, limit, offset int32) ([]database.Order, error) {
	filter := pgtype.Text{}
	if status != "" {
		st, err := ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter = pgtype.Text{String: string(st), Valid: true}
	}

	rid, sid := p.scopeFilter()
	limit, offset = clampLimit(limit, offset)
	orders, err := s.newStore(s.pool).ListOrders(ctx, database.ListOrdersParams{
		RestaurantID: rid,
		SupplierID:   sid,
		Status:       filter,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func ParseOrderStatus(s string) (database.OrderStatus, error) {
	switch st := database.OrderStatus(s); st {
	case database.OrderStatusDRAFT, database.OrderStatusAWAITINGAPPROVAL, database.OrderStatusPENDING,
		database.OrderStatusCONFIRMED, database.OrderStatusSHIPPED, database.OrderStatusDELIVERED,
		database.OrderStatusCANCELLED:
		return st, nil
	}
	return "", apperr.Validation("Invalid order status")
}

// --- Transitions ---

// transition is the state shared by one command inside its transaction.
type transition struct {
	store  OrderStore
	order  database.Order
	actor  Principal
	now    time.Time
	outbox *events.Outbox

	approval *database.OrderApproval
	invoice  *database.Invoice
}

// move performs the conditional status update and records the change event.
func (t *transition) move(ctx context.Context, to database.OrderStatus, deliveryDate, deliveredAt pgtype.Timestamptz) error {
	from := t.order.Status
	updated, err := t.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:           t.order.ID,
		Status:       to,
		FromStatus:   from,
		DeliveryDate: deliveryDate,
		DeliveredAt:  deliveredAt,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Conflict("Order was modified concurrently, retry")
		}
		return fmt.Errorf("update order status: %w", err)
	}
	t.order = updated

	t.outbox.Add(events.New(events.TypeOrderStatusChanged, updated.ID.String(), updated.RestaurantID, t.now, events.OrderStatusChanged{
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		RestaurantID:   updated.RestaurantID,
		SupplierID:     updated.SupplierID,
		PreviousStatus: string(from),
		NewStatus:      string(to),
	}))
	return nil
}

// toPending releases the order to the supplier with a delivery date derived
// from the supplier's lead time.
func (t *transition) toPending(ctx context.Context, supplier database.Supplier) error {
	dd := t.now.AddDate(0, 0, int(supplier.LeadTimeDays))
	if err := t.move(ctx, database.OrderStatusPENDING, pgtype.Timestamptz{Time: dd, Valid: true}, pgtype.Timestamptz{}); err != nil {
		return err
	}
	t.notify(events.TypeNotifyOrderSubmitted, events.RecipientSupplier, "New purchase order "+t.order.OrderNumber, func(n *events.Notification) {
		n.DeliveryDate = &dd
	})
	return nil
}

func (t *transition) notify(typ, recipient, subject string, opts ...func(*events.Notification)) {
	n := events.Notification{
		Recipient:    recipient,
		OrderID:      t.order.ID,
		OrderNumber:  t.order.OrderNumber,
		RestaurantID: t.order.RestaurantID,
		SupplierID:   t.order.SupplierID,
		Subject:      subject,
	}
	for _, opt := range opts {
		opt(&n)
	}
	t.outbox.Add(events.New(typ, t.order.ID.String(), t.order.RestaurantID, t.now, n))
}

func (t *transition) getSupplier(ctx context.Context) (database.Supplier, error) {
	supplier, err := t.store.GetSupplier(ctx, t.order.SupplierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Supplier{}, apperr.NotFound("Supplier not found")
		}
		return database.Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	return supplier, nil
}

func (Submit) apply(ctx context.Context, t *transition) error {
	if !t.actor.isRestaurant(t.order.RestaurantID) {
		return apperr.Forbidden("Only the ordering restaurant can submit orders")
	}
	if t.order.Status != database.OrderStatusDRAFT {
		return apperr.InvalidState("Can only submit draft orders")
	}

	supplier, err := t.getSupplier(ctx)
	if err != nil {
		return err
	}
	switch supplier.Status {
	case database.SupplierStatusSUSPENDED:
		return apperr.SupplierUnavailable("supplier is suspended")
	case database.SupplierStatusINACTIVE:
		return apperr.SupplierUnavailable("supplier is inactive")
	}

	subtotal := money.FromNumeric(t.order.Subtotal)
	if supplier.MinimumOrder.Valid {
		minimum := money.FromNumeric(supplier.MinimumOrder)
		if subtotal.LessThan(minimum) {
			return apperr.BelowMinimum(fmt.Sprintf("Order subtotal %s is below the supplier minimum of %s",
				money.String(subtotal), money.String(minimum)))
		}
	}

	// One snapshot of the rules per submission.
	rules, err := t.store.ListActiveApprovalRules(ctx, t.order.RestaurantID)
	if err != nil {
		return fmt.Errorf("list approval rules: %w", err)
	}
	total := money.FromNumeric(t.order.Total)
	verdict := EvaluateApproval(total, t.actor.Role, rules)
	if !verdict.Required {
		return t.toPending(ctx, supplier)
	}

	if err := t.move(ctx, database.OrderStatusAWAITINGAPPROVAL, pgtype.Timestamptz{}, pgtype.Timestamptz{}); err != nil {
		return err
	}
	approval, err := t.store.CreateOrderApproval(ctx, database.CreateOrderApprovalParams{
		OrderID:     t.order.ID,
		RequestedBy: t.actor.UserID,
	})
	if err != nil {
		return fmt.Errorf("create order approval: %w", err)
	}
	t.approval = &approval

	t.outbox.Add(events.New(events.TypeOrderApprovalRequested, t.order.ID.String(), t.order.RestaurantID, t.now, events.ApprovalRequested{
		OrderID:      t.order.ID,
		ApprovalID:   approval.ID,
		RequestedBy:  t.actor.UserID,
		Total:        money.Amount(total),
		RequiredRole: verdict.RequiredRole,
	}))
	return nil
}

func (Cancel) apply(ctx context.Context, t *transition) error {
	if !t.actor.isRestaurant(t.order.RestaurantID) {
		return apperr.Forbidden("Only the ordering restaurant can cancel orders")
	}
	switch t.order.Status {
	case database.OrderStatusDRAFT, database.OrderStatusPENDING:
	case database.OrderStatusAWAITINGAPPROVAL:
		// No approval may stay pending for a cancelled order.
		approval, err := t.store.GetPendingApprovalForUpdate(ctx, t.order.ID)
		switch {
		case err == nil:
			notes := "Order cancelled"
			resolved, err := t.store.ResolveOrderApproval(ctx, database.ResolveOrderApprovalParams{
				ID:         approval.ID,
				Status:     database.ApprovalStatusREJECTED,
				ReviewedBy: pgtype.UUID{Bytes: t.actor.UserID, Valid: true},
				ReviewedAt: t.now,
				Notes:      textOrNull(&notes),
			})
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("reject pending approval: %w", err)
			}
			if err == nil {
				t.approval = &resolved
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("get pending approval: %w", err)
		}
	default:
		return apperr.InvalidState("Can only cancel draft, awaiting approval, or pending orders")
	}
	return t.move(ctx, database.OrderStatusCANCELLED, pgtype.Timestamptz{}, pgtype.Timestamptz{})
}

func (Confirm) apply(ctx context.Context, t *transition) error {
	if t.order.Status != database.OrderStatusPENDING {
		return apperr.InvalidState("Can only confirm pending orders")
	}
	if err := t.move(ctx, database.OrderStatusCONFIRMED, pgtype.Timestamptz{}, pgtype.Timestamptz{}); err != nil {
		return err
	}
	t.notify(events.TypeNotifyOrderConfirmed, events.RecipientRestaurant, "Order "+t.order.OrderNumber+" confirmed")
	return nil
}

func (Ship) apply(ctx context.Context, t *transition) error {
	if t.order.Status != database.OrderStatusCONFIRMED {
		return apperr.InvalidState("Can only ship confirmed orders")
	}
	if err := t.move(ctx, database.OrderStatusSHIPPED, pgtype.Timestamptz{}, pgtype.Timestamptz{}); err != nil {
		return err
	}
	t.notify(events.TypeNotifyOrderShipped, events.RecipientRestaurant, "Order "+t.order.OrderNumber+" shipped")
	return nil
}

// Deliver marks the order delivered and issues its invoice in the same
// transaction. A failure anywhere rolls both back.
func (Deliver) apply(ctx context.Context, t *transition) error {
	if t.order.Status != database.OrderStatusSHIPPED {
		return apperr.InvalidState("Can only deliver shipped orders")
	}
	if err := t.move(ctx, database.OrderStatusDELIVERED, pgtype.Timestamptz{}, pgtype.Timestamptz{Time: t.now, Valid: true}); err != nil {
		return err
	}

	inv, err := generateInvoice(ctx, t.store, t.order, t.now)
	if err != nil {
		return err
	}
	t.invoice = &inv

	total := money.NewAmount(t.order.Total)
	t.outbox.Add(events.New(events.TypeOrderDelivered, t.order.ID.String(), t.order.RestaurantID, t.now, events.OrderDelivered{
		OrderID:       t.order.ID,
		RestaurantID:  t.order.RestaurantID,
		SupplierID:    t.order.SupplierID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Total:         total,
		DeliveredAt:   t.now.UTC(),
	}))
	t.notify(events.TypeNotifyOrderDelivered, events.RecipientRestaurant, "Order "+t.order.OrderNumber+" delivered", func(n *events.Notification) {
		n.InvoiceNumber = inv.InvoiceNumber
		n.Total = &total
	})
	return nil
}
