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
	"github.com/kiwari-pos/procurement/internal/enum"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/money"
	"github.com/kiwari-pos/procurement/internal/role"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ApprovalVerdict is the outcome of evaluating a restaurant's rules.
type ApprovalVerdict struct {
	Required bool
	// RequiredRole is the highest role demanded by a matching rule, empty
	// when no rule matched.
	RequiredRole string
}

// EvaluateApproval decides whether an order of total T submitted by
// submitterRole needs sign-off. A rule matches when min <= T and, if max is
// set, T <= max. The submitter bypasses when their rank reaches the highest
// rank among matching rules.
func EvaluateApproval(total decimal.Decimal, submitterRole string, rules []database.ApprovalRule) ApprovalVerdict {
	reqMax := -1
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if total.LessThan(money.FromNumeric(r.MinAmount)) {
			continue
		}
		if r.MaxAmount.Valid && total.GreaterThan(money.FromNumeric(r.MaxAmount)) {
			continue
		}
		rank, ok := role.Rank(r.RequiredRole)
		if !ok {
			rank = role.RankOwner
		}
		if rank > reqMax {
			reqMax = rank
		}
	}
	if reqMax < 0 {
		return ApprovalVerdict{}
	}

	required, _ := role.ForRank(reqMax)
	return ApprovalVerdict{
		Required:     !role.AtLeast(submitterRole, required),
		RequiredRole: required,
	}
}

// ReviewInput is a reviewer's decision.
type ReviewInput struct {
	Status string
	Notes  *string
}

// ReviewResult is the resumed order with the resolved approval.
type ReviewResult struct {
	Order    database.Order
	Approval database.OrderApproval
}

// ApprovalService resolves pending order approvals.
type ApprovalService struct {
	pool       Pool
	newStore   NewOrderStore
	dispatcher *events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewApprovalService(pool Pool, newStore NewOrderStore, dispatcher *events.Dispatcher, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		pool:       pool,
		newStore:   newStore,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Review approves or rejects the order's pending approval. The approval,
// the order's resumed status and the requester's notification commit together.
func (s *ApprovalService) Review(ctx context.Context, p Principal, orderID uuid.UUID, in ReviewInput) (res *ReviewResult, err error) {
	ctx, span := tracer.Start(ctx, "ApprovalService.Review", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("approval.status", in.Status),
	))
	defer func() { finishSpan(span, err) }()

	if !role.AtLeast(p.Role, enum.UserRoleManager) {
		return nil, apperr.Forbidden("Insufficient permissions")
	}

	var decision database.ApprovalStatus
	switch database.ApprovalStatus(in.Status) {
	case database.ApprovalStatusAPPROVED, database.ApprovalStatusREJECTED:
		decision = database.ApprovalStatus(in.Status)
	default:
		return nil, apperr.Validation("status must be APPROVED or REJECTED")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !p.isRestaurant(order.RestaurantID) {
		return nil, apperr.NotFound("Order not found")
	}

	approval, err := store.GetPendingApprovalForUpdate(ctx, order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("No pending approval for this order")
		}
		return nil, fmt.Errorf("get pending approval: %w", err)
	}
	if order.Status != database.OrderStatusAWAITINGAPPROVAL {
		return nil, apperr.InvalidState("Order is not awaiting approval")
	}

	requester, err := store.GetUser(ctx, approval.RequestedBy)
	if err != nil {
		return nil, fmt.Errorf("get requester: %w", err)
	}

	now := s.now()
	resolved, err := store.ResolveOrderApproval(ctx, database.ResolveOrderApprovalParams{
		ID:         approval.ID,
		Status:     decision,
		ReviewedBy: pgtype.UUID{Bytes: p.UserID, Valid: true},
		ReviewedAt: now,
		Notes:      textOrNull(in.Notes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("No pending approval for this order")
		}
		return nil, fmt.Errorf("resolve approval: %w", err)
	}

	t := &transition{
		store:  store,
		order:  order,
		actor:  p,
		now:    now,
		outbox: &events.Outbox{},
	}

	notifType, title := enum.NotificationOrderRejected, "Order Rejected"
	if decision == database.ApprovalStatusAPPROVED {
		notifType, title = enum.NotificationOrderApproved, "Order Approved"
		supplier, err := t.getSupplier(ctx)
		if err != nil {
			return nil, err
		}
		if err := t.toPending(ctx, supplier); err != nil {
			return nil, err
		}
	} else {
		if err := t.move(ctx, database.OrderStatusDRAFT, pgtype.Timestamptz{}, pgtype.Timestamptz{}); err != nil {
			return nil, err
		}
	}

	message := fmt.Sprintf("Order %s is now %s", t.order.OrderNumber, t.order.Status)
	if in.Notes != nil && *in.Notes != "" {
		message += ": " + *in.Notes
	}
	if _, err := store.CreateNotification(ctx, database.CreateNotificationParams{
		UserID:  requester.ID,
		Type:    notifType,
		Title:   title,
		Message: message,
		OrderID: pgtype.UUID{Bytes: t.order.ID, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.dispatcher.Dispatch(ctx, t.outbox.Events()...)

	return &ReviewResult{Order: t.order, Approval: resolved}, nil
}

// --- Rule management ---

// ApprovalRuleStore defines the DB methods for approval rule CRUD.
type ApprovalRuleStore interface {
	ListActiveApprovalRules(ctx context.Context, restaurantID uuid.UUID) ([]database.ApprovalRule, error)
	CreateApprovalRule(ctx context.Context, arg database.CreateApprovalRuleParams) (database.ApprovalRule, error)
	DeleteApprovalRule(ctx context.Context, arg database.DeleteApprovalRuleParams) (uuid.UUID, error)
}

type CreateRuleInput struct {
	MinAmount    decimal.Decimal
	MaxAmount    *decimal.Decimal
	RequiredRole string
}

type ApprovalRuleService struct {
	store ApprovalRuleStore
}

func NewApprovalRuleService(store ApprovalRuleStore) *ApprovalRuleService {
	return &ApprovalRuleService{store: store}
}

func (s *ApprovalRuleService) List(ctx context.Context, p Principal) ([]database.ApprovalRule, error) {
	if p.RestaurantID == uuid.Nil {
		return nil, apperr.NotFound("Restaurant not found")
	}
	rules, err := s.store.ListActiveApprovalRules(ctx, p.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("list approval rules: %w", err)
	}
	return rules, nil
}

func (s *ApprovalRuleService) Create(ctx context.Context, p Principal, in CreateRuleInput) (database.ApprovalRule, error) {
	if p.RestaurantID == uuid.Nil {
		return database.ApprovalRule{}, apperr.NotFound("Restaurant not found")
	}
	if !role.AtLeast(p.Role, enum.UserRoleManager) {
		return database.ApprovalRule{}, apperr.Forbidden("Insufficient permissions")
	}
	if in.MinAmount.IsNegative() {
		return database.ApprovalRule{}, apperr.Validation("minAmount cannot be negative")
	}
	if in.MaxAmount != nil && in.MaxAmount.LessThan(in.MinAmount) {
		return database.ApprovalRule{}, apperr.Validation("maxAmount must be greater than or equal to minAmount")
	}
	if !role.Valid(in.RequiredRole) {
		return database.ApprovalRule{}, apperr.Validation("Invalid requiredRole")
	}

	rule, err := s.store.CreateApprovalRule(ctx, database.CreateApprovalRuleParams{
		RestaurantID: p.RestaurantID,
		MinAmount:    money.ToNumeric(in.MinAmount),
		MaxAmount:    money.NullableToNumeric(in.MaxAmount),
		RequiredRole: in.RequiredRole,
		CreatedBy:    p.UserID,
	})
	if err != nil {
		return database.ApprovalRule{}, fmt.Errorf("create approval rule: %w", err)
	}
	return rule, nil
}

func (s *ApprovalRuleService) Delete(ctx context.Context, p Principal, ruleID uuid.UUID) error {
	if p.RestaurantID == uuid.Nil {
		return apperr.NotFound("Restaurant not found")
	}
	if !role.AtLeast(p.Role, enum.UserRoleOwner) {
		return apperr.Forbidden("Only owners can delete approval rules")
	}
	_, err := s.store.DeleteApprovalRule(ctx, database.DeleteApprovalRuleParams{
		ID:           ruleID,
		RestaurantID: p.RestaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Approval rule not found")
		}
		return fmt.Errorf("delete approval rule: %w", err)
	}
	return nil
}
