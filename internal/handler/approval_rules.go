package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/money"
	"github.com/kiwari-pos/procurement/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApprovalRuleServicer is satisfied by *service.ApprovalRuleService.
type ApprovalRuleServicer interface {
	List(ctx context.Context, p service.Principal) ([]database.ApprovalRule, error)
	Create(ctx context.Context, p service.Principal, in service.CreateRuleInput) (database.ApprovalRule, error)
	Delete(ctx context.Context, p service.Principal, ruleID uuid.UUID) error
}

type ApprovalRuleHandler struct {
	svc    ApprovalRuleServicer
	logger *zap.Logger
}

func NewApprovalRuleHandler(svc ApprovalRuleServicer, logger *zap.Logger) *ApprovalRuleHandler {
	return &ApprovalRuleHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers rule endpoints. Expected to be mounted at /approval-rules.
func (h *ApprovalRuleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

type createRuleRequest struct {
	MinAmount    money.Amount  `json:"minAmount"`
	MaxAmount    *money.Amount `json:"maxAmount"`
	RequiredRole string        `json:"requiredRole"`
}

type ruleResponse struct {
	ID           uuid.UUID     `json:"id"`
	RestaurantID uuid.UUID     `json:"restaurantId"`
	MinAmount    money.Amount  `json:"minAmount"`
	MaxAmount    *money.Amount `json:"maxAmount"`
	RequiredRole string        `json:"requiredRole"`
	IsActive     bool          `json:"isActive"`
	CreatedBy    uuid.UUID     `json:"createdBy"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// List handles GET /approval-rules.
func (h *ApprovalRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	rules, err := h.svc.List(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, "list approval rules", err)
		return
	}
	resp := make([]ruleResponse, len(rules))
	for i, rule := range rules {
		resp[i] = toRuleResponse(rule)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /approval-rules.
func (h *ApprovalRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.CreateRuleInput{
		MinAmount:    req.MinAmount.Decimal(),
		RequiredRole: req.RequiredRole,
	}
	if req.MaxAmount != nil {
		d := decimal.Decimal(*req.MaxAmount)
		in.MaxAmount = &d
	}

	rule, err := h.svc.Create(r.Context(), p, in)
	if err != nil {
		writeError(w, h.logger, "create approval rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// Delete handles DELETE /approval-rules/{id}.
func (h *ApprovalRuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "approval rule")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.logger, "delete approval rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toRuleResponse(rule database.ApprovalRule) ruleResponse {
	return ruleResponse{
		ID:           rule.ID,
		RestaurantID: rule.RestaurantID,
		MinAmount:    money.NewAmount(rule.MinAmount),
		MaxAmount:    money.NewAmountPtr(rule.MaxAmount),
		RequiredRole: rule.RequiredRole,
		IsActive:     rule.IsActive,
		CreatedBy:    rule.CreatedBy,
		CreatedAt:    rule.CreatedAt,
	}
}
