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
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Apply(ctx context.Context, p service.Principal, orderID uuid.UUID, cmd service.Command) (*service.OrderResult, error)
	Get(ctx context.Context, p service.Principal, orderID uuid.UUID) (*service.OrderDetail, error)
	List(ctx context.Context, p service.Principal, status string, limit, offset int32) ([]database.Order, error)
}

// ApprovalReviewer is satisfied by *service.ApprovalService.
type ApprovalReviewer interface {
	Review(ctx context.Context, p service.Principal, orderID uuid.UUID, in service.ReviewInput) (*service.ReviewResult, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc       OrderServicer
	approvals ApprovalReviewer
	logger    *zap.Logger
}

func NewOrderHandler(svc OrderServicer, approvals ApprovalReviewer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, approvals: approvals, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Act)
	r.Post("/{id}/approval", h.Review)
}

// --- Request / Response types ---

type actionRequest struct {
	Action string `json:"action"`
}

type reviewRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

type orderResponse struct {
	ID           uuid.UUID    `json:"id"`
	OrderNumber  string       `json:"orderNumber"`
	Status       string       `json:"status"`
	Subtotal     money.Amount `json:"subtotal"`
	Tax          money.Amount `json:"tax"`
	DeliveryFee  money.Amount `json:"deliveryFee"`
	Discount     money.Amount `json:"discount"`
	Total        money.Amount `json:"total"`
	RestaurantID uuid.UUID    `json:"restaurantId"`
	SupplierID   uuid.UUID    `json:"supplierId"`
	CreatedBy    uuid.UUID    `json:"createdBy"`
	DeliveryDate *time.Time   `json:"deliveryDate"`
	DeliveredAt  *time.Time   `json:"deliveredAt"`
	Notes        *string      `json:"notes"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type approvalResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"orderId"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes"`
	RequestedBy uuid.UUID  `json:"requestedBy"`
	ReviewedBy  *uuid.UUID `json:"reviewedBy"`
	ReviewedAt  *time.Time `json:"reviewedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// actionResponse is an order after a command, with what the command created.
type actionResponse struct {
	orderResponse
	Approval *approvalResponse `json:"approval,omitempty"`
	Invoice  *invoiceResponse  `json:"invoice,omitempty"`
}

type orderDetailResponse struct {
	orderResponse
	Approvals []approvalResponse `json:"approvals"`
	Invoice   *invoiceResponse   `json:"invoice"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type reviewResponse struct {
	Order    orderResponse    `json:"order"`
	Approval approvalResponse `json:"approval"`
}

// --- Handlers ---

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	orders, err := h.svc.List(r.Context(), p, r.URL.Query().Get("status"), int32(limit), int32(offset))
	if err != nil {
		writeError(w, h.logger, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orderID, ok := urlID(w, r, "id", "order")
	if !ok {
		return
	}

	detail, err := h.svc.Get(r.Context(), p, orderID)
	if err != nil {
		writeError(w, h.logger, "get order", err)
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(detail.Order),
		Approvals:     make([]approvalResponse, len(detail.Approvals)),
	}
	for i, a := range detail.Approvals {
		resp.Approvals[i] = toApprovalResponse(a)
	}
	if detail.Invoice != nil {
		inv := toInvoiceResponse(*detail.Invoice)
		resp.Invoice = &inv
	}
	writeJSON(w, http.StatusOK, resp)
}

// Act handles PATCH /orders/{id} with an action.
func (h *OrderHandler) Act(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orderID, ok := urlID(w, r, "id", "order")
	if !ok {
		return
	}

	var req actionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := service.ParseCommand(req.Action)
	if err != nil {
		writeError(w, h.logger, "parse action", err)
		return
	}

	res, err := h.svc.Apply(r.Context(), p, orderID, cmd)
	if err != nil {
		writeError(w, h.logger, cmd.Name()+" order", err)
		return
	}

	resp := actionResponse{orderResponse: toOrderResponse(res.Order)}
	if res.Approval != nil {
		a := toApprovalResponse(*res.Approval)
		resp.Approval = &a
	}
	if res.Invoice != nil {
		inv := toInvoiceResponse(*res.Invoice)
		resp.Invoice = &inv
	}
	writeJSON(w, http.StatusOK, resp)
}

// Review handles POST /orders/{id}/approval.
func (h *OrderHandler) Review(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orderID, ok := urlID(w, r, "id", "order")
	if !ok {
		return
	}

	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.approvals.Review(r.Context(), p, orderID, service.ReviewInput{Status: req.Status, Notes: req.Notes})
	if err != nil {
		writeError(w, h.logger, "review order", err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{
		Order:    toOrderResponse(res.Order),
		Approval: toApprovalResponse(res.Approval),
	})
}

// --- Helpers ---

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		Status:       string(o.Status),
		Subtotal:     money.NewAmount(o.Subtotal),
		Tax:          money.NewAmount(o.Tax),
		DeliveryFee:  money.NewAmount(o.DeliveryFee),
		Discount:     money.NewAmount(o.Discount),
		Total:        money.NewAmount(o.Total),
		RestaurantID: o.RestaurantID,
		SupplierID:   o.SupplierID,
		CreatedBy:    o.CreatedBy,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.DeliveryDate.Valid {
		resp.DeliveryDate = &o.DeliveryDate.Time
	}
	if o.DeliveredAt.Valid {
		resp.DeliveredAt = &o.DeliveredAt.Time
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	return resp
}

func toApprovalResponse(a database.OrderApproval) approvalResponse {
	resp := approvalResponse{
		ID:          a.ID,
		OrderID:     a.OrderID,
		Status:      string(a.Status),
		RequestedBy: a.RequestedBy,
		CreatedAt:   a.CreatedAt,
	}
	if a.Notes.Valid {
		resp.Notes = &a.Notes.String
	}
	if a.ReviewedBy.Valid {
		id := uuid.UUID(a.ReviewedBy.Bytes)
		resp.ReviewedBy = &id
	}
	if a.ReviewedAt.Valid {
		resp.ReviewedAt = &a.ReviewedAt.Time
	}
	return resp
}
