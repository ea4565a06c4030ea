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

// InvoiceServicer is satisfied by *service.InvoiceService.
type InvoiceServicer interface {
	Update(ctx context.Context, p service.Principal, invoiceID uuid.UUID, in service.InvoiceUpdate) (database.Invoice, error)
	Create(ctx context.Context, p service.Principal, in service.CreateInvoiceInput) (database.Invoice, error)
	Get(ctx context.Context, p service.Principal, invoiceID uuid.UUID) (database.Invoice, error)
	List(ctx context.Context, p service.Principal, status string, limit, offset int32) ([]database.Invoice, error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	svc    InvoiceServicer
	logger *zap.Logger
}

func NewInvoiceHandler(svc InvoiceServicer, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers invoice endpoints. Expected to be mounted at /invoices.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
}

// --- Request / Response types ---

type updateInvoiceRequest struct {
	Status           *string       `json:"status"`
	PaidAmount       *money.Amount `json:"paidAmount"`
	PaymentMethod    *string       `json:"paymentMethod"`
	PaymentReference *string       `json:"paymentReference"`
	Notes            *string       `json:"notes"`
	DueDate          *time.Time    `json:"dueDate"`
}

type createInvoiceRequest struct {
	OrderID string     `json:"orderId"`
	DueDate *time.Time `json:"dueDate"`
	Notes   *string    `json:"notes"`
}

type invoiceResponse struct {
	ID               uuid.UUID     `json:"id"`
	InvoiceNumber    string        `json:"invoiceNumber"`
	Status           string        `json:"status"`
	Subtotal         money.Amount  `json:"subtotal"`
	Tax              money.Amount  `json:"tax"`
	Total            money.Amount  `json:"total"`
	DueDate          time.Time     `json:"dueDate"`
	PaidAt           *time.Time    `json:"paidAt"`
	PaidAmount       *money.Amount `json:"paidAmount"`
	PaymentMethod    *string       `json:"paymentMethod"`
	PaymentReference *string       `json:"paymentReference"`
	Notes            *string       `json:"notes"`
	RestaurantID     uuid.UUID     `json:"restaurantId"`
	SupplierID       uuid.UUID     `json:"supplierId"`
	OrderID          uuid.UUID     `json:"orderId"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type invoiceListResponse struct {
	Invoices []invoiceResponse `json:"invoices"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// --- Handlers ---

// List handles GET /invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	invoices, err := h.svc.List(r.Context(), p, r.URL.Query().Get("status"), int32(limit), int32(offset))
	if err != nil {
		writeError(w, h.logger, "list invoices", err)
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, invoiceListResponse{Invoices: resp, Limit: limit, Offset: offset})
}

// Get handles GET /invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "invoice")
	if !ok {
		return
	}

	inv, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, "get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// Create handles POST /invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderId is required"})
		return
	}

	inv, err := h.svc.Create(r.Context(), p, service.CreateInvoiceInput{
		OrderID: orderID,
		DueDate: req.DueDate,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, "create invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

// Update handles PATCH /invoices/{id}.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "invoice")
	if !ok {
		return
	}

	var req updateInvoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.InvoiceUpdate{
		Status:           req.Status,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Notes:            req.Notes,
		DueDate:          req.DueDate,
	}
	if req.PaidAmount != nil {
		d := decimal.Decimal(*req.PaidAmount)
		in.PaidAmount = &d
	}

	inv, err := h.svc.Update(r.Context(), p, id, in)
	if err != nil {
		writeError(w, h.logger, "update invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// --- Helpers ---

func toInvoiceResponse(inv database.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		Subtotal:      money.NewAmount(inv.Subtotal),
		Tax:           money.NewAmount(inv.Tax),
		Total:         money.NewAmount(inv.Total),
		DueDate:       inv.DueDate,
		PaidAmount:    money.NewAmountPtr(inv.PaidAmount),
		RestaurantID:  inv.RestaurantID,
		SupplierID:    inv.SupplierID,
		OrderID:       inv.OrderID,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	if inv.PaidAt.Valid {
		resp.PaidAt = &inv.PaidAt.Time
	}
	if inv.PaymentMethod.Valid {
		resp.PaymentMethod = &inv.PaymentMethod.String
	}
	if inv.PaymentReference.Valid {
		resp.PaymentReference = &inv.PaymentReference.String
	}
	if inv.Notes.Valid {
		resp.Notes = &inv.Notes.String
	}
	return resp
}
