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

// InventoryServicer is satisfied by *service.InventoryService.
type InventoryServicer interface {
	Adjust(ctx context.Context, p service.Principal, itemID uuid.UUID, in service.AdjustInput) (*service.Adjustment, error)
	UpdateFields(ctx context.Context, p service.Principal, itemID uuid.UUID, in service.ItemUpdate) (database.InventoryItem, error)
	Create(ctx context.Context, p service.Principal, in service.CreateItemInput) (*service.Adjustment, error)
	List(ctx context.Context, p service.Principal, belowPar bool) ([]database.InventoryItem, error)
	Log(ctx context.Context, p service.Principal, itemID uuid.UUID) ([]database.InventoryLog, error)
	Reconcile(ctx context.Context, p service.Principal, itemID uuid.UUID) (*service.Reconciliation, error)
}

// InventoryHandler handles inventory endpoints.
type InventoryHandler struct {
	svc    InventoryServicer
	logger *zap.Logger
}

func NewInventoryHandler(svc InventoryServicer, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers inventory endpoints. Expected to be mounted at /inventory.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Get("/{id}/log", h.Log)
	r.Get("/{id}/reconcile", h.Reconcile)
}

// --- Request / Response types ---

// updateItemRequest carries either an adjustment (adjustQuantity present)
// or a field update.
type updateItemRequest struct {
	AdjustQuantity  *money.Quantity `json:"adjustQuantity"`
	ChangeType      string          `json:"changeType"`
	AdjustmentNotes *string         `json:"adjustmentNotes"`
	Reference       *string         `json:"reference"`

	Name             *string         `json:"name"`
	Category         *string         `json:"category"`
	Unit             *string         `json:"unit"`
	ParLevel         *money.Quantity `json:"parLevel"`
	ClearParLevel    bool            `json:"clearParLevel"`
	Location         *string         `json:"location"`
	Notes            *string         `json:"notes"`
	CatalogItemID    *uuid.UUID      `json:"catalogItemId"`
	ClearCatalogItem bool            `json:"clearCatalogItem"`
}

type createItemRequest struct {
	Name            string          `json:"name"`
	Category        *string         `json:"category"`
	Unit            string          `json:"unit"`
	ParLevel        *money.Quantity `json:"parLevel"`
	Location        *string         `json:"location"`
	Notes           *string         `json:"notes"`
	CatalogItemID   *uuid.UUID      `json:"catalogItemId"`
	InitialQuantity *money.Quantity `json:"initialQuantity"`
}

type itemResponse struct {
	ID              uuid.UUID       `json:"id"`
	RestaurantID    uuid.UUID       `json:"restaurantId"`
	Name            string          `json:"name"`
	Category        *string         `json:"category"`
	Unit            string          `json:"unit"`
	CurrentQuantity money.Quantity  `json:"currentQuantity"`
	ParLevel        *money.Quantity `json:"parLevel"`
	Location        *string         `json:"location"`
	Notes           *string         `json:"notes"`
	CatalogItemID   *uuid.UUID      `json:"catalogItemId"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type adjustmentResponse struct {
	PreviousQuantity money.Quantity `json:"previousQuantity"`
	NewQuantity      money.Quantity `json:"newQuantity"`
	ChangeType       string         `json:"changeType"`
	Item             itemResponse   `json:"item"`
}

type logEntryResponse struct {
	ID               uuid.UUID      `json:"id"`
	ChangeType       string         `json:"changeType"`
	Quantity         money.Quantity `json:"quantity"`
	PreviousQuantity money.Quantity `json:"previousQuantity"`
	NewQuantity      money.Quantity `json:"newQuantity"`
	Notes            *string        `json:"notes"`
	Reference        *string        `json:"reference"`
	CreatedBy        uuid.UUID      `json:"createdBy"`
	CreatedAt        time.Time      `json:"createdAt"`
}

type reconcileResponse struct {
	ItemID     uuid.UUID      `json:"itemId"`
	Stored     money.Quantity `json:"stored"`
	Replayed   money.Quantity `json:"replayed"`
	Entries    int            `json:"entries"`
	Consistent bool           `json:"consistent"`
}

// --- Handlers ---

// List handles GET /inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	belowPar := r.URL.Query().Get("belowPar") == "true"

	items, err := h.svc.List(r.Context(), p, belowPar)
	if err != nil {
		writeError(w, h.logger, "list inventory", err)
		return
	}
	resp := make([]itemResponse, len(items))
	for i, item := range items {
		resp[i] = toItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.Create(r.Context(), p, service.CreateItemInput{
		Name:            req.Name,
		Category:        req.Category,
		Unit:            req.Unit,
		ParLevel:        quantityPtr(req.ParLevel),
		Location:        req.Location,
		Notes:           req.Notes,
		CatalogItemID:   req.CatalogItemID,
		InitialQuantity: quantityPtr(req.InitialQuantity),
	})
	if err != nil {
		writeError(w, h.logger, "create inventory item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(res.Item))
}

// Update handles PATCH /inventory/{id}. A body with adjustQuantity records a
// ledger entry; any other body edits descriptive fields.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "inventory item")
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.AdjustQuantity != nil {
		res, err := h.svc.Adjust(r.Context(), p, id, service.AdjustInput{
			ChangeType: req.ChangeType,
			Quantity:   req.AdjustQuantity.Decimal(),
			Notes:      req.AdjustmentNotes,
			Reference:  req.Reference,
		})
		if err != nil {
			writeError(w, h.logger, "adjust inventory", err)
			return
		}
		writeJSON(w, http.StatusOK, adjustmentResponse{
			PreviousQuantity: money.NewQuantity(res.Log.PreviousQuantity),
			NewQuantity:      money.NewQuantity(res.Log.NewQuantity),
			ChangeType:       string(res.Log.ChangeType),
			Item:             toItemResponse(res.Item),
		})
		return
	}

	item, err := h.svc.UpdateFields(r.Context(), p, id, service.ItemUpdate{
		Name:             req.Name,
		Category:         req.Category,
		Unit:             req.Unit,
		ParLevel:         quantityPtr(req.ParLevel),
		ClearParLevel:    req.ClearParLevel,
		Location:         req.Location,
		Notes:            req.Notes,
		CatalogItemID:    req.CatalogItemID,
		ClearCatalogItem: req.ClearCatalogItem,
	})
	if err != nil {
		writeError(w, h.logger, "update inventory item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Log handles GET /inventory/{id}/log.
func (h *InventoryHandler) Log(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "inventory item")
	if !ok {
		return
	}
	entries, err := h.svc.Log(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, "inventory log", err)
		return
	}
	resp := make([]logEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = logEntryResponse{
			ID:               e.ID,
			ChangeType:       string(e.ChangeType),
			Quantity:         money.NewQuantity(e.Quantity),
			PreviousQuantity: money.NewQuantity(e.PreviousQuantity),
			NewQuantity:      money.NewQuantity(e.NewQuantity),
			Notes:            textPtr(e.Notes.String, e.Notes.Valid),
			Reference:        textPtr(e.Reference.String, e.Reference.Valid),
			CreatedBy:        e.CreatedBy,
			CreatedAt:        e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reconcile handles GET /inventory/{id}/reconcile.
func (h *InventoryHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "inventory item")
	if !ok {
		return
	}
	rec, err := h.svc.Reconcile(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, "reconcile inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		ItemID:     rec.ItemID,
		Stored:     money.Quantity(rec.Stored),
		Replayed:   money.Quantity(rec.Replayed),
		Entries:    rec.Entries,
		Consistent: rec.Consistent,
	})
}

// --- Helpers ---

func quantityPtr(q *money.Quantity) *decimal.Decimal {
	if q == nil {
		return nil
	}
	d := q.Decimal()
	return &d
}

func textPtr(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}

func toItemResponse(item database.InventoryItem) itemResponse {
	resp := itemResponse{
		ID:              item.ID,
		RestaurantID:    item.RestaurantID,
		Name:            item.Name,
		Category:        textPtr(item.Category.String, item.Category.Valid),
		Unit:            item.Unit,
		CurrentQuantity: money.NewQuantity(item.CurrentQuantity),
		ParLevel:        money.NewQuantityPtr(item.ParLevel),
		Location:        textPtr(item.Location.String, item.Location.Valid),
		Notes:           textPtr(item.Notes.String, item.Notes.Valid),
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
	if item.CatalogItemID.Valid {
		id := uuid.UUID(item.CatalogItemID.Bytes)
		resp.CatalogItemID = &id
	}
	return resp
}
