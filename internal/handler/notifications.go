package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/procurement/internal/database"
	"go.uber.org/zap"
)

// NotificationStore is satisfied by *database.Queries.
type NotificationStore interface {
	ListNotificationsByUser(ctx context.Context, arg database.ListNotificationsByUserParams) ([]database.Notification, error)
}

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	store  NotificationStore
	logger *zap.Logger
}

func NewNotificationHandler(store NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{store: store, logger: logger}
}

// RegisterRoutes registers notification endpoints. Expected to be mounted at /notifications.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type notificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	OrderID   *uuid.UUID `json:"orderId"`
	InvoiceID *uuid.UUID `json:"invoiceId"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
}

// List handles GET /notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	rows, err := h.store.ListNotificationsByUser(r.Context(), database.ListNotificationsByUserParams{
		UserID: p.UserID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		writeError(w, h.logger, "list notifications", err)
		return
	}

	resp := make([]notificationResponse, len(rows))
	for i, n := range rows {
		resp[i] = notificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
		if n.OrderID.Valid {
			id := uuid.UUID(n.OrderID.Bytes)
			resp[i].OrderID = &id
		}
		if n.InvoiceID.Valid {
			id := uuid.UUID(n.InvoiceID.Bytes)
			resp[i].InvoiceID = &id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
