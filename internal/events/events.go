// Package events carries domain events from committed transactions to the
// outside world: the message broker, the websocket hub and the log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/procurement/internal/money"
)

// Event types.
const (
	TypeOrderStatusChanged     = "order.status_changed"
	TypeOrderDelivered         = "order.delivered"
	TypeOrderApprovalRequested = "order.approval_requested"
	TypeInvoiceStatusChanged   = "invoice.status_changed"
	TypeInventoryBelowPar      = "inventory.below_par"

	// notification.* events are consumed by the outbound email service.
	TypeNotifyOrderSubmitted = "notification.order_submitted"
	TypeNotifyOrderConfirmed = "notification.order_confirmed"
	TypeNotifyOrderShipped   = "notification.order_shipped"
	TypeNotifyOrderDelivered = "notification.order_delivered"
)

// Event is the envelope published to every sink.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Key          string          `json:"key"`
	RestaurantID uuid.UUID       `json:"restaurantId"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Payload      json.RawMessage `json:"payload"`
}

// New builds an event. key is the aggregate id used for partitioning.
func New(typ, key string, restaurantID uuid.UUID, at time.Time, payload any) Event {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte("null")
	}
	return Event{
		ID:           uuid.New(),
		Type:         typ,
		Key:          key,
		RestaurantID: restaurantID,
		OccurredAt:   at.UTC(),
		Payload:      body,
	}
}

// Publisher delivers an event to one sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outbox collects events while an operation runs. The caller hands them to a
// Dispatcher only after its transaction committed.
type Outbox struct {
	events []Event
}

func (o *Outbox) Add(e Event) {
	o.events = append(o.events, e)
}

func (o *Outbox) Events() []Event {
	return o.events
}

// --- Payloads ---

type OrderStatusChanged struct {
	OrderID        uuid.UUID `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	RestaurantID   uuid.UUID `json:"restaurantId"`
	SupplierID     uuid.UUID `json:"supplierId"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
}

type OrderDelivered struct {
	OrderID       uuid.UUID    `json:"orderId"`
	RestaurantID  uuid.UUID    `json:"restaurantId"`
	SupplierID    uuid.UUID    `json:"supplierId"`
	InvoiceID     uuid.UUID    `json:"invoiceId"`
	InvoiceNumber string       `json:"invoiceNumber"`
	Total         money.Amount `json:"total"`
	DeliveredAt   time.Time    `json:"deliveredAt"`
}

type ApprovalRequested struct {
	OrderID      uuid.UUID    `json:"orderId"`
	ApprovalID   uuid.UUID    `json:"approvalId"`
	RequestedBy  uuid.UUID    `json:"requestedBy"`
	Total        money.Amount `json:"total"`
	RequiredRole string       `json:"requiredRole"`
}

type InvoiceStatusChanged struct {
	InvoiceID      uuid.UUID `json:"invoiceId"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	OrderID        uuid.UUID `json:"orderId"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
}

type BelowPar struct {
	ItemID          uuid.UUID      `json:"itemId"`
	Name            string         `json:"name"`
	Unit            string         `json:"unit"`
	CurrentQuantity money.Quantity `json:"currentQuantity"`
	ParLevel        money.Quantity `json:"parLevel"`
}

// Notification asks the delivery service to tell a party about an order.
// Recipient is "supplier" or "restaurant".
type Notification struct {
	Recipient     string        `json:"recipient"`
	OrderID       uuid.UUID     `json:"orderId"`
	OrderNumber   string        `json:"orderNumber"`
	RestaurantID  uuid.UUID     `json:"restaurantId"`
	SupplierID    uuid.UUID     `json:"supplierId"`
	Subject       string        `json:"subject"`
	InvoiceNumber string        `json:"invoiceNumber,omitempty"`
	Total         *money.Amount `json:"total,omitempty"`
	DeliveryDate  *time.Time    `json:"deliveryDate,omitempty"`
}

const (
	RecipientSupplier   = "supplier"
	RecipientRestaurant = "restaurant"
)
