package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusDRAFT            OrderStatus = "DRAFT"
	OrderStatusAWAITINGAPPROVAL OrderStatus = "AWAITING_APPROVAL"
	OrderStatusPENDING          OrderStatus = "PENDING"
	OrderStatusCONFIRMED        OrderStatus = "CONFIRMED"
	OrderStatusSHIPPED          OrderStatus = "SHIPPED"
	OrderStatusDELIVERED        OrderStatus = "DELIVERED"
	OrderStatusCANCELLED        OrderStatus = "CANCELLED"
)

type ApprovalStatus string

const (
	ApprovalStatusPENDING  ApprovalStatus = "PENDING"
	ApprovalStatusAPPROVED ApprovalStatus = "APPROVED"
	ApprovalStatusREJECTED ApprovalStatus = "REJECTED"
)

type InvoiceStatus string

const (
	InvoiceStatusPENDING       InvoiceStatus = "PENDING"
	InvoiceStatusOVERDUE       InvoiceStatus = "OVERDUE"
	InvoiceStatusPARTIALLYPAID InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusDISPUTED      InvoiceStatus = "DISPUTED"
	InvoiceStatusPAID          InvoiceStatus = "PAID"
	InvoiceStatusCANCELLED     InvoiceStatus = "CANCELLED"
)

type InventoryChangeType string

const (
	InventoryChangeTypeRECEIVED    InventoryChangeType = "RECEIVED"
	InventoryChangeTypeUSED        InventoryChangeType = "USED"
	InventoryChangeTypeADJUSTED    InventoryChangeType = "ADJUSTED"
	InventoryChangeTypeWASTE       InventoryChangeType = "WASTE"
	InventoryChangeTypeTRANSFERRED InventoryChangeType = "TRANSFERRED"
	InventoryChangeTypeCOUNT       InventoryChangeType = "COUNT"
)

type SupplierStatus string

const (
	SupplierStatusACTIVE    SupplierStatus = "ACTIVE"
	SupplierStatusSUSPENDED SupplierStatus = "SUSPENDED"
	SupplierStatusINACTIVE  SupplierStatus = "INACTIVE"
)

type Restaurant struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID           uuid.UUID
	RestaurantID pgtype.UUID
	SupplierID   pgtype.UUID
	Email        string
	FullName     string
	Role         string
	CreatedAt    time.Time
}

type Supplier struct {
	ID           uuid.UUID
	Name         string
	Email        pgtype.Text
	Status       SupplierStatus
	MinimumOrder pgtype.Numeric
	LeadTimeDays int32
	CreatedAt    time.Time
}

type Order struct {
	ID           uuid.UUID
	OrderNumber  string
	Status       OrderStatus
	Subtotal     pgtype.Numeric
	Tax          pgtype.Numeric
	DeliveryFee  pgtype.Numeric
	Discount     pgtype.Numeric
	Total        pgtype.Numeric
	RestaurantID uuid.UUID
	SupplierID   uuid.UUID
	CreatedBy    uuid.UUID
	DeliveryDate pgtype.Timestamptz
	DeliveredAt  pgtype.Timestamptz
	Notes        pgtype.Text
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ApprovalRule struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	MinAmount    pgtype.Numeric
	MaxAmount    pgtype.Numeric
	RequiredRole string
	IsActive     bool
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
}

type OrderApproval struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Status      ApprovalStatus
	Notes       pgtype.Text
	RequestedBy uuid.UUID
	ReviewedBy  pgtype.UUID
	ReviewedAt  pgtype.Timestamptz
	CreatedAt   time.Time
}

type Invoice struct {
	ID               uuid.UUID
	InvoiceNumber    string
	Status           InvoiceStatus
	Subtotal         pgtype.Numeric
	Tax              pgtype.Numeric
	Total            pgtype.Numeric
	DueDate          time.Time
	PaidAt           pgtype.Timestamptz
	PaidAmount       pgtype.Numeric
	PaymentMethod    pgtype.Text
	PaymentReference pgtype.Text
	Notes            pgtype.Text
	RestaurantID     uuid.UUID
	SupplierID       uuid.UUID
	OrderID          uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type InventoryItem struct {
	ID              uuid.UUID
	RestaurantID    uuid.UUID
	Name            string
	Category        pgtype.Text
	Unit            string
	CurrentQuantity pgtype.Numeric
	ParLevel        pgtype.Numeric
	Location        pgtype.Text
	Notes           pgtype.Text
	CatalogItemID   pgtype.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type InventoryLog struct {
	Seq              int64
	ID               uuid.UUID
	ItemID           uuid.UUID
	ChangeType       InventoryChangeType
	Quantity         pgtype.Numeric
	PreviousQuantity pgtype.Numeric
	NewQuantity      pgtype.Numeric
	Notes            pgtype.Text
	Reference        pgtype.Text
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      string
	Title     string
	Message   string
	OrderID   pgtype.UUID
	InvoiceID pgtype.UUID
	IsRead    bool
	CreatedAt time.Time
}
