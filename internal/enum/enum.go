package enum

// Order, invoice, approval and inventory states live in the database package
// (CHECK constrained, sqlc enum types).

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleStaff   = "STAFF"
)

// ── Configurable labels (no DB constraint) ──

const (
	NotificationOrderApproved = "ORDER_APPROVED"
	NotificationOrderRejected = "ORDER_REJECTED"
	NotificationInvoiceIssued = "INVOICE_ISSUED"
)

const (
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodCard         = "CARD"
	PaymentMethodCheck        = "CHECK"
	PaymentMethodCash         = "CASH"
)

// Invoice terms applied by the auto-invoice generator.
const InvoiceDueDays = 30
