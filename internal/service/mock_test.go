package service

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
// Rollback without a prior Commit restores the store snapshot taken at Begin.
type mockTx struct {
	store     *memStore
	snap      *memState
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.committed && m.snap != nil {
		m.store.restore(m.snap)
		m.snap = nil
	}
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool implements Pool. Statements go through the store factory, so
// the DBTX methods are never reached.
type mockPool struct {
	store     *memStore
	beginErr  error
	commitErr error
	begins    int
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.begins++
	return &mockTx{store: m.store, snap: m.store.snapshot(), commitErr: m.commitErr}, nil
}
func (m *mockPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}

// memState is the table data of memStore.
type memState struct {
	orders        map[uuid.UUID]database.Order
	suppliers     map[uuid.UUID]database.Supplier
	users         map[uuid.UUID]database.User
	rules         map[uuid.UUID]database.ApprovalRule
	approvals     map[uuid.UUID]database.OrderApproval
	invoices      map[uuid.UUID]database.Invoice
	items         map[uuid.UUID]database.InventoryItem
	logs          []database.InventoryLog
	notifications []database.Notification
	seq           int64
}

func (s *memState) clone() *memState {
	return &memState{
		orders:        maps.Clone(s.orders),
		suppliers:     maps.Clone(s.suppliers),
		users:         maps.Clone(s.users),
		rules:         maps.Clone(s.rules),
		approvals:     maps.Clone(s.approvals),
		invoices:      maps.Clone(s.invoices),
		items:         maps.Clone(s.items),
		logs:          slices.Clone(s.logs),
		notifications: slices.Clone(s.notifications),
		seq:           s.seq,
	}
}

// memStore is an in-memory stand-in for *database.Queries. It enforces the
// schema's unique constraints and conditional updates.
type memStore struct {
	mu sync.Mutex
	*memState

	// createInvoiceHook runs before an invoice insert. A non-nil error aborts it.
	createInvoiceHook func(arg database.CreateInvoiceParams) error
	createNotifErr    error
	now               time.Time
}

func newMemStore() *memStore {
	return &memStore{
		memState: &memState{
			orders:    map[uuid.UUID]database.Order{},
			suppliers: map[uuid.UUID]database.Supplier{},
			users:     map[uuid.UUID]database.User{},
			rules:     map[uuid.UUID]database.ApprovalRule{},
			approvals: map[uuid.UUID]database.OrderApproval{},
			invoices:  map[uuid.UUID]database.Invoice{},
			items:     map[uuid.UUID]database.InventoryItem{},
		},
		now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memState.clone()
}

func (m *memStore) restore(s *memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memState = s
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// --- OrderStore ---

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.Order{}
	for _, o := range m.orders {
		if arg.RestaurantID.Valid && o.RestaurantID != uuid.UUID(arg.RestaurantID.Bytes) {
			continue
		}
		if arg.SupplierID.Valid && o.SupplierID != uuid.UUID(arg.SupplierID.Bytes) {
			continue
		}
		if arg.Status.Valid && string(o.Status) != arg.Status.String {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return paginate(out, arg.Limit, arg.Offset), nil
}

func paginate[T any](rows []T, limit, offset int32) []T {
	if int(offset) >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[arg.ID]
	if !ok || o.Status != arg.FromStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	if arg.DeliveryDate.Valid {
		o.DeliveryDate = arg.DeliveryDate
	}
	if arg.DeliveredAt.Valid {
		o.DeliveredAt = arg.DeliveredAt
	}
	o.UpdatedAt = m.now
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetSupplier(ctx context.Context, id uuid.UUID) (database.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return database.Supplier{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memStore) GetUser(ctx context.Context, id uuid.UUID) (database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memStore) ListActiveApprovalRules(ctx context.Context, restaurantID uuid.UUID) ([]database.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.ApprovalRule{}
	for _, r := range m.rules {
		if r.RestaurantID == restaurantID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return money.FromNumeric(out[i].MinAmount).LessThan(money.FromNumeric(out[j].MinAmount))
	})
	return out, nil
}

func (m *memStore) CreateApprovalRule(ctx context.Context, arg database.CreateApprovalRuleParams) (database.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := database.ApprovalRule{
		ID:           uuid.New(),
		RestaurantID: arg.RestaurantID,
		MinAmount:    arg.MinAmount,
		MaxAmount:    arg.MaxAmount,
		RequiredRole: arg.RequiredRole,
		IsActive:     true,
		CreatedBy:    arg.CreatedBy,
		CreatedAt:    m.now,
	}
	m.rules[r.ID] = r
	return r, nil
}

func (m *memStore) DeleteApprovalRule(ctx context.Context, arg database.DeleteApprovalRuleParams) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[arg.ID]
	if !ok || r.RestaurantID != arg.RestaurantID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.rules, arg.ID)
	return r.ID, nil
}

func (m *memStore) CreateOrderApproval(ctx context.Context, arg database.CreateOrderApprovalParams) (database.OrderApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.approvals {
		if a.OrderID == arg.OrderID && a.Status == database.ApprovalStatusPENDING {
			return database.OrderApproval{}, uniqueViolation("order_approvals_one_pending_idx")
		}
	}
	a := database.OrderApproval{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		Status:      database.ApprovalStatusPENDING,
		RequestedBy: arg.RequestedBy,
		CreatedAt:   m.now,
	}
	m.approvals[a.ID] = a
	return a, nil
}

func (m *memStore) GetPendingApprovalForUpdate(ctx context.Context, orderID uuid.UUID) (database.OrderApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.approvals {
		if a.OrderID == orderID && a.Status == database.ApprovalStatusPENDING {
			return a, nil
		}
	}
	return database.OrderApproval{}, pgx.ErrNoRows
}

func (m *memStore) ResolveOrderApproval(ctx context.Context, arg database.ResolveOrderApprovalParams) (database.OrderApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[arg.ID]
	if !ok || a.Status != database.ApprovalStatusPENDING {
		return database.OrderApproval{}, pgx.ErrNoRows
	}
	a.Status = arg.Status
	a.ReviewedBy = arg.ReviewedBy
	a.ReviewedAt = pgtype.Timestamptz{Time: arg.ReviewedAt, Valid: true}
	a.Notes = arg.Notes
	m.approvals[a.ID] = a
	return a, nil
}

func (m *memStore) ListApprovalsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.OrderApproval{}
	for _, a := range m.approvals {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createNotifErr != nil {
		return database.Notification{}, m.createNotifErr
	}
	n := database.Notification{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		Type:      arg.Type,
		Title:     arg.Title,
		Message:   arg.Message,
		OrderID:   arg.OrderID,
		InvoiceID: arg.InvoiceID,
		CreatedAt: m.now,
	}
	m.notifications = append(m.notifications, n)
	return n, nil
}

// --- InvoiceStore ---

func (m *memStore) GetInvoice(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return database.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (m *memStore) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (database.Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memStore) GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.OrderID == orderID {
			return inv, nil
		}
	}
	return database.Invoice{}, pgx.ErrNoRows
}

func (m *memStore) CountInvoicesBySupplier(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inv := range m.invoices {
		if inv.SupplierID == supplierID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
	if m.createInvoiceHook != nil {
		if err := m.createInvoiceHook(arg); err != nil {
			return database.Invoice{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.OrderID == arg.OrderID {
			return database.Invoice{}, uniqueViolation("invoices_order_id_key")
		}
		if inv.SupplierID == arg.SupplierID && inv.InvoiceNumber == arg.InvoiceNumber {
			return database.Invoice{}, uniqueViolation("invoices_supplier_id_invoice_number_key")
		}
	}
	inv := database.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: arg.InvoiceNumber,
		Status:        arg.Status,
		Subtotal:      arg.Subtotal,
		Tax:           arg.Tax,
		Total:         arg.Total,
		DueDate:       arg.DueDate,
		Notes:         arg.Notes,
		RestaurantID:  arg.RestaurantID,
		SupplierID:    arg.SupplierID,
		OrderID:       arg.OrderID,
		CreatedAt:     m.now,
		UpdatedAt:     m.now,
	}
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memStore) UpdateInvoice(ctx context.Context, arg database.UpdateInvoiceParams) (database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[arg.ID]
	if !ok {
		return database.Invoice{}, pgx.ErrNoRows
	}
	inv.Status = arg.Status
	inv.PaidAt = arg.PaidAt
	inv.PaidAmount = arg.PaidAmount
	inv.PaymentMethod = arg.PaymentMethod
	inv.PaymentReference = arg.PaymentReference
	inv.Notes = arg.Notes
	inv.DueDate = arg.DueDate
	inv.UpdatedAt = m.now
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memStore) ListInvoices(ctx context.Context, arg database.ListInvoicesParams) ([]database.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.Invoice{}
	for _, inv := range m.invoices {
		if arg.RestaurantID.Valid && inv.RestaurantID != uuid.UUID(arg.RestaurantID.Bytes) {
			continue
		}
		if arg.SupplierID.Valid && inv.SupplierID != uuid.UUID(arg.SupplierID.Bytes) {
			continue
		}
		if arg.Status.Valid && string(inv.Status) != arg.Status.String {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return paginate(out, arg.Limit, arg.Offset), nil
}

// --- InventoryStore ---

func (m *memStore) CreateInventoryItem(ctx context.Context, arg database.CreateInventoryItemParams) (database.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := database.InventoryItem{
		ID:              uuid.New(),
		RestaurantID:    arg.RestaurantID,
		Name:            arg.Name,
		Category:        arg.Category,
		Unit:            arg.Unit,
		CurrentQuantity: money.QuantityToNumeric(decimal.Zero),
		ParLevel:        arg.ParLevel,
		Location:        arg.Location,
		Notes:           arg.Notes,
		CatalogItemID:   arg.CatalogItemID,
		CreatedAt:       m.now,
		UpdatedAt:       m.now,
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[arg.ID]
	if !ok || item.RestaurantID != arg.RestaurantID {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	return item, nil
}

func (m *memStore) GetInventoryItemForUpdate(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error) {
	return m.GetInventoryItem(ctx, arg)
}

func (m *memStore) ListInventoryItems(ctx context.Context, arg database.ListInventoryItemsParams) ([]database.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.InventoryItem{}
	for _, item := range m.items {
		if item.RestaurantID != arg.RestaurantID {
			continue
		}
		if arg.BelowPar {
			if !item.ParLevel.Valid || !money.FromNumeric(item.CurrentQuantity).LessThan(money.FromNumeric(item.ParLevel)) {
				continue
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UpdateInventoryQuantity(ctx context.Context, arg database.UpdateInventoryQuantityParams) (database.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[arg.ID]
	if !ok {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	if money.FromNumeric(arg.CurrentQuantity).IsNegative() {
		return database.InventoryItem{}, &pgconn.PgError{Code: "23514", ConstraintName: "inventory_items_current_quantity_check"}
	}
	item.CurrentQuantity = arg.CurrentQuantity
	item.UpdatedAt = m.now
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) UpdateInventoryItemFields(ctx context.Context, arg database.UpdateInventoryItemFieldsParams) (database.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[arg.ID]
	if !ok || item.RestaurantID != arg.RestaurantID {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	if arg.Name.Valid {
		item.Name = arg.Name.String
	}
	if arg.Category.Valid {
		item.Category = arg.Category
	}
	if arg.Unit.Valid {
		item.Unit = arg.Unit.String
	}
	switch {
	case arg.ClearParLevel:
		item.ParLevel = pgtype.Numeric{}
	case arg.ParLevel.Valid:
		item.ParLevel = arg.ParLevel
	}
	if arg.Location.Valid {
		item.Location = arg.Location
	}
	if arg.Notes.Valid {
		item.Notes = arg.Notes
	}
	switch {
	case arg.ClearCatalogItem:
		item.CatalogItemID = pgtype.UUID{}
	case arg.CatalogItemID.Valid:
		item.CatalogItemID = arg.CatalogItemID
	}
	item.UpdatedAt = m.now
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) CreateInventoryLog(ctx context.Context, arg database.CreateInventoryLogParams) (database.InventoryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	l := database.InventoryLog{
		Seq:              m.seq,
		ID:               uuid.New(),
		ItemID:           arg.ItemID,
		ChangeType:       arg.ChangeType,
		Quantity:         arg.Quantity,
		PreviousQuantity: arg.PreviousQuantity,
		NewQuantity:      arg.NewQuantity,
		Notes:            arg.Notes,
		Reference:        arg.Reference,
		CreatedBy:        arg.CreatedBy,
		CreatedAt:        m.now,
	}
	m.logs = append(m.logs, l)
	return l, nil
}

func (m *memStore) ListInventoryLogsByItem(ctx context.Context, itemID uuid.UUID) ([]database.InventoryLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.InventoryLog{}
	for _, l := range m.logs {
		if l.ItemID == itemID {
			out = append(out, l)
		}
	}
	return out, nil
}

// --- Event recorder ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return money.FromNumeric(n).Equal(decimal.RequireFromString(expected))
}

// fixture is one restaurant trading with one supplier, with a user per role.
type fixture struct {
	store      *memStore
	pool       *mockPool
	pub        *recordingPublisher
	dispatcher *events.Dispatcher

	restaurantID uuid.UUID
	supplierID   uuid.UUID
	owner        Principal
	manager      Principal
	staff        Principal
	supplierUser Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	f := &fixture{
		store:        store,
		pool:         &mockPool{store: store},
		pub:          pub,
		dispatcher:   events.NewDispatcher(pub, zap.NewNop(), time.Second),
		restaurantID: uuid.New(),
		supplierID:   uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3dab12"),
	}
	f.owner = f.addRestaurantUser("OWNER")
	f.manager = f.addRestaurantUser("MANAGER")
	f.staff = f.addRestaurantUser("STAFF")

	store.suppliers[f.supplierID] = database.Supplier{
		ID:           f.supplierID,
		Name:         "Fresh Farms",
		Status:       database.SupplierStatusACTIVE,
		MinimumOrder: makeNumeric("100.00"),
		LeadTimeDays: 2,
	}
	sid := uuid.New()
	store.users[sid] = database.User{
		ID:         sid,
		SupplierID: pgtype.UUID{Bytes: f.supplierID, Valid: true},
		Role:       "STAFF",
	}
	f.supplierUser = Principal{UserID: sid, SupplierID: f.supplierID, Role: "STAFF"}
	return f
}

func (f *fixture) addRestaurantUser(r string) Principal {
	id := uuid.New()
	f.store.users[id] = database.User{
		ID:           id,
		RestaurantID: pgtype.UUID{Bytes: f.restaurantID, Valid: true},
		Role:         r,
	}
	return Principal{UserID: id, RestaurantID: f.restaurantID, Role: r}
}

func (f *fixture) addRule(minAmount, maxAmount, r string) {
	rule := database.ApprovalRule{
		ID:           uuid.New(),
		RestaurantID: f.restaurantID,
		MinAmount:    makeNumeric(minAmount),
		RequiredRole: r,
		IsActive:     true,
	}
	if maxAmount != "" {
		rule.MaxAmount = makeNumeric(maxAmount)
	}
	f.store.rules[rule.ID] = rule
}

// addOrder stores an order with the given subtotal; tax and fees are zero.
func (f *fixture) addOrder(status database.OrderStatus, subtotal string) database.Order {
	return f.addOrderWithTotals(status, subtotal, "0", subtotal)
}

func (f *fixture) addOrderWithTotals(status database.OrderStatus, subtotal, tax, total string) database.Order {
	o := database.Order{
		ID:           uuid.New(),
		OrderNumber:  "PO-" + uuid.NewString()[:8],
		Status:       status,
		Subtotal:     makeNumeric(subtotal),
		Tax:          makeNumeric(tax),
		DeliveryFee:  makeNumeric("0"),
		Discount:     makeNumeric("0"),
		Total:        makeNumeric(total),
		RestaurantID: f.restaurantID,
		SupplierID:   f.supplierID,
		CreatedBy:    f.staff.UserID,
	}
	f.store.orders[o.ID] = o
	return o
}

func (f *fixture) orderService() *OrderService {
	svc := NewOrderService(f.pool, func(db database.DBTX) OrderStore { return f.store }, f.dispatcher, zap.NewNop())
	svc.now = func() time.Time { return f.store.now }
	return svc
}

func (f *fixture) approvalService() *ApprovalService {
	svc := NewApprovalService(f.pool, func(db database.DBTX) OrderStore { return f.store }, f.dispatcher, zap.NewNop())
	svc.now = func() time.Time { return f.store.now }
	return svc
}

func (f *fixture) invoiceService() *InvoiceService {
	svc := NewInvoiceService(f.pool, func(db database.DBTX) InvoiceStore { return f.store }, f.dispatcher, zap.NewNop())
	svc.now = func() time.Time { return f.store.now }
	return svc
}

func (f *fixture) inventoryService() *InventoryService {
	svc := NewInventoryService(f.pool, func(db database.DBTX) InventoryStore { return f.store }, f.dispatcher, zap.NewNop())
	svc.now = func() time.Time { return f.store.now }
	return svc
}

func (f *fixture) order(t *testing.T, id uuid.UUID) database.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("order %s: %v", id, err)
	}
	return o
}

// waitEvents flushes the dispatcher and returns the published event types.
func (f *fixture) waitEvents() []string {
	f.dispatcher.Wait()
	return f.pub.types()
}
