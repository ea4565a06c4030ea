//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/procurement/internal/auth"
	"github.com/kiwari-pos/procurement/internal/config"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/money"
	"github.com/kiwari-pos/procurement/internal/router"
	"github.com/kiwari-pos/procurement/internal/ws"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

const integrationSecret = "integration-test-secret"

type integrationFixture struct {
	restaurantID uuid.UUID
	supplierID   uuid.UUID
	staff        string
	manager      string
	owner        string
	supplier     string
	staffID      uuid.UUID
}

// TestIntegrationFlow drives an order from draft to a paid invoice, plus an
// inventory adjustment, through the full router against PostgreSQL.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   integrationSecret,
		CORSOrigins: []string{"http://localhost:5173"},
	}
	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	dispatcher := events.NewDispatcher(events.Multi{events.NewLogPublisher(logger), hub}, logger, 5*time.Second)
	defer dispatcher.Wait()

	server := httptest.NewServer(router.New(cfg, logger, pool, hub, dispatcher))
	defer server.Close()

	f := seedFixture(t, ctx, database.New(pool))
	orderID := createDraftOrder(t, ctx, database.New(pool), f, "700.00", "50.00")

	// --- 1. Staff submits a 750.00 order; the 500.00 rule holds it for approval ---
	submitted := httpJSON(t, server, "PATCH", "/api/v1/orders/"+orderID.String(), map[string]interface{}{"action": "submit"}, f.staff, http.StatusOK)
	if submitted["status"] != "AWAITING_APPROVAL" {
		t.Fatalf("after submit: got %v, want AWAITING_APPROVAL", submitted["status"])
	}
	if submitted["approval"] == nil {
		t.Fatal("submit should return the pending approval")
	}

	// --- 2. Staff cannot review; manager approves ---
	httpJSON(t, server, "POST", "/api/v1/orders/"+orderID.String()+"/approval", map[string]interface{}{"status": "APPROVED"}, f.staff, http.StatusForbidden)
	reviewed := httpJSON(t, server, "POST", "/api/v1/orders/"+orderID.String()+"/approval", map[string]interface{}{"status": "APPROVED"}, f.manager, http.StatusOK)
	order := reviewed["order"].(map[string]interface{})
	if order["status"] != "PENDING" || order["deliveryDate"] == nil {
		t.Fatalf("after approval: got %v", order)
	}

	// --- 3. Supplier walks the order to delivery ---
	for _, action := range []string{"confirm", "ship"} {
		httpJSON(t, server, "PATCH", "/api/v1/orders/"+orderID.String(), map[string]interface{}{"action": action}, f.supplier, http.StatusOK)
	}
	delivered := httpJSON(t, server, "PATCH", "/api/v1/orders/"+orderID.String(), map[string]interface{}{"action": "deliver"}, f.supplier, http.StatusOK)
	if delivered["status"] != "DELIVERED" || delivered["deliveredAt"] == nil {
		t.Fatalf("after deliver: got %v", delivered)
	}
	inv, ok := delivered["invoice"].(map[string]interface{})
	if !ok {
		t.Fatalf("deliver should issue an invoice: %v", delivered)
	}
	suffix := strings.ToUpper(f.supplierID.String()[len(f.supplierID.String())-4:])
	if inv["invoiceNumber"] != "INV-"+suffix+"-00001" {
		t.Errorf("invoice number: got %v", inv["invoiceNumber"])
	}
	if inv["status"] != "PENDING" || inv["total"] != 750.0 || inv["subtotal"] != 700.0 || inv["tax"] != 50.0 {
		t.Errorf("invoice amounts: got %v", inv)
	}
	invoiceID := inv["id"].(string)

	// A second delivery attempt is rejected and does not issue another invoice
	httpJSON(t, server, "PATCH", "/api/v1/orders/"+orderID.String(), map[string]interface{}{"action": "deliver"}, f.supplier, http.StatusBadRequest)

	// --- 4. Owner records payment; PAID is terminal ---
	paid := httpJSON(t, server, "PATCH", "/api/v1/invoices/"+invoiceID, map[string]interface{}{
		"status":           "PAID",
		"paymentMethod":    "BANK_TRANSFER",
		"paymentReference": "TX-001",
	}, f.owner, http.StatusOK)
	if paid["status"] != "PAID" || paid["paidAmount"] != 750.0 || paid["paidAt"] == nil {
		t.Fatalf("after payment: got %v", paid)
	}
	rejected := httpJSON(t, server, "PATCH", "/api/v1/invoices/"+invoiceID, map[string]interface{}{"status": "DISPUTED"}, f.owner, http.StatusBadRequest)
	if rejected["error"] != "Cannot transition from PAID" {
		t.Errorf("terminal invoice: got %v", rejected["error"])
	}

	// --- 5. Order detail carries the approval history and invoice ---
	detail := httpJSON(t, server, "GET", "/api/v1/orders/"+orderID.String(), nil, f.staff, http.StatusOK)
	if approvals := detail["approvals"].([]interface{}); len(approvals) != 1 {
		t.Errorf("approvals: got %d, want 1", len(approvals))
	}
	if detail["invoice"] == nil {
		t.Error("order detail should include the invoice")
	}

	// --- 6. Inventory: usage beyond stock floors at zero and the ledger replays ---
	item := httpJSON(t, server, "POST", "/api/v1/inventory", map[string]interface{}{
		"name":            "Flour",
		"unit":            "kg",
		"parLevel":        10,
		"initialQuantity": 5,
	}, f.staff, http.StatusCreated)
	itemID := item["id"].(string)

	adjusted := httpJSON(t, server, "PATCH", "/api/v1/inventory/"+itemID, map[string]interface{}{
		"adjustQuantity": 20,
		"changeType":     "USED",
	}, f.staff, http.StatusOK)
	if adjusted["previousQuantity"] != 5.0 || adjusted["newQuantity"] != 0.0 {
		t.Errorf("adjustment: got %v", adjusted)
	}
	rec := httpJSON(t, server, "GET", "/api/v1/inventory/"+itemID+"/reconcile", nil, f.staff, http.StatusOK)
	if rec["consistent"] != true || rec["entries"] != 2.0 {
		t.Errorf("reconcile: got %v", rec)
	}
	httpJSON(t, server, "GET", "/api/v1/inventory", nil, f.supplier, http.StatusForbidden)

	// --- 7. The order creator was notified of the approval and the invoice ---
	notes := httpJSONList(t, server, "/api/v1/notifications", f.staff)
	types := map[string]bool{}
	for _, n := range notes {
		types[n["type"].(string)] = true
	}
	if !types["ORDER_APPROVED"] || !types["INVOICE_ISSUED"] {
		t.Errorf("notifications: got %v", types)
	}

	t.Logf("Integration test passed: container=%s, restaurant=%s, order=%s, invoice=%s",
		pgContainer.GetContainerID(), f.restaurantID, orderID, invoiceID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("procurement_test"),
		tcpostgres.WithUsername("procurement"),
		tcpostgres.WithPassword("procurement"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func seedFixture(t *testing.T, ctx context.Context, q *database.Queries) integrationFixture {
	t.Helper()

	restaurant, err := q.CreateRestaurant(ctx, "Test Kitchen")
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	supplier, err := q.CreateSupplier(ctx, database.CreateSupplierParams{
		Name:         "Test Supplier",
		Status:       database.SupplierStatusACTIVE,
		MinimumOrder: money.ToNumeric(decimal.NewFromInt(100)),
		LeadTimeDays: 2,
	})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}

	restaurantRef := pgtype.UUID{Bytes: restaurant.ID, Valid: true}
	f := integrationFixture{restaurantID: restaurant.ID, supplierID: supplier.ID}
	token := func(email, role string, restaurantRef, supplierRef pgtype.UUID) (string, uuid.UUID) {
		u, err := q.CreateUser(ctx, database.CreateUserParams{
			RestaurantID: restaurantRef,
			SupplierID:   supplierRef,
			Email:        email,
			FullName:     email,
			Role:         role,
		})
		if err != nil {
			t.Fatalf("create user %s: %v", email, err)
		}
		tok, err := auth.GenerateToken(integrationSecret, u.ID, uuid.UUID(restaurantRef.Bytes), uuid.UUID(supplierRef.Bytes), role)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		return tok, u.ID
	}

	var ownerID uuid.UUID
	f.owner, ownerID = token("owner@test.com", "OWNER", restaurantRef, pgtype.UUID{})
	f.manager, _ = token("manager@test.com", "MANAGER", restaurantRef, pgtype.UUID{})
	f.staff, f.staffID = token("staff@test.com", "STAFF", restaurantRef, pgtype.UUID{})
	f.supplier, _ = token("dispatch@supplier.test", "STAFF", pgtype.UUID{}, pgtype.UUID{Bytes: supplier.ID, Valid: true})

	if _, err := q.CreateApprovalRule(ctx, database.CreateApprovalRuleParams{
		RestaurantID: restaurant.ID,
		MinAmount:    money.ToNumeric(decimal.NewFromInt(500)),
		RequiredRole: "MANAGER",
		CreatedBy:    ownerID,
	}); err != nil {
		t.Fatalf("create approval rule: %v", err)
	}
	return f
}

func createDraftOrder(t *testing.T, ctx context.Context, q *database.Queries, f integrationFixture, subtotal, tax string) uuid.UUID {
	t.Helper()
	sub, tx := decimal.RequireFromString(subtotal), decimal.RequireFromString(tax)
	o, err := q.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:  "PO-0001",
		Subtotal:     money.ToNumeric(sub),
		Tax:          money.ToNumeric(tx),
		DeliveryFee:  money.ToNumeric(decimal.Zero),
		Discount:     money.ToNumeric(decimal.Zero),
		Total:        money.ToNumeric(sub.Add(tx)),
		RestaurantID: f.restaurantID,
		SupplierID:   f.supplierID,
		CreatedBy:    f.staffID,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o.ID
}

// --- HTTP helpers ---

func doJSON(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func httpJSON(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp := doJSON(t, server, method, path, body, token)
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d, body: %v", method, path, resp.StatusCode, wantStatus, result)
	}
	return result
}

func httpJSONList(t *testing.T, server *httptest.Server, path, token string) []map[string]interface{} {
	t.Helper()
	resp := doJSON(t, server, "GET", path, nil, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	var result []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("GET %s: decode response: %v", path, err)
	}
	return result
}

