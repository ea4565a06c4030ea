package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/procurement/internal/config"
	"github.com/kiwari-pos/procurement/internal/database"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/handler"
	mw "github.com/kiwari-pos/procurement/internal/middleware"
	"github.com/kiwari-pos/procurement/internal/service"
	"github.com/kiwari-pos/procurement/internal/ws"
	"go.uber.org/zap"
)

// New creates a Chi router with all application routes wired up.
// pool must also satisfy database.DBTX; *pgxpool.Pool does.
func New(cfg *config.Config, logger *zap.Logger, pool service.Pool, hub *ws.Hub, dispatcher *events.Dispatcher) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	queries := database.New(pool)

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, dispatcher, logger)
	approvalService := service.NewApprovalService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, dispatcher, logger)
	invoiceService := service.NewInvoiceService(pool, func(db database.DBTX) service.InvoiceStore {
		return database.New(db)
	}, dispatcher, logger)
	inventoryService := service.NewInventoryService(pool, func(db database.DBTX) service.InventoryStore {
		return database.New(db)
	}, dispatcher, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(orderService, approvalService, logger)
		r.Route("/orders", orderHandler.RegisterRoutes)

		invoiceHandler := handler.NewInvoiceHandler(invoiceService, logger)
		r.Route("/invoices", invoiceHandler.RegisterRoutes)

		notificationHandler := handler.NewNotificationHandler(queries, logger)
		r.Route("/notifications", notificationHandler.RegisterRoutes)

		// Restaurant-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			ruleHandler := handler.NewApprovalRuleHandler(service.NewApprovalRuleService(queries), logger)
			r.Route("/approval-rules", ruleHandler.RegisterRoutes)

			inventoryHandler := handler.NewInventoryHandler(inventoryService, logger)
			r.Route("/inventory", inventoryHandler.RegisterRoutes)
		})
	})

	logger.Info("router initialized")
	return r
}
