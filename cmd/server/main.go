package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/procurement/internal/config"
	"github.com/kiwari-pos/procurement/internal/events"
	"github.com/kiwari-pos/procurement/internal/observability"
	"github.com/kiwari-pos/procurement/internal/router"
	"github.com/kiwari-pos/procurement/internal/ws"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = otelShutdown(sctx)
	}()

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	broker, closeBroker, err := newBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBroker()

	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	dispatcher := events.NewDispatcher(events.Multi{broker, hub}, logger.Named("events"), cfg.EventTimeout)
	defer dispatcher.Wait()

	r := router.New(cfg, logger, pool, hub, dispatcher)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, config.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("broker", cfg.EventBroker))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newBroker selects the outbound event publisher from EVENT_BROKER.
func newBroker(cfg *config.Config, logger *zap.Logger) (events.Publisher, func(), error) {
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		rmq, err := events.DialRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("publishing events to rabbitmq", zap.String("exchange", cfg.RabbitMQExchange))
		return rmq, func() { _ = rmq.Close() }, nil
	case config.BrokerKafka:
		k := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return k, func() { _ = k.Close() }, nil
	case config.BrokerLog, "":
		return events.NewLogPublisher(logger.Named("events")), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown EVENT_BROKER %q", cfg.EventBroker)
}
