package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/idempotency"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/services/food-order-service-go/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTelEnabled {
		shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.Environment, cfg.OTelEndpoint)
		if err != nil {
			logger.Error("failed to set up tracing", "err", err)
		} else {
			defer func() {
				tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer tcancel()
				if err := shutdownTracer(tctx); err != nil {
					logger.Warn("tracer shutdown", "err", err)
				}
			}()
		}
	}

	// DB
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// RabbitMQ
	var publisher order.EventPublisher = order.NopPublisher{}
	if cfg.RabbitURL != "" {
		conn, err := amqp.DialConfig(cfg.RabbitURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "err", err)
			os.Exit(1)
		}
		defer conn.Close()

		p, err := events.NewPublisher(conn, sequence.NewCounter(pool), events.PublisherOptions{
			Producer: cfg.ServiceName,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to create event publisher", "err", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Warn("RABBITMQ_URL not set, order events are disabled")
	}

	// Redis
	var idem idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, idempotency keys may fail", "addr", cfg.RedisAddr, "err", err)
		}
		idem = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)
	}

	svc := order.NewService(pool, payment.NewSimulator(cfg.PaymentMethods), publisher, logger)
	handler := httpapi.NewHandler(svc, httpapi.HandlerOptions{
		ServiceName:    cfg.ServiceName,
		RequestTimeout: cfg.RequestTimeout,
		Idempotency:    idem,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("food-order-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
