package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ordercore/config"
	"ordercore/internal/api"
	"ordercore/internal/api/handlers"
	"ordercore/internal/cache"
	"ordercore/internal/codegen"
	"ordercore/internal/metrics"
	"ordercore/internal/order"
	"ordercore/internal/postgres"
	"ordercore/internal/rabbitmq"
	"ordercore/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	pgClient, err := postgres.NewClient(postgres.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		Username: cfg.Postgres.Username,
		Password: cfg.Postgres.Password,
		TimeZone: cfg.Postgres.TimeZone,
	})
	if err != nil {
		log.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer pgClient.Close()

	if err := pgClient.Migrate(); err != nil {
		log.Fatal("failed to migrate", zap.Error(err))
	}

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ)
	if err != nil {
		log.Fatal("failed to create publisher", zap.Error(err))
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db := pgClient.DB()
	codes := codegen.New(db, codegen.Options{
		Separator: cfg.Order.NumberSeparator,
		Width:     cfg.Order.NumberPadWidth,
	})
	svc := order.NewService(db, codes,
		order.WithPublisher(publisher),
		order.WithMetrics(metrics.New(reg)),
		order.WithNumbering(cfg.Order.NumberPrefix, cfg.Order.NumberMaxAttempts),
	)

	var orders handlers.OrderService = svc
	rdb, err := cache.ConnectRedis(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, serving orders without cache", zap.Error(err))
	} else {
		defer rdb.Close()
		orders = cache.NewCachedOrderService(svc, rdb, cfg.Redis.TTL)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(orders, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
