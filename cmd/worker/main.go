package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"ordercore/config"
	"ordercore/internal/clickhouse"
	"ordercore/internal/postgres"
	"ordercore/internal/rabbitmq"
	"ordercore/internal/workers"
	"ordercore/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.Init(cfg.LogLevel)
	defer logger.Sync()
	log.Info("starting order analytics workers")

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("configuration loaded",
		zap.String("clickhouse", cfg.ClickHouse.Host),
		zap.String("clickhouse_database", cfg.ClickHouse.Database),
		zap.String("postgres", cfg.Postgres.Host),
		zap.String("postgres_database", cfg.Postgres.Database),
	)

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

	chClient, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatal("failed to connect to ClickHouse", zap.Error(err))
	}
	defer chClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chClient.EnsureSchema(ctx); err != nil {
		log.Fatal("failed to prepare ClickHouse tables", zap.Error(err))
	}

	orderConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ)
	if err != nil {
		log.Fatal("failed to create order consumer", zap.Error(err))
	}
	defer orderConsumer.Close()

	lineItemConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ)
	if err != nil {
		log.Fatal("failed to create line item consumer", zap.Error(err))
	}
	defer lineItemConsumer.Close()

	orderWorker := workers.NewOrderWorker(orderConsumer, chClient, pgClient.DB(), cfg.RabbitMQ.OrderQueue)
	lineItemWorker := workers.NewLineItemWorker(lineItemConsumer, chClient, pgClient.DB(), cfg.RabbitMQ.LineItemQueue)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := orderWorker.Start(ctx); err != nil {
			log.Error("order worker stopped", zap.Error(err))
			stop()
		}
	}()

	go func() {
		defer wg.Done()
		if err := lineItemWorker.Start(ctx); err != nil {
			log.Error("line item worker stopped", zap.Error(err))
			stop()
		}
	}()

	log.Info("all workers started")

	<-ctx.Done()
	log.Info("shutting down workers")
	wg.Wait()
	log.Info("workers stopped")
}
