// Package workers projects order events into the ClickHouse delta facts.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ordercore/internal/clickhouse"
	"ordercore/internal/rabbitmq"
	"ordercore/pkg/logger"
)

// Source is a queue consumer; *rabbitmq.Consumer satisfies it.
type Source interface {
	ConsumeQueue(ctx context.Context, queueName string, handler rabbitmq.Handler) error
}

// FactWriter is the ClickHouse side; *clickhouse.Client satisfies it.
type FactWriter interface {
	InsertOrderDelta(ctx context.Context, d clickhouse.OrderDelta) error
	InsertLineItemDelta(ctx context.Context, d clickhouse.LineItemDelta) error
	HasOrderDelta(ctx context.Context, orderID int64, eventType string) (bool, error)
	HasLineItemDelta(ctx context.Context, lineItemID int64, eventType string) (bool, error)
}

const (
	maxRetries        = 3
	initialRetryDelay = 100 * time.Millisecond
	handleTimeout     = 30 * time.Second
)

// loadWithRetry runs load until it succeeds, backing off between attempts.
// A missing row is retried too since the event may outrun replication.
func loadWithRetry(ctx context.Context, db *gorm.DB, what string, load func(db *gorm.DB) error) error {
	delay := initialRetryDelay
	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err = load(db.WithContext(ctx))
		if err == nil {
			return nil
		}
		logger.L().Debug("retrying load", zap.String("what", what), zap.Int("attempt", i+1), zap.Error(err))
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s not found after %d retries", rabbitmq.ErrDiscard, what, maxRetries)
	}
	return fmt.Errorf("failed to load %s after %d retries: %w", what, maxRetries, err)
}
