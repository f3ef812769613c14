package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ordercore/internal/clickhouse"
	"ordercore/internal/rabbitmq"
	"ordercore/models"
	"ordercore/pkg/logger"
)

type LineItemWorker struct {
	source    Source
	facts     FactWriter
	db        *gorm.DB
	queueName string
	now       func() time.Time
}

func NewLineItemWorker(source Source, facts FactWriter, db *gorm.DB, queueName string) *LineItemWorker {
	return &LineItemWorker{
		source:    source,
		facts:     facts,
		db:        db,
		queueName: queueName,
		now:       time.Now,
	}
}

func (w *LineItemWorker) Start(ctx context.Context) error {
	logger.L().Info("starting line item worker", zap.String("queue", w.queueName))
	return w.source.ConsumeQueue(ctx, w.queueName, w.handleMessage)
}

func (w *LineItemWorker) handleMessage(ctx context.Context, body []byte) error {
	var evt models.LineItemEvent
	if err := rabbitmq.ParseJSON(body, &evt); err != nil {
		return fmt.Errorf("failed to unmarshal line item event: %w", err)
	}

	logger.L().Info("processing line item event",
		zap.String("event", evt.Event),
		zap.Int64("order_item_id", evt.OrderItemID),
		zap.Int64("order_id", evt.OrderID),
	)

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch evt.Event {
	case models.LineItemEventCreated:
		return w.syncLineItem(ctx, evt)
	default:
		return fmt.Errorf("%w: unknown line item event type %q", rabbitmq.ErrDiscard, evt.Event)
	}
}

func (w *LineItemWorker) syncLineItem(ctx context.Context, evt models.LineItemEvent) error {
	var (
		it models.OrderItem
		o  models.Order
	)
	err := loadWithRetry(ctx, w.db, fmt.Sprintf("order item %d", evt.OrderItemID), func(db *gorm.DB) error {
		if err := db.First(&it, evt.OrderItemID).Error; err != nil {
			return err
		}
		// The header may already be soft-deleted; its line still counts once.
		return db.Unscoped().First(&o, it.OrderID).Error
	})
	if err != nil {
		return err
	}

	exists, err := w.facts.HasLineItemDelta(ctx, it.ID, "create")
	if err != nil {
		return fmt.Errorf("failed to check line item delta: %w", err)
	}
	if exists {
		logger.L().Info("line item delta already recorded", zap.Int64("order_item_id", it.ID))
		return nil
	}

	delta := lineItemDelta(o, it, 1, "create", w.now())
	if err := w.facts.InsertLineItemDelta(ctx, delta); err != nil {
		return fmt.Errorf("failed to insert line item delta: %w", err)
	}

	logger.L().Info("line item event processed",
		zap.Int64("order_item_id", it.ID),
		zap.String("delta_revenue", delta.DeltaRevenue.String()),
	)
	return nil
}

func lineItemDelta(o models.Order, it models.OrderItem, sign int32, eventType string, ts time.Time) clickhouse.LineItemDelta {
	s := signOf(sign)
	return clickhouse.LineItemDelta{
		LineItemID:     it.ID,
		OrderID:        o.ID,
		DateKey:        o.OrderDate.Format(clickhouse.DateKeyLayout),
		CustomerKey:    o.CustomerID,
		ProductKey:     it.ProductID,
		ProductItemKey: it.ProductItemID,
		Purity:         it.Purity,
		DeltaNetWeight: it.NetWeight.Mul(decimal.NewFromInt(int64(it.Quantity))).Mul(s).Round(clickhouse.FactScale),
		DeltaRevenue:   it.TotalAmount.Mul(s).Round(clickhouse.FactScale),
		DeltaTax:       it.Tax.Mul(s).Round(clickhouse.FactScale),
		DeltaSold:      sign * int32(it.Quantity),
		EventType:      eventType,
		EventTime:      ts,
	}
}

func signOf(sign int32) decimal.Decimal {
	return decimal.NewFromInt32(sign)
}
