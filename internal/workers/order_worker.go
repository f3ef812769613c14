package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ordercore/internal/clickhouse"
	"ordercore/internal/rabbitmq"
	"ordercore/models"
	"ordercore/pkg/logger"
)

type OrderWorker struct {
	source    Source
	facts     FactWriter
	db        *gorm.DB
	queueName string
	now       func() time.Time
}

func NewOrderWorker(source Source, facts FactWriter, db *gorm.DB, queueName string) *OrderWorker {
	return &OrderWorker{
		source:    source,
		facts:     facts,
		db:        db,
		queueName: queueName,
		now:       time.Now,
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	logger.L().Info("starting order worker", zap.String("queue", w.queueName))
	return w.source.ConsumeQueue(ctx, w.queueName, w.handleMessage)
}

func (w *OrderWorker) handleMessage(ctx context.Context, body []byte) error {
	var evt models.OrderEvent
	if err := rabbitmq.ParseJSON(body, &evt); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	logger.L().Info("processing order event", zap.String("event", evt.Event), zap.Int64("order_id", evt.OrderID))

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch evt.Event {
	case models.OrderEventPlaced:
		return w.syncOrder(ctx, evt, 1, "place")
	case models.OrderEventDeleted:
		return w.syncOrder(ctx, evt, -1, "delete")
	default:
		return fmt.Errorf("%w: unknown order event type %q", rabbitmq.ErrDiscard, evt.Event)
	}
}

// syncOrder writes the order header as a delta with the given sign. A
// deletion first reverses every line so line facts net to zero. Each fact is
// written at most once per event type, so a requeued message only fills in
// what the previous attempt missed.
func (w *OrderWorker) syncOrder(ctx context.Context, evt models.OrderEvent, sign int32, eventType string) error {
	var o models.Order
	err := loadWithRetry(ctx, w.db, fmt.Sprintf("order %d", evt.OrderID), func(db *gorm.DB) error {
		return db.Unscoped().First(&o, evt.OrderID).Error
	})
	if err != nil {
		return err
	}

	ts := w.now()
	if sign < 0 {
		if err := w.reverseLineItems(ctx, o, eventType, ts); err != nil {
			return err
		}
	}

	exists, err := w.facts.HasOrderDelta(ctx, o.ID, eventType)
	if err != nil {
		return fmt.Errorf("failed to check order delta: %w", err)
	}
	if exists {
		logger.L().Info("order delta already recorded", zap.Int64("order_id", o.ID), zap.String("event_type", eventType))
		return nil
	}

	delta := orderDelta(o, sign, eventType, ts)
	if err := w.facts.InsertOrderDelta(ctx, delta); err != nil {
		return fmt.Errorf("failed to insert order delta: %w", err)
	}

	logger.L().Info("order event processed",
		zap.Int64("order_id", o.ID),
		zap.String("event_type", eventType),
		zap.String("delta_revenue", delta.DeltaRevenue.String()),
	)
	return nil
}

func (w *OrderWorker) reverseLineItems(ctx context.Context, o models.Order, eventType string, ts time.Time) error {
	var items []models.OrderItem
	err := loadWithRetry(ctx, w.db, fmt.Sprintf("items of order %d", o.ID), func(db *gorm.DB) error {
		return db.Where("order_id = ?", o.ID).Order("id").Find(&items).Error
	})
	if err != nil {
		return err
	}

	written := 0
	for _, it := range items {
		exists, err := w.facts.HasLineItemDelta(ctx, it.ID, eventType)
		if err != nil {
			return fmt.Errorf("failed to check line item delta %d: %w", it.ID, err)
		}
		if exists {
			continue
		}
		if err := w.facts.InsertLineItemDelta(ctx, lineItemDelta(o, it, -1, eventType, ts)); err != nil {
			return fmt.Errorf("failed to insert line item delta %d: %w", it.ID, err)
		}
		written++
	}

	logger.L().Info("reversed line items", zap.Int64("order_id", o.ID), zap.Int("count", written))
	return nil
}

func orderDelta(o models.Order, sign int32, eventType string, ts time.Time) clickhouse.OrderDelta {
	s := signOf(sign)
	return clickhouse.OrderDelta{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		DateKey:       o.OrderDate.Format(clickhouse.DateKeyLayout),
		CustomerKey:   o.CustomerID,
		DeltaSubtotal: o.Subtotal.Mul(s).Round(clickhouse.FactScale),
		DeltaTax:      o.TaxAmount.Mul(s).Round(clickhouse.FactScale),
		DeltaDiscount: o.DiscountAmount.Mul(s).Round(clickhouse.FactScale),
		DeltaRevenue:  o.TotalAmount.Mul(s).Round(clickhouse.FactScale),
		DeltaOrders:   sign,
		EventType:     eventType,
		EventTime:     ts,
	}
}
