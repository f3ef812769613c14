// Package order places orders against locked stock rows and serves the
// order read side.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordercore/internal/codegen"
	"ordercore/internal/metrics"
	"ordercore/internal/pricing"
	"ordercore/models"
	"ordercore/pkg/logger"
)

const defaultMaxNumberAttempts = 50

// Publisher receives order events after the placing transaction commits.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error
	PublishLineItemEvent(ctx context.Context, evt models.LineItemEvent) error
}

type Service struct {
	db          *gorm.DB
	codes       *codegen.Generator
	publisher   Publisher
	metrics     *metrics.Metrics
	prefix      string
	maxAttempts int
	now         func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNumbering sets the order number prefix and the collision retry cap.
func WithNumbering(prefix string, maxAttempts int) Option {
	return func(s *Service) {
		if prefix != "" {
			s.prefix = prefix
		}
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, codes *codegen.Generator, opts ...Option) *Service {
	s := &Service{
		db:          db,
		codes:       codes,
		prefix:      "ORD",
		maxAttempts: defaultMaxNumberAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateOrderInput struct {
	CustomerID     int64
	DiscountAmount decimal.Decimal
	OrderDate      *time.Time
	Items          []LineInput
}

type LineInput struct {
	ProductID          int64
	ProductItemID      int64
	Quantity           int
	Rate               decimal.Decimal
	NetWeight          decimal.Decimal
	MakingCharge       decimal.Decimal
	Wastage            decimal.Decimal
	Purity             string
	GrossWeight        decimal.Decimal
	StoneWeight        decimal.Decimal
	MeasurementDetails json.RawMessage
	ImageURL           string
	ProductName        string
	SkuID              string
}

func (in CreateOrderInput) validate() error {
	if in.CustomerID <= 0 {
		return newError(ErrValidation, "customer_id is required")
	}
	if len(in.Items) == 0 {
		return newError(ErrValidation, "items must not be empty")
	}
	if in.DiscountAmount.IsNegative() {
		return newError(ErrValidation, "discount_amount must not be negative")
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 || it.ProductItemID <= 0 {
			return newError(ErrValidation, "items[%d]: product_id and product_item_id are required", i)
		}
		if it.Quantity <= 0 {
			return newError(ErrValidation, "items[%d]: quantity must be positive", i)
		}
	}
	return nil
}

// CreateOrder places an order in a single transaction: it reserves an order
// number, locks and decrements every stock row, prices each line, removes the
// matching cart rows and writes the header and its items. Any failure rolls
// the whole placement back.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	started := time.Now()
	log := logger.L().With(zap.Int64("customer_id", in.CustomerID))

	if err := in.validate(); err != nil {
		s.metrics.OrderFailed(failureReason(err), time.Since(started))
		return nil, err
	}

	// Locks are always taken in product_item_id order so two orders sharing
	// SKUs cannot wait on each other.
	lines := make([]LineInput, len(in.Items))
	copy(lines, in.Items)
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ProductItemID < lines[j].ProductItemID
	})

	var (
		placed models.Order
		units  int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.reserveOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		subtotal, taxTotal := decimal.Zero, decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			item, err := s.placeLine(tx, in.CustomerID, line)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.TotalAmount)
			taxTotal = taxTotal.Add(item.Tax)
			units += item.Quantity
			items = append(items, *item)
		}

		orderDate := s.now()
		if in.OrderDate != nil {
			orderDate = *in.OrderDate
		}
		placed = models.Order{
			OrderNumber:    number,
			OrderDate:      orderDate,
			CustomerID:     in.CustomerID,
			OrderStatus:    models.OrderStatusPlaced,
			Subtotal:       subtotal,
			TaxAmount:      taxTotal,
			DiscountAmount: in.DiscountAmount,
			TotalAmount:    subtotal.Sub(in.DiscountAmount),
		}
		if err := tx.Create(&placed).Error; err != nil {
			return fmt.Errorf("create order %s: %w", number, err)
		}

		for i := range items {
			items[i].OrderID = placed.ID
		}
		if err := tx.CreateInBatches(&items, 100).Error; err != nil {
			return fmt.Errorf("create items for order %s: %w", number, err)
		}
		placed.Items = items
		return nil
	})
	if err != nil {
		s.metrics.OrderFailed(failureReason(err), time.Since(started))
		log.Warn("order placement rolled back", zap.Error(err))
		return nil, err
	}

	s.metrics.OrderPlaced(units, time.Since(started))
	log.Info("order placed",
		zap.Int64("order_id", placed.ID),
		zap.String("order_number", placed.OrderNumber),
		zap.String("total_amount", placed.TotalAmount.String()),
		zap.Int("lines", len(placed.Items)),
	)

	created, err := s.loadOrder(ctx, placed.ID)
	if err != nil {
		log.Warn("re-read of placed order failed", zap.Int64("order_id", placed.ID), zap.Error(err))
		created = &placed
	}

	s.publishPlaced(ctx, created)
	return created, nil
}

// reserveOrderNumber draws candidates until one is not present in orders,
// soft-deleted rows included.
func (s *Service) reserveOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		number, err := s.codes.Next(ctx, tx, s.prefix)
		if err != nil {
			return "", err
		}

		var taken []models.Order
		err = tx.Unscoped().
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("order_number = ?", number).
			Limit(1).
			Find(&taken).Error
		if err != nil {
			return "", fmt.Errorf("check order number %s: %w", number, err)
		}
		if len(taken) == 0 {
			return number, nil
		}

		s.metrics.NumberCollision()
		logger.L().Warn("order number already taken", zap.String("order_number", number), zap.Int("attempt", attempt))
	}
	return "", newError(ErrConflict, "could not reserve a unique order number after %d attempts", s.maxAttempts)
}

func (s *Service) placeLine(tx *gorm.DB, customerID int64, line LineInput) (*models.OrderItem, error) {
	var product models.Product
	if err := tx.First(&product, line.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "Product %d not found", line.ProductID)
		}
		return nil, fmt.Errorf("load product %d: %w", line.ProductID, err)
	}

	var stock models.ProductItemDetail
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&stock, line.ProductItemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "ProductItem not Found")
		}
		return nil, fmt.Errorf("lock product item %d: %w", line.ProductItemID, err)
	}

	if stock.Quantity < line.Quantity {
		return nil, insufficientStock(stock, line.Quantity)
	}

	priced := pricing.Price(pricing.ParseModel(product.ProductType), pricing.Line{
		Quantity:     line.Quantity,
		Rate:         line.Rate,
		NetWeight:    line.NetWeight,
		MakingCharge: line.MakingCharge,
		Wastage:      line.Wastage,
	})

	res := tx.Model(&models.ProductItemDetail{}).
		Where("id = ? AND quantity >= ?", stock.ID, line.Quantity).
		Update("quantity", gorm.Expr("quantity - ?", line.Quantity))
	if res.Error != nil {
		return nil, fmt.Errorf("decrement product item %d: %w", stock.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, insufficientStock(stock, line.Quantity)
	}

	// Cart rows are removed for good, not soft-deleted.
	err = tx.Unscoped().
		Where("customer_id = ? AND product_item_id = ? AND order_item_type = ?",
			customerID, line.ProductItemID, models.CartItemTypeCart).
		Delete(&models.CartWishlistItem{}).Error
	if err != nil {
		return nil, fmt.Errorf("purge cart for product item %d: %w", line.ProductItemID, err)
	}

	return &models.OrderItem{
		ProductID:          line.ProductID,
		ProductItemID:      line.ProductItemID,
		ProductName:        line.ProductName,
		SkuID:              line.SkuID,
		Quantity:           line.Quantity,
		Rate:               line.Rate,
		Amount:             priced.Amount,
		MakingCharge:       priced.MakingCharge,
		Wastage:            priced.Wastage,
		Tax:                priced.Tax,
		TotalAmount:        priced.Total,
		Purity:             line.Purity,
		GrossWeight:        line.GrossWeight,
		NetWeight:          line.NetWeight,
		StoneWeight:        line.StoneWeight,
		MeasurementDetails: line.MeasurementDetails,
		ImageURL:           line.ImageURL,
	}, nil
}

func insufficientStock(stock models.ProductItemDetail, requested int) error {
	return newError(ErrInsufficientStock,
		"Insufficient stock for product item %d (sku %s): requested %d, available %d",
		stock.ID, stock.SkuID, requested, stock.Quantity)
}

func (s *Service) publishPlaced(ctx context.Context, o *models.Order) {
	if s.publisher == nil {
		return
	}
	log := logger.L().With(zap.Int64("order_id", o.ID))

	err := s.publisher.PublishOrderEvent(ctx, models.OrderEvent{
		Event:       models.OrderEventPlaced,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
	})
	if err != nil {
		log.Warn("publish order event failed", zap.Error(err))
	}

	for _, it := range o.Items {
		err := s.publisher.PublishLineItemEvent(ctx, models.LineItemEvent{
			Event:       models.LineItemEventCreated,
			OrderItemID: it.ID,
			OrderID:     o.ID,
		})
		if err != nil {
			log.Warn("publish line item event failed", zap.Int64("order_item_id", it.ID), zap.Error(err))
		}
	}
}
