package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ordercore/models"
	"ordercore/pkg/logger"
)

// ListOrders returns the customer's live orders, newest first, each with its
// items and the customer's default delivery address.
func (s *Service) ListOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	if customerID <= 0 {
		return nil, newError(ErrValidation, "customer_id is required")
	}
	db := s.db.WithContext(ctx)

	var orders []models.Order
	err := db.Where("customer_id = ?", customerID).
		Order("order_date DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders for customer %d: %w", customerID, err)
	}
	if len(orders) == 0 {
		return []models.Order{}, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var items []models.OrderItem
	if err := db.Where("order_id IN ?", ids).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list order items for customer %d: %w", customerID, err)
	}
	byOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	address, err := s.defaultAddress(ctx, customerID)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
		orders[i].DeliveryAddress = address
	}
	return orders, nil
}

// defaultAddress resolves the default address and its country, state and
// district names. A customer without one yields nil.
func (s *Service) defaultAddress(ctx context.Context, customerID int64) (*models.DeliveryAddress, error) {
	db := s.db.WithContext(ctx)

	var addr models.CustomerAddress
	err := db.Where("customer_id = ? AND is_default = ?", customerID, true).
		Order("id").
		First(&addr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load default address for customer %d: %w", customerID, err)
	}

	out := &models.DeliveryAddress{
		ID:          addr.ID,
		AddressLine: addr.AddressLine,
		Pincode:     addr.Pincode,
	}
	if out.Country, err = lookupName(db, &models.Country{}, addr.CountryID); err != nil {
		return nil, err
	}
	if out.State, err = lookupName(db, &models.State{}, addr.StateID); err != nil {
		return nil, err
	}
	if out.District, err = lookupName(db, &models.District{}, addr.DistrictID); err != nil {
		return nil, err
	}
	return out, nil
}

func lookupName(db *gorm.DB, model interface{}, id int64) (string, error) {
	if id == 0 {
		return "", nil
	}
	var names []string
	if err := db.Model(model).Where("id = ?", id).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", fmt.Errorf("lookup %T %d: %w", model, id, err)
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

func (s *Service) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.loadOrder(ctx, id)
}

func (s *Service) loadOrder(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "Order %d not found", id)
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	return &o, nil
}

// DeleteOrder soft-deletes the order header. Stock decrements and purged cart
// rows from placement are left as they are.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	db := s.db.WithContext(ctx)

	var o models.Order
	if err := db.First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(ErrNotFound, "Order %d not found", id)
		}
		return fmt.Errorf("load order %d: %w", id, err)
	}

	res := db.Delete(&o)
	if res.Error != nil {
		return fmt.Errorf("delete order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(ErrNotFound, "Order %d not found", id)
	}

	logger.L().Info("order deleted", zap.Int64("order_id", o.ID), zap.String("order_number", o.OrderNumber))

	if s.publisher != nil {
		err := s.publisher.PublishOrderEvent(ctx, models.OrderEvent{
			Event:       models.OrderEventDeleted,
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			CustomerID:  o.CustomerID,
		})
		if err != nil {
			logger.L().Warn("publish order event failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}
	return nil
}

// PreviewOrderNumber returns the next order number for prefix without
// reserving it. An empty prefix means the configured one.
func (s *Service) PreviewOrderNumber(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = s.prefix
	}
	return s.codes.Peek(ctx, prefix)
}
