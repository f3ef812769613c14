// Package cache puts a Redis read-through cache in front of order reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ordercore/internal/order"
	"ordercore/models"
	"ordercore/pkg/logger"
)

const defaultTTL = 5 * time.Minute

// deletedMarker is cached under a deleted order's key so a fill that read the
// row before the delete cannot bring it back.
const deletedMarker = "notfound"

// Store is the subset of redis commands the cache uses. *redis.Client
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedOrderService caches single-order reads. Redis failures are logged
// and the call falls through to the database.
type CachedOrderService struct {
	realService *order.Service
	redis       Store
	ttl         time.Duration
}

func NewCachedOrderService(realService *order.Service, rdb Store, ttl time.Duration) *CachedOrderService {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedOrderService{
		realService: realService,
		redis:       rdb,
		ttl:         ttl,
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func (c *CachedOrderService) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	key := orderKey(id)
	log := logger.L().With(zap.String("key", key))

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(data) == deletedMarker:
		return nil, &order.Error{Kind: order.ErrNotFound, Message: fmt.Sprintf("Order %d not found", id)}
	case err == nil:
		var o models.Order
		if err := json.Unmarshal(data, &o); err != nil {
			log.Warn("failed to unmarshal cached order, continuing with DB", zap.Error(err))
			c.invalidate(ctx, id)
			break
		}
		return &o, nil
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("redis error, continuing with DB", zap.Error(err))
	}

	o, err := c.realService.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.fill(ctx, o)
	return o, nil
}

// fill caches o unless the key is already taken, which includes the marker
// left by a concurrent delete.
func (c *CachedOrderService) fill(ctx context.Context, o *models.Order) {
	log := logger.L().With(zap.Int64("order_id", o.ID))
	payload, err := json.Marshal(o)
	if err != nil {
		log.Warn("failed to marshal order", zap.Error(err))
		return
	}
	if err := c.redis.SetNX(ctx, orderKey(o.ID), payload, c.ttl).Err(); err != nil {
		log.Warn("failed to cache order", zap.Error(err))
	}
}

func (c *CachedOrderService) DeleteOrder(ctx context.Context, id int64) error {
	err := c.realService.DeleteOrder(ctx, id)
	if err == nil {
		c.markDeleted(ctx, id)
	} else {
		c.invalidate(ctx, id)
	}
	return err
}

// markDeleted overwrites any cached copy with the deleted marker for one TTL.
// Deleted orders are never restored, so the marker cannot hide a live row.
func (c *CachedOrderService) markDeleted(ctx context.Context, id int64) {
	if err := c.redis.Set(ctx, orderKey(id), deletedMarker, c.ttl).Err(); err != nil {
		logger.L().Warn("failed to mark order deleted in cache", zap.Int64("order_id", id), zap.Error(err))
		c.invalidate(ctx, id)
	}
}

func (c *CachedOrderService) invalidate(ctx context.Context, id int64) {
	if err := c.redis.Del(ctx, orderKey(id)).Err(); err != nil {
		logger.L().Warn("failed to delete order cache", zap.Int64("order_id", id), zap.Error(err))
	}
}

func (c *CachedOrderService) CreateOrder(ctx context.Context, in order.CreateOrderInput) (*models.Order, error) {
	return c.realService.CreateOrder(ctx, in)
}

func (c *CachedOrderService) ListOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	return c.realService.ListOrders(ctx, customerID)
}

func (c *CachedOrderService) PreviewOrderNumber(ctx context.Context, prefix string) (string, error) {
	return c.realService.PreviewOrderNumber(ctx, prefix)
}
