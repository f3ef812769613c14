package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"ordercore/config"
)

type Client struct {
	conn     driver.Conn
	database string
}

func NewClient(cfg config.ClickHouseConfig) (*Client, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  time.Second * 30,
	}

	// 8443 is the TLS port; native 9000 stays plain.
	if cfg.Port == 8443 {
		opts.TLS = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{
		conn:     conn,
		database: cfg.Database,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// EnsureSchema creates the delta fact tables when they do not exist yet.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema(c.database) {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply ClickHouse schema: %w", err)
		}
	}
	return nil
}

// InsertOrderDelta appends one signed order delta to Fact_Order_Delta.
func (c *Client) InsertOrderDelta(ctx context.Context, d OrderDelta) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.Fact_Order_Delta (
			order_id, order_number, date_key, customer_key,
			delta_subtotal, delta_tax, delta_discount, delta_revenue, delta_orders,
			event_type, event_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.database)

	return c.conn.Exec(ctx, query,
		d.OrderID,
		d.OrderNumber,
		d.DateKey,
		d.CustomerKey,
		d.DeltaSubtotal,
		d.DeltaTax,
		d.DeltaDiscount,
		d.DeltaRevenue,
		d.DeltaOrders,
		d.EventType,
		d.EventTime,
	)
}

// InsertLineItemDelta appends one signed line delta to Fact_Line_Item_Delta.
func (c *Client) InsertLineItemDelta(ctx context.Context, d LineItemDelta) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.Fact_Line_Item_Delta (
			line_item_id, order_id, date_key, customer_key, product_key, product_item_key,
			purity, delta_net_weight, delta_revenue, delta_tax, delta_sold,
			event_type, event_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.database)

	return c.conn.Exec(ctx, query,
		d.LineItemID,
		d.OrderID,
		d.DateKey,
		d.CustomerKey,
		d.ProductKey,
		d.ProductItemKey,
		d.Purity,
		d.DeltaNetWeight,
		d.DeltaRevenue,
		d.DeltaTax,
		d.DeltaSold,
		d.EventType,
		d.EventTime,
	)
}

// HasOrderDelta reports whether a delta of eventType was already written for
// the order.
func (c *Client) HasOrderDelta(ctx context.Context, orderID int64, eventType string) (bool, error) {
	return c.exists(ctx, "Fact_Order_Delta", "order_id", orderID, eventType)
}

func (c *Client) HasLineItemDelta(ctx context.Context, lineItemID int64, eventType string) (bool, error) {
	return c.exists(ctx, "Fact_Line_Item_Delta", "line_item_id", lineItemID, eventType)
}

func (c *Client) exists(ctx context.Context, table, keyColumn string, id int64, eventType string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT count()
		FROM %s.%s
		WHERE %s = ? AND event_type = ?
	`, c.database, table, keyColumn)

	var n uint64
	if err := c.conn.QueryRow(ctx, query, id, eventType).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
