package clickhouse

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateKeyLayout renders order dates as ddMMyyyy dimension keys.
const DateKeyLayout = "02012006"

// FactScale is the number of fractional digits the Decimal fact columns keep.
// Amounts are rounded to it before insert so nothing is cut off silently.
const FactScale = 10

// OrderDelta is one row of Fact_Order_Delta. A placed order contributes
// positive amounts and DeltaOrders 1; a deleted order the same values negated.
type OrderDelta struct {
	OrderID       int64
	OrderNumber   string
	DateKey       string
	CustomerKey   int64
	DeltaSubtotal decimal.Decimal
	DeltaTax      decimal.Decimal
	DeltaDiscount decimal.Decimal
	DeltaRevenue  decimal.Decimal
	DeltaOrders   int32
	EventType     string
	EventTime     time.Time
}

type LineItemDelta struct {
	LineItemID     int64
	OrderID        int64
	DateKey        string
	CustomerKey    int64
	ProductKey     int64
	ProductItemKey int64
	Purity         string
	DeltaNetWeight decimal.Decimal
	DeltaRevenue   decimal.Decimal
	DeltaTax       decimal.Decimal
	DeltaSold      int32
	EventType      string
	EventTime      time.Time
}

func schema(database string) []string {
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.Fact_Order_Delta (
			order_id       Int64,
			order_number   String,
			date_key       String,
			customer_key   Int64,
			delta_subtotal Decimal(38, 10),
			delta_tax      Decimal(38, 10),
			delta_discount Decimal(38, 10),
			delta_revenue  Decimal(38, 10),
			delta_orders   Int32,
			event_type     LowCardinality(String),
			event_time     DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (date_key, order_id, event_time)
		`, database),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.Fact_Line_Item_Delta (
			line_item_id     Int64,
			order_id         Int64,
			date_key         String,
			customer_key     Int64,
			product_key      Int64,
			product_item_key Int64,
			purity           LowCardinality(String),
			delta_net_weight Decimal(38, 10),
			delta_revenue    Decimal(38, 10),
			delta_tax        Decimal(38, 10),
			delta_sold       Int32,
			event_type       LowCardinality(String),
			event_time       DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (date_key, product_key, line_item_id, event_time)
		`, database),
	}
}
