package models

// OrderEvent is the RabbitMQ payload published for order header changes
type OrderEvent struct {
	Event       string `json:"event"`        // placed | deleted
	OrderID     int64  `json:"order_id"`     // ID in Postgres
	OrderNumber string `json:"order_number"` // human-readable number
	CustomerID  int64  `json:"customer_id"`
}

// LineItemEvent is the RabbitMQ payload published per order line
type LineItemEvent struct {
	Event       string `json:"event"`         // created
	OrderItemID int64  `json:"order_item_id"` // ID in Postgres
	OrderID     int64  `json:"order_id"`
}

const (
	OrderEventPlaced     = "placed"
	OrderEventDeleted    = "deleted"
	LineItemEventCreated = "created"
)
