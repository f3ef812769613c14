package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatusPlaced is the status every order is created with.
const OrderStatusPlaced = 1

type Order struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	OrderNumber    string          `gorm:"size:64;uniqueIndex;not null" json:"order_number"`
	OrderDate      time.Time       `gorm:"not null" json:"order_date"`
	CustomerID     int64           `gorm:"index;not null" json:"customer_id"`
	OrderStatus    int             `gorm:"not null;default:1" json:"order_status"`
	Subtotal       decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"total_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`

	Items           []OrderItem      `gorm:"foreignKey:OrderID" json:"items"`
	DeliveryAddress *DeliveryAddress `gorm:"-" json:"delivery_address,omitempty"`
}

type OrderItem struct {
	ID                 int64           `gorm:"primaryKey" json:"id"`
	OrderID            int64           `gorm:"index;not null" json:"order_id"`
	ProductID          int64           `gorm:"not null" json:"product_id"`
	ProductItemID      int64           `gorm:"index;not null" json:"product_item_id"`
	ProductName        string          `json:"product_name"`
	SkuID              string          `json:"sku_id"`
	Quantity           int             `gorm:"not null" json:"quantity"`
	Rate               decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"rate"`
	Amount             decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"amount"`
	MakingCharge       decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"making_charge"`
	Wastage            decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"wastage"`
	Tax                decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"tax"`
	TotalAmount        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"total_amount"`
	Purity             string          `json:"purity"`
	GrossWeight        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"gross_weight"`
	NetWeight          decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"net_weight"`
	StoneWeight        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"stone_weight"`
	MeasurementDetails json.RawMessage `gorm:"type:jsonb;serializer:json" json:"measurement_details,omitempty"`
	ImageURL           string          `json:"image_url"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
