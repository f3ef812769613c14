package models

import (
	"time"

	"gorm.io/gorm"
)

// CartItemType values stored in cart_wishlist_items.order_item_type.
const (
	CartItemTypeCart     = "CART"
	CartItemTypeWishlist = "WISHLIST"
)

// Product is owned by the catalog; the order core only reads product_type.
type Product struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	ProductName string         `json:"product_name"`
	ProductType string         `gorm:"size:64" json:"product_type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProductItemDetail is the stock row for one SKU.
type ProductItemDetail struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ProductID int64     `gorm:"index;not null" json:"product_id"`
	SkuID     string    `gorm:"size:64" json:"sku_id"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartWishlistItem struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	CustomerID    int64          `gorm:"index;not null" json:"customer_id"`
	ProductID     int64          `gorm:"not null" json:"product_id"`
	ProductItemID int64          `gorm:"index;not null" json:"product_item_id"`
	OrderItemType string         `gorm:"size:16;not null" json:"order_item_type"`
	Quantity      int            `gorm:"not null;default:1" json:"quantity"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
