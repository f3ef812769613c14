// Package testutil provides an in-memory database seeded the way the order
// core expects to find the catalog.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ordercore/internal/postgres"
	"ordercore/models"
)

// NewDB opens an isolated in-memory SQLite database with every order-core
// table migrated. A single connection is used so transactions run one at a
// time, which stands in for Postgres row locks in tests.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := postgres.NewClientFromDB(db).Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func SeedProduct(t testing.TB, db *gorm.DB, name, productType string) models.Product {
	t.Helper()
	p := models.Product{ProductName: name, ProductType: productType}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedStock(t testing.TB, db *gorm.DB, productID int64, sku string, qty int) models.ProductItemDetail {
	t.Helper()
	s := models.ProductItemDetail{ProductID: productID, SkuID: sku, Quantity: qty}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return s
}

func SeedCartItem(t testing.TB, db *gorm.DB, customerID, productID, productItemID int64, itemType string) models.CartWishlistItem {
	t.Helper()
	c := models.CartWishlistItem{
		CustomerID:    customerID,
		ProductID:     productID,
		ProductItemID: productItemID,
		OrderItemType: itemType,
		Quantity:      1,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
	return c
}

// SeedDefaultAddress stores a default address with its country, state and
// district lookups.
func SeedDefaultAddress(t testing.TB, db *gorm.DB, customerID int64) models.CustomerAddress {
	t.Helper()
	country := models.Country{Name: "India"}
	state := models.State{Name: "Kerala"}
	district := models.District{Name: "Thrissur"}
	for _, v := range []interface{}{&country, &state, &district} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed lookup: %v", err)
		}
	}
	addr := models.CustomerAddress{
		CustomerID:  customerID,
		AddressLine: "12 Round North",
		Pincode:     "680001",
		CountryID:   country.ID,
		StateID:     state.ID,
		DistrictID:  district.ID,
		IsDefault:   true,
	}
	if err := db.Create(&addr).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return addr
}

func StockQuantity(t testing.TB, db *gorm.DB, id int64) int {
	t.Helper()
	var s models.ProductItemDetail
	if err := db.First(&s, id).Error; err != nil {
		t.Fatalf("load stock %d: %v", id, err)
	}
	return s.Quantity
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
