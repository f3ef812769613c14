package models

import "gorm.io/gorm"

type CustomerAddress struct {
	ID          int64          `gorm:"primaryKey"`
	CustomerID  int64          `gorm:"index;not null"`
	AddressLine string
	Pincode     string
	CountryID   int64
	StateID     int64
	DistrictID  int64
	IsDefault   bool
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

type Country struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

type State struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

type District struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

// DeliveryAddress is the resolved default address attached to order listings.
type DeliveryAddress struct {
	ID          int64  `json:"id"`
	AddressLine string `json:"address_line"`
	Pincode     string `json:"pincode"`
	Country     string `json:"country"`
	State       string `json:"state"`
	District    string `json:"district"`
}
