package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a read-only local copy of a catalog item owned by the cloud.
// The cache is replaced wholesale per merchant on each successful refresh;
// UpdatedAt is the server-assigned watermark, never touched locally.
type Product struct {
	ID         string          `gorm:"type:text;primaryKey" json:"id"`
	MerchantID string          `gorm:"index:idx_products_merchant;not null" json:"merchantId"`
	Name       string          `gorm:"not null" json:"name"`
	PriceCents int64           `gorm:"not null" json:"priceCents"`
	// VatRate is a percentage (21 means 21%), applied per line at checkout.
	VatRate  decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"vatRate"`
	Category *string         `json:"category,omitempty"`
	SKU      *string         `json:"sku,omitempty"`
	IsActive bool            `gorm:"not null;default:true" json:"isActive"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:false;index:idx_products_merchant_updated" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }
