package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. AfterTaxUnitPrice stores the tax-inclusive
// price alongside the pre-tax unit price; per-line tax is derived from their
// difference, never from a flat percentage of the unit price.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU               string    `gorm:"column:sku;not null;uniqueIndex"`
	Name              string    `gorm:"column:name;not null"`
	UnitPrice         float64   `gorm:"column:unit_price;not null"`
	TaxRate           int       `gorm:"column:tax_rate;not null;default:0"`
	AfterTaxUnitPrice *float64  `gorm:"column:after_tax_unit_price"`
	Active            bool      `gorm:"column:active;not null;default:true"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
