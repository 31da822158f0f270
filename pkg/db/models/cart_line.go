package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine snapshots one product inside a cart. Quantity >= 1 and
// UnitPrice >= 0 are enforced at the service layer.
type CartLine struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name              string    `gorm:"column:name;not null"`
	UnitPrice         float64   `gorm:"column:unit_price;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	TaxRate           int       `gorm:"column:tax_rate;not null;default:0"`
	AfterTaxUnitPrice *float64  `gorm:"column:after_tax_unit_price"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
