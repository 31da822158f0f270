package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is one sold item on an order.
type OrderLine struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name              string    `gorm:"column:name;not null"`
	UnitPrice         float64   `gorm:"column:unit_price;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	TaxRate           int       `gorm:"column:tax_rate;not null;default:0"`
	AfterTaxUnitPrice *float64  `gorm:"column:after_tax_unit_price"`
	LineSubtotal      float64   `gorm:"column:line_subtotal;not null"`
	LineTax           float64   `gorm:"column:line_tax;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
