package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
)

// OrderRecord is the durable result of a completed (or pending) checkout.
// OrderNumber is caller-generated and time-based; uniqueness is best-effort.
type OrderRecord struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber    string              `gorm:"column:order_number;not null;index"`
	TerminalID     string              `gorm:"column:terminal_id;not null;index"`
	TableID        *string             `gorm:"column:table_id"`
	Status         enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null"`
	EInvoiceStatus int                 `gorm:"column:einvoice_status;not null;default:0"`
	AmountReceived *float64            `gorm:"column:amount_received"`
	ChangeGiven    *float64            `gorm:"column:change_given"`
	Subtotal       float64             `gorm:"column:subtotal;not null"`
	Tax            float64             `gorm:"column:tax;not null"`
	Total          float64             `gorm:"column:total;not null"`
	Lines          []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
