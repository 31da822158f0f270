package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
)

// InvoiceRecord stores a draft or published e-invoice. The record is created
// once per checkout attempt and is never deleted by the checkout flow; a
// cancelled checkout simply leaves it as a draft.
type InvoiceRecord struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TradeNumber     string              `gorm:"column:trade_number;not null;index"`
	Status          enums.InvoiceStatus `gorm:"column:status;not null;default:'draft'"`
	EInvoiceStatus  int                 `gorm:"column:einvoice_status;not null;default:0"`
	InvoiceNumber   *string             `gorm:"column:invoice_number"`
	InvoiceDate     *string             `gorm:"column:invoice_date"`
	IssuerCode      string              `gorm:"column:issuer_code;not null"`
	TemplateCode    string              `gorm:"column:template_code;not null"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerTaxCode *string             `gorm:"column:customer_tax_code"`
	CustomerAddress *string             `gorm:"column:customer_address"`
	Subtotal        float64             `gorm:"column:subtotal;not null"`
	Tax             float64             `gorm:"column:tax;not null"`
	Total           float64             `gorm:"column:total;not null"`
	Lines           []InvoiceLine       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
