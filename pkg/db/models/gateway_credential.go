package models

import (
	"time"

	"github.com/google/uuid"
)

// GatewayCredential holds the e-invoice provider connection info for an
// issuer. Publishing requires an active row for the chosen issuer; its
// absence is a configuration error, not a retryable failure.
type GatewayCredential struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider     string    `gorm:"column:provider;not null"`
	IssuerCode   string    `gorm:"column:issuer_code;not null;index"`
	AccountCode  string    `gorm:"column:account_code;not null"`
	Username     string    `gorm:"column:username;not null"`
	Password     string    `gorm:"column:password;not null"`
	TemplateCode string    `gorm:"column:template_code;not null"`
	SerialSymbol string    `gorm:"column:serial_symbol;not null"`
	Active       bool      `gorm:"column:active;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
