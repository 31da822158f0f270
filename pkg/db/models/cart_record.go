package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
)

// CartRecord is the live cart for a terminal. At most one active record per
// terminal; checkout operates on an immutable snapshot, not on this row.
type CartRecord struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TerminalID string           `gorm:"column:terminal_id;not null;index"`
	Status     enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Lines      []CartLine       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
