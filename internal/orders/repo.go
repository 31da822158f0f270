package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
)

// Repository persists completed and pending orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order with its lines. Pure create, no upsert.
func (r *Repository) Create(ctx context.Context, order *models.OrderRecord) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID returns the order with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	var order models.OrderRecord
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByTerminal returns the terminal's most recent orders.
func (r *Repository) ListByTerminal(ctx context.Context, terminalID string, limit int) ([]models.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []models.OrderRecord
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("terminal_id = ?", terminalID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
