package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
)

// Repository persists invoice records and reads issuer credentials.
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

// Create inserts the invoice with its lines. Pure create, no upsert.
func (r *Repository) Create(ctx context.Context, invoice *models.InvoiceRecord) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// FindByID returns the invoice with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	var invoice models.InvoiceRecord
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns the most recent invoices.
func (r *Repository) List(ctx context.Context, limit int) ([]models.InvoiceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var invoices []models.InvoiceRecord
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Order("created_at DESC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// ActiveCredential returns the active provider credential for the issuer.
func (r *Repository) ActiveCredential(ctx context.Context, issuerCode string) (*models.GatewayCredential, error) {
	var credential models.GatewayCredential
	err := r.db.WithContext(ctx).
		Where("issuer_code = ? AND active = ?", issuerCode, true).
		Order("updated_at DESC").
		First(&credential).Error
	if err != nil {
		return nil, err
	}
	return &credential, nil
}
