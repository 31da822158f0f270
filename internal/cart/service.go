package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tqvinh-dev/salepoint-backend/internal/display"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

type cartStore interface {
	FindActiveByTerminal(ctx context.Context, terminalID string) (*models.CartRecord, error)
	FindOrCreateActive(ctx context.Context, terminalID string) (*models.CartRecord, error)
	CreateLine(ctx context.Context, line *models.CartLine) error
	UpdateLineQuantity(ctx context.Context, cartID, lineID uuid.UUID, quantity int) (int64, error)
	DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (int64, error)
	DeleteLines(ctx context.Context, cartID uuid.UUID) error
	MarkConverted(ctx context.Context, cartID uuid.UUID) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes live-cart operations for a terminal.
type Service interface {
	Get(ctx context.Context, terminalID string) (Snapshot, error)
	AddLine(ctx context.Context, terminalID string, productID uuid.UUID, quantity int) (Snapshot, error)
	UpdateQuantity(ctx context.Context, terminalID string, lineID uuid.UUID, quantity int) (Snapshot, error)
	RemoveLine(ctx context.Context, terminalID string, lineID uuid.UUID) (Snapshot, error)
	Clear(ctx context.Context, terminalID string) (Snapshot, error)
	ConvertActive(ctx context.Context, terminalID string) error
}

type service struct {
	repo     cartStore
	products productLoader
	sink     display.Publisher
	logger   *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo cartStore, products productLoader, sink display.Publisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if sink == nil {
		sink = display.NoopPublisher{}
	}
	return &service{
		repo:     repo,
		products: products,
		sink:     sink,
		logger:   logg,
	}, nil
}

func (s *service) Get(ctx context.Context, terminalID string) (Snapshot, error) {
	record, err := s.repo.FindOrCreateActive(ctx, terminalID)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return SnapshotOf(record), nil
}

// AddLine merges into the existing line for the same product or appends a
// new line, then broadcasts the updated cart.
func (s *service) AddLine(ctx context.Context, terminalID string, productID uuid.UUID, quantity int) (Snapshot, error) {
	if quantity < 1 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "product is not for sale")
	}

	record, err := s.repo.FindOrCreateActive(ctx, terminalID)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	merged := false
	for _, line := range record.Lines {
		if line.ProductID == productID {
			if _, err := s.repo.UpdateLineQuantity(ctx, record.ID, line.ID, line.Quantity+quantity); err != nil {
				return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
			}
			merged = true
			break
		}
	}

	if !merged {
		line := &models.CartLine{
			CartID:            record.ID,
			ProductID:         product.ID,
			Name:              product.Name,
			UnitPrice:         product.UnitPrice,
			Quantity:          quantity,
			TaxRate:           product.TaxRate,
			AfterTaxUnitPrice: product.AfterTaxUnitPrice,
		}
		if err := s.repo.CreateLine(ctx, line); err != nil {
			return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart line")
		}
	}

	return s.reload(ctx, terminalID)
}

func (s *service) UpdateQuantity(ctx context.Context, terminalID string, lineID uuid.UUID, quantity int) (Snapshot, error) {
	if quantity < 1 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	record, err := s.repo.FindActiveByTerminal(ctx, terminalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	affected, err := s.repo.UpdateLineQuantity(ctx, record.ID, lineID, quantity)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	if affected == 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}

	return s.reload(ctx, terminalID)
}

func (s *service) RemoveLine(ctx context.Context, terminalID string, lineID uuid.UUID) (Snapshot, error) {
	record, err := s.repo.FindActiveByTerminal(ctx, terminalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	affected, err := s.repo.DeleteLine(ctx, record.ID, lineID)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	if affected == 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}

	return s.reload(ctx, terminalID)
}

func (s *service) Clear(ctx context.Context, terminalID string) (Snapshot, error) {
	record, err := s.repo.FindActiveByTerminal(ctx, terminalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{TerminalID: terminalID}, nil
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.DeleteLines(ctx, record.ID); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	return s.reload(ctx, terminalID)
}

// ConvertActive retires the terminal's active cart after a completed sale.
func (s *service) ConvertActive(ctx context.Context, terminalID string) error {
	record, err := s.repo.FindActiveByTerminal(ctx, terminalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.DeleteLines(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	if err := s.repo.MarkConverted(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
	}
	return nil
}

func (s *service) reload(ctx context.Context, terminalID string) (Snapshot, error) {
	record, err := s.repo.FindActiveByTerminal(ctx, terminalID)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}

	snap := SnapshotOf(record)
	s.sink.Publish(ctx, display.NewEvent(enums.DisplayEventCartUpdate, terminalID, map[string]any{
		"lines":  snap.Lines,
		"totals": snap.Totals,
	}))
	return snap, nil
}
