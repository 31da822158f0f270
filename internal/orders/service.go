package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
)

type orderStore interface {
	Create(ctx context.Context, order *models.OrderRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error)
	ListByTerminal(ctx context.Context, terminalID string, limit int) ([]models.OrderRecord, error)
}

// SaveInput carries everything needed to persist one order.
type SaveInput struct {
	OrderNumber    string
	TerminalID     string
	TableID        *string
	Status         enums.OrderStatus
	PaymentMethod  enums.PaymentMethod
	EInvoiceStatus int
	AmountReceived *float64
	ChangeGiven    *float64
	Snapshot       cart.Snapshot
}

// Service persists orders built from checkout snapshots.
type Service interface {
	Save(ctx context.Context, input SaveInput) (*models.OrderRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error)
	List(ctx context.Context, terminalID string, limit int) ([]models.OrderRecord, error)
}

type service struct {
	repo orderStore
}

// NewService builds the order persistence service.
func NewService(repo orderStore) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{repo: repo}, nil
}

// NewOrderNumber generates a time-based order number. Uniqueness is
// best-effort by construction, not guaranteed.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("POS-%d", now.UnixNano())
}

// Save creates the order and its lines from the snapshot. Line tax carries
// the floored display amounts.
func (s *service) Save(ctx context.Context, input SaveInput) (*models.OrderRecord, error) {
	if input.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	if input.Snapshot.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cannot save an order without lines")
	}

	order := &models.OrderRecord{
		OrderNumber:    input.OrderNumber,
		TerminalID:     input.TerminalID,
		TableID:        input.TableID,
		Status:         input.Status,
		PaymentMethod:  input.PaymentMethod,
		EInvoiceStatus: input.EInvoiceStatus,
		AmountReceived: input.AmountReceived,
		ChangeGiven:    input.ChangeGiven,
		Subtotal:       input.Snapshot.Totals.Subtotal,
		Tax:            input.Snapshot.Totals.Tax,
		Total:          input.Snapshot.Totals.Total,
	}
	for _, line := range input.Snapshot.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID:         line.ProductID,
			Name:              line.Name,
			UnitPrice:         line.UnitPrice,
			Quantity:          line.Quantity,
			TaxRate:           line.TaxRate,
			AfterTaxUnitPrice: line.AfterTaxUnitPrice,
			LineSubtotal:      line.Subtotal(),
			LineTax:           line.Tax(),
		})
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, terminalID string, limit int) ([]models.OrderRecord, error) {
	orders, err := s.repo.ListByTerminal(ctx, terminalID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}
