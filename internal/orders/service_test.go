package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
)

type stubOrders struct {
	created []*models.OrderRecord
}

func (s *stubOrders) Create(_ context.Context, order *models.OrderRecord) error {
	order.ID = uuid.New()
	s.created = append(s.created, order)
	return nil
}

func (s *stubOrders) FindByID(_ context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	for _, o := range s.created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrders) ListByTerminal(_ context.Context, terminalID string, _ int) ([]models.OrderRecord, error) {
	var out []models.OrderRecord
	for _, o := range s.created {
		if o.TerminalID == terminalID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func snapshotFixture() cart.Snapshot {
	after := 11000.0
	lines := []cart.Line{
		{LineID: uuid.New(), ProductID: uuid.New(), Name: "Espresso", UnitPrice: 10000, Quantity: 2, TaxRate: 10, AfterTaxUnitPrice: &after},
	}
	return cart.Snapshot{
		CartID:     uuid.New(),
		TerminalID: "T-1",
		Lines:      lines,
		Totals:     cart.ComputeTotals(lines),
	}
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	number := NewOrderNumber(now)
	if !strings.HasPrefix(number, "POS-") {
		t.Fatalf("order number %q missing prefix", number)
	}
	if number != NewOrderNumber(now) {
		t.Fatal("same instant should produce the same number")
	}
	if number == NewOrderNumber(now.Add(time.Nanosecond)) {
		t.Fatal("different instants should produce different numbers")
	}
}

func TestSavePersistsSnapshotTotals(t *testing.T) {
	store := &stubOrders{}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	received := 25000.0
	change := 3000.0
	order, err := svc.Save(context.Background(), SaveInput{
		OrderNumber:    "POS-1",
		TerminalID:     "T-1",
		Status:         enums.OrderStatusPaid,
		PaymentMethod:  enums.PaymentMethodCash,
		AmountReceived: &received,
		ChangeGiven:    &change,
		Snapshot:       snapshotFixture(),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if order.Subtotal != 20000 || order.Tax != 2000 || order.Total != 22000 {
		t.Fatalf("unexpected totals %+v", order)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(order.Lines))
	}
	if order.Lines[0].LineTax != 2000 {
		t.Fatalf("line tax = %v, want floored 2000", order.Lines[0].LineTax)
	}
	if order.Status != enums.OrderStatusPaid || order.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("unexpected order state %+v", order)
	}
}

func TestSaveRejectsEmptySnapshot(t *testing.T) {
	svc, err := NewService(&stubOrders{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Save(context.Background(), SaveInput{
		OrderNumber: "POS-2",
		TerminalID:  "T-1",
		Snapshot:    cart.Snapshot{},
	})
	if !pkgerrors.Is(err, pkgerrors.CodeEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	svc, err := NewService(&stubOrders{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New())
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
