package invoices

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/einvoice"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
)

type invoiceStore interface {
	Create(ctx context.Context, invoice *models.InvoiceRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error)
	List(ctx context.Context, limit int) ([]models.InvoiceRecord, error)
	ActiveCredential(ctx context.Context, issuerCode string) (*models.GatewayCredential, error)
}

type invoicePublisher interface {
	Publish(ctx context.Context, req einvoice.PublishRequest) (*einvoice.PublishResult, error)
}

// IssueInput carries everything needed to issue or draft one invoice.
type IssueInput struct {
	TradeNumber     string
	IssuerCode      string
	TemplateCode    string
	CustomerName    string
	CustomerTaxCode *string
	CustomerAddress *string
	CustomerEmail   string
	PaymentMethod   enums.PaymentMethod
	Snapshot        cart.Snapshot
}

// Service issues e-invoices and persists the results. Publish and Save are
// split so callers can interleave other writes between gateway success and
// invoice bookkeeping; IssueNow and SaveDraft are the combined conveniences.
type Service interface {
	Publish(ctx context.Context, input IssueInput) (*einvoice.PublishResult, error)
	Save(ctx context.Context, input IssueInput, result *einvoice.PublishResult) (*models.InvoiceRecord, error)
	IssueNow(ctx context.Context, input IssueInput) (*models.InvoiceRecord, error)
	SaveDraft(ctx context.Context, input IssueInput) (*models.InvoiceRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error)
	List(ctx context.Context, limit int) ([]models.InvoiceRecord, error)
}

type service struct {
	repo      invoiceStore
	publisher invoicePublisher
	logger    *logger.Logger
}

// NewService builds the invoice issuer service.
func NewService(repo invoiceStore, publisher invoicePublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("invoice publisher required")
	}
	return &service{repo: repo, publisher: publisher, logger: logg}, nil
}

// Publish validates the input and submits the invoice through the provider.
// Nothing is persisted; a gateway failure leaves the caller free to retry.
func (s *service) Publish(ctx context.Context, input IssueInput) (*einvoice.PublishResult, error) {
	if err := validateIssueInput(input); err != nil {
		return nil, err
	}

	credential, err := s.repo.ActiveCredential(ctx, input.IssuerCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConnectionInfo, "no active credentials for issuer "+input.IssuerCode)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load issuer credentials")
	}

	subtotal, tax, total, lines := regulatorTotals(input.Snapshot)

	return s.publisher.Publish(ctx, einvoice.PublishRequest{
		Connection: einvoice.Connection{
			IssuerCode:   credential.IssuerCode,
			AccountCode:  credential.AccountCode,
			Username:     credential.Username,
			Password:     credential.Password,
			TemplateCode: credential.TemplateCode,
			SerialSymbol: credential.SerialSymbol,
		},
		TradeNumber:   input.TradeNumber,
		BuyerName:     input.CustomerName,
		BuyerTaxCode:  stringValue(input.CustomerTaxCode),
		BuyerAddress:  stringValue(input.CustomerAddress),
		BuyerEmail:    input.CustomerEmail,
		PaymentMethod: string(input.PaymentMethod),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		Lines:         lines,
	})
}

// Save persists the invoice record. With a publish result the record is
// stored as published; without one it is a draft awaiting later issuance.
func (s *service) Save(ctx context.Context, input IssueInput, result *einvoice.PublishResult) (*models.InvoiceRecord, error) {
	if err := validateIssueInput(input); err != nil {
		return nil, err
	}

	subtotal, tax, total, _ := regulatorTotals(input.Snapshot)

	var record *models.InvoiceRecord
	if result != nil {
		record = buildRecord(input, enums.InvoiceStatusPublished, 1, subtotal, tax, total)
		record.InvoiceNumber = &result.InvoiceNumber
		record.InvoiceDate = &result.InvoiceDate
	} else {
		record = buildRecord(input, enums.InvoiceStatusDraft, 0, subtotal, tax, total)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save invoice")
	}
	return record, nil
}

// IssueNow publishes through the provider and persists the published invoice.
func (s *service) IssueNow(ctx context.Context, input IssueInput) (*models.InvoiceRecord, error) {
	result, err := s.Publish(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, input, result)
}

// SaveDraft persists the invoice without any provider call. Later issuance
// happens out of band.
func (s *service) SaveDraft(ctx context.Context, input IssueInput) (*models.InvoiceRecord, error) {
	return s.Save(ctx, input, nil)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, limit int) ([]models.InvoiceRecord, error) {
	invoices, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return invoices, nil
}

// regulatorTotals computes the submitted payload amounts: per-line tax is
// rounded, not floored, so the result may differ from the cart-displayed
// totals by a few currency units. Both stay independently reproducible.
func regulatorTotals(snap cart.Snapshot) (subtotal, tax, total float64, lines []einvoice.Line) {
	for _, line := range snap.Lines {
		lineTax := line.RoundedTax()
		subtotal += line.Subtotal()
		tax += lineTax
		lines = append(lines, einvoice.Line{
			ProductName: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			LineTax:     lineTax,
			LineTotal:   line.Subtotal() + lineTax,
		})
	}
	total = math.Round(subtotal + tax)
	return subtotal, tax, total, lines
}

func buildRecord(input IssueInput, status enums.InvoiceStatus, einvoiceStatus int, subtotal, tax, total float64) *models.InvoiceRecord {
	record := &models.InvoiceRecord{
		TradeNumber:     input.TradeNumber,
		Status:          status,
		EInvoiceStatus:  einvoiceStatus,
		IssuerCode:      input.IssuerCode,
		TemplateCode:    input.TemplateCode,
		CustomerName:    input.CustomerName,
		CustomerTaxCode: input.CustomerTaxCode,
		CustomerAddress: input.CustomerAddress,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
	}
	for _, line := range input.Snapshot.Lines {
		record.Lines = append(record.Lines, models.InvoiceLine{
			ProductID:    line.ProductID,
			Name:         line.Name,
			UnitPrice:    line.UnitPrice,
			Quantity:     line.Quantity,
			TaxRate:      line.TaxRate,
			LineSubtotal: line.Subtotal(),
			LineTax:      line.RoundedTax(),
		})
	}
	return record
}

// Validate runs the pre-network invoice checks without touching credentials
// or the provider.
func Validate(input IssueInput) error {
	return validateIssueInput(input)
}

// validateIssueInput enforces the pre-network checks: issuer, template, and
// customer name non-empty, cart non-empty, every line positively priced.
func validateIssueInput(input IssueInput) error {
	details := map[string]string{}
	if strings.TrimSpace(input.TradeNumber) == "" {
		details["trade_number"] = "is required"
	}
	if strings.TrimSpace(input.IssuerCode) == "" {
		details["issuer_code"] = "is required"
	}
	if strings.TrimSpace(input.TemplateCode) == "" {
		details["template_code"] = "is required"
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		details["customer_name"] = "is required"
	}
	if input.Snapshot.Empty() {
		details["lines"] = "cart is empty"
	}
	for _, line := range input.Snapshot.Lines {
		if line.UnitPrice <= 0 || line.Quantity <= 0 {
			details["lines"] = "every line needs a positive price and quantity"
			break
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice validation failed").WithDetails(details)
	}
	return nil
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
