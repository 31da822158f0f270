package checkout

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/internal/display"
	"github.com/tqvinh-dev/salepoint-backend/internal/invoices"
	"github.com/tqvinh-dev/salepoint-backend/internal/orders"
	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/einvoice"
	"github.com/tqvinh-dev/salepoint-backend/pkg/gateway/qrpay"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
	"github.com/tqvinh-dev/salepoint-backend/pkg/metrics"
	pkgredis "github.com/tqvinh-dev/salepoint-backend/pkg/redis"
)

const qrDedupTTL = 7 * 24 * time.Hour

type cartService interface {
	Get(ctx context.Context, terminalID string) (cart.Snapshot, error)
	ConvertActive(ctx context.Context, terminalID string) error
}

type orderSaver interface {
	Save(ctx context.Context, input orders.SaveInput) (*models.OrderRecord, error)
}

type invoiceIssuer interface {
	Publish(ctx context.Context, input invoices.IssueInput) (*einvoice.PublishResult, error)
	Save(ctx context.Context, input invoices.IssueInput, result *einvoice.PublishResult) (*models.InvoiceRecord, error)
}

type qrRequester interface {
	RequestQR(ctx context.Context, req qrpay.QRRequest) (*qrpay.QRResponse, error)
	MerchantCode() string
}

// Manager owns one checkout session per terminal and drives it through the
// state machine: Idle, PreviewingReceipt, SelectingPaymentMethod, one of the
// payment states, ShowingFinalReceipt, back to Idle.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	carts     cartService
	orders    orderSaver
	invoices  invoiceIssuer
	qr        qrRequester
	sink      display.Publisher
	deduper   pkgredis.CompletionDeduper
	listeners *listenerRegistry
	metrics   *metrics.CheckoutMetrics
	logger    *logger.Logger

	qrWaitTimeout time.Duration
	tolerance     float64
	now           func() time.Time
}

// NewManager wires the orchestrator. The deduper and sink are optional.
func NewManager(
	carts cartService,
	orderSvc orderSaver,
	invoiceSvc invoiceIssuer,
	qr qrRequester,
	sink display.Publisher,
	deduper pkgredis.CompletionDeduper,
	mets *metrics.CheckoutMetrics,
	logg *logger.Logger,
	cfg config.CheckoutConfig,
) (*Manager, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if invoiceSvc == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	if qr == nil {
		return nil, fmt.Errorf("qr gateway required")
	}
	if sink == nil {
		sink = display.NoopPublisher{}
	}

	timeout := cfg.QRWaitTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	tolerance := cfg.RoundingTolerance
	if tolerance <= 0 {
		tolerance = 1
	}

	return &Manager{
		sessions:      map[string]*session{},
		carts:         carts,
		orders:        orderSvc,
		invoices:      invoiceSvc,
		qr:            qr,
		sink:          sink,
		deduper:       deduper,
		listeners:     newListenerRegistry(),
		metrics:       mets,
		logger:        logg,
		qrWaitTimeout: timeout,
		tolerance:     tolerance,
		now:           time.Now,
	}, nil
}

func (m *Manager) session(terminalID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[terminalID]
	if !ok {
		s = newSession(terminalID)
		m.sessions[terminalID] = s
	}
	return s
}

// BeginInput starts a checkout. CachedTotal is the total the terminal last
// rendered; a stale value loses to the fresh recomputation.
type BeginInput struct {
	CustomerName string
	TableID      *string
	CachedTotal  *float64
}

// Begin snapshots the live cart, validates it, and creates the receipt
// draft. An empty cart or non-positive total blocks entry entirely.
func (m *Manager) Begin(ctx context.Context, terminalID string, input BeginInput) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateIdle); err != nil {
		return s.view(), err
	}

	snap, err := m.carts.Get(ctx, terminalID)
	if err != nil {
		return s.view(), err
	}
	if snap.Empty() {
		m.metrics.IncFailure("begin")
		return s.view(), pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	if input.CachedTotal != nil && math.Abs(*input.CachedTotal-snap.Totals.Total) > m.tolerance {
		m.logWarn(ctx, terminalID, fmt.Sprintf(
			"cached total %.2f differs from recomputed %.2f, using recomputed",
			*input.CachedTotal, snap.Totals.Total))
	}
	if snap.Totals.Total <= 0 {
		m.metrics.IncFailure("begin")
		return s.view(), pkgerrors.New(pkgerrors.CodeInvalidTotal, "cart total must be positive")
	}

	now := m.now()
	s.snapshot = snap
	s.tableID = input.TableID
	s.draft = &ReceiptDraft{
		ID:           uuid.New(),
		OrderNumber:  orders.NewOrderNumber(now),
		CustomerName: input.CustomerName,
		Lines:        snap.Lines,
		Subtotal:     snap.Totals.Subtotal,
		Tax:          snap.Totals.Tax,
		Total:        snap.Totals.Total,
		Status:       "preview",
		CreatedAt:    now,
	}
	s.state = enums.CheckoutStatePreviewingReceipt
	return s.view(), nil
}

// ConfirmPreview moves from the receipt preview to payment selection.
func (m *Manager) ConfirmPreview(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStatePreviewingReceipt); err != nil {
		return s.view(), err
	}
	s.state = enums.CheckoutStateSelectingPaymentMethod
	return s.view(), nil
}

// Cancel abandons the checkout from any non-terminal state. The live cart
// and any persisted records are left untouched; a pending QR listener is
// always deregistered.
func (m *Manager) Cancel(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(
		enums.CheckoutStatePreviewingReceipt,
		enums.CheckoutStateSelectingPaymentMethod,
		enums.CheckoutStateAwaitingCash,
		enums.CheckoutStateAwaitingQR,
		enums.CheckoutStateIssuingEInvoice,
	); err != nil {
		return s.view(), err
	}

	m.releaseQRLocked(ctx, s, true)
	s.reset()
	m.publish(ctx, enums.DisplayEventRestoreCart, terminalID, nil)
	return s.view(), nil
}

// SelectCash moves to the cash-due screen.
func (m *Manager) SelectCash(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateSelectingPaymentMethod); err != nil {
		return s.view(), err
	}
	s.selection = &PaymentSelection{Method: enums.PaymentMethodCash}
	s.state = enums.CheckoutStateAwaitingCash
	return s.view(), nil
}

// CompleteCash takes the tendered amount, computes change, persists the paid
// order, and shows the final receipt. The tender is the source of truth; a
// bookkeeping failure after it is logged, not surfaced.
func (m *Manager) CompleteCash(ctx context.Context, terminalID string, amountReceived float64) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateAwaitingCash); err != nil {
		return s.view(), err
	}
	if amountReceived < s.draft.Total {
		return s.view(), pkgerrors.New(pkgerrors.CodeValidation, "amount received is below the total").
			WithDetails(map[string]any{"total": s.draft.Total})
	}

	change := amountReceived - s.draft.Total
	s.selection.AmountReceived = &amountReceived
	s.changeDue = &change

	order, err := m.orders.Save(ctx, orders.SaveInput{
		OrderNumber:    s.draft.OrderNumber,
		TerminalID:     terminalID,
		TableID:        s.tableID,
		Status:         enums.OrderStatusPaid,
		PaymentMethod:  enums.PaymentMethodCash,
		AmountReceived: &amountReceived,
		ChangeGiven:    &change,
		Snapshot:       s.snapshot,
	})
	if err != nil {
		m.metrics.IncFailure("save_order")
		m.logError(ctx, terminalID, "order persistence failed after cash tender", err)
	} else {
		s.orderID = &order.ID
	}

	s.state = enums.CheckoutStateShowingFinalReceipt
	m.metrics.IncCompletion("cash")
	m.publish(ctx, enums.DisplayEventPaymentSuccess, terminalID, map[string]any{
		"method": string(enums.PaymentMethodCash),
		"change": change,
	})
	return s.view(), nil
}

// SelectQR requests a QR payload from the gateway, registers the one-shot
// completion listener, and starts the bounded wait. A gateway outage falls
// back to a locally generated placeholder so checkout is never blocked.
func (m *Manager) SelectQR(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateSelectingPaymentMethod); err != nil {
		return s.view(), err
	}

	var payload, transactionUUID string
	resp, err := m.qr.RequestQR(ctx, qrpay.QRRequest{
		Amount:      s.draft.Total,
		OrderNumber: s.draft.OrderNumber,
		TerminalID:  terminalID,
	})
	if err != nil {
		m.metrics.IncFailure("request_qr")
		m.logError(ctx, terminalID, "qr gateway unavailable, using placeholder", err)
		payload = qrpay.PlaceholderPayload(m.qr.MerchantCode(), s.draft.OrderNumber, s.draft.Total)
		transactionUUID = uuid.NewString()
	} else {
		payload = resp.QRPayload
		transactionUUID = resp.TransactionUUID
	}

	if err := m.listeners.Register(transactionUUID, m.completionFor(terminalID, transactionUUID)); err != nil {
		return s.view(), pkgerrors.Wrap(pkgerrors.CodeInternal, err, "register payment listener")
	}

	s.transactionUUID = transactionUUID
	s.qrPayload = payload
	s.selection = &PaymentSelection{Method: enums.PaymentMethodQR, TransactionRef: transactionUUID}
	s.state = enums.CheckoutStateAwaitingQR
	s.qrTimer = time.AfterFunc(m.qrWaitTimeout, func() {
		m.expireQR(terminalID, transactionUUID)
	})

	m.publish(ctx, enums.DisplayEventQRPayment, terminalID, map[string]any{
		"qr_payload": payload,
		"amount":     s.draft.Total,
	})
	return s.view(), nil
}

// CancelQR backs out of the QR wait to payment selection. The listener is
// always deregistered, whether the user pressed back or closed the modal.
func (m *Manager) CancelQR(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateAwaitingQR); err != nil {
		return s.view(), err
	}

	m.releaseQRLocked(ctx, s, true)
	s.selection = nil
	s.state = enums.CheckoutStateSelectingPaymentMethod
	m.publish(ctx, enums.DisplayEventRestoreCart, terminalID, nil)
	return s.view(), nil
}

// CompleteQR is the manual completion path, racing the gateway callback for
// the same transaction. Whichever lands first wins; the other is a no-op.
func (m *Manager) CompleteQR(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	if err := s.require(enums.CheckoutStateAwaitingQR); err != nil {
		view := s.view()
		s.mu.Unlock()
		return view, err
	}
	transactionUUID := s.transactionUUID
	s.mu.Unlock()

	if err := m.deliver(ctx, transactionUUID); err != nil {
		return m.State(terminalID), err
	}
	return m.State(terminalID), nil
}

// NotifyPaymentSuccess handles the gateway's out-of-band success callback.
// Unknown or already-consumed transaction UUIDs are ignored.
func (m *Manager) NotifyPaymentSuccess(ctx context.Context, transactionUUID string) error {
	return m.deliver(ctx, transactionUUID)
}

// deliver funnels both completion producers into the one-shot consumer.
func (m *Manager) deliver(ctx context.Context, transactionUUID string) error {
	fn := m.listeners.Consume(transactionUUID)
	if fn == nil {
		return nil
	}

	if m.deduper != nil {
		first, err := m.deduper.MarkQRCompleted(ctx, transactionUUID, qrDedupTTL)
		if err != nil {
			m.logError(ctx, "", "qr completion dedup check failed", err)
		} else if !first {
			return nil
		}
	}

	return fn(ctx)
}

// completionFor builds the one-time QR completion transition.
func (m *Manager) completionFor(terminalID, transactionUUID string) completionFunc {
	return func(ctx context.Context) error {
		s := m.session(terminalID)
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.state != enums.CheckoutStateAwaitingQR || s.transactionUUID != transactionUUID {
			return nil
		}

		s.stopQRTimer()

		order, err := m.orders.Save(ctx, orders.SaveInput{
			OrderNumber:   s.draft.OrderNumber,
			TerminalID:    terminalID,
			TableID:       s.tableID,
			Status:        enums.OrderStatusPaid,
			PaymentMethod: enums.PaymentMethodQR,
			Snapshot:      s.snapshot,
		})
		if err != nil {
			m.metrics.IncFailure("save_order")
			m.logError(ctx, terminalID, "order persistence failed after qr payment", err)
		} else {
			s.orderID = &order.ID
		}

		s.state = enums.CheckoutStateShowingFinalReceipt
		m.metrics.IncCompletion("qr")
		m.publish(ctx, enums.DisplayEventPaymentSuccess, terminalID, map[string]any{
			"method": string(enums.PaymentMethodQR),
		})
		return nil
	}
}

// expireQR is the bounded-wait fallback: after the configured timeout the
// session auto-cancels back to payment selection.
func (m *Manager) expireQR(terminalID, transactionUUID string) {
	ctx := context.Background()
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != enums.CheckoutStateAwaitingQR || s.transactionUUID != transactionUUID {
		return
	}

	m.logWarn(ctx, terminalID, "qr payment wait timed out, cancelling")
	m.metrics.IncFailure("qr_timeout")
	m.releaseQRLocked(ctx, s, false)
	s.selection = nil
	s.state = enums.CheckoutStateSelectingPaymentMethod
	m.publish(ctx, enums.DisplayEventRestoreCart, terminalID, nil)
}

// releaseQRLocked deregisters the active listener and announces the
// cancellation. Callers hold the session lock.
func (m *Manager) releaseQRLocked(ctx context.Context, s *session, stopTimer bool) {
	if s.transactionUUID == "" {
		return
	}
	defer func() {
		s.transactionUUID = ""
		s.qrPayload = ""
	}()

	m.listeners.Deregister(s.transactionUUID)
	if stopTimer {
		s.stopQRTimer()
	} else {
		s.qrTimer = nil
	}
	m.publish(ctx, enums.DisplayEventQRPaymentCancelled, s.terminalID, map[string]any{
		"transaction_uuid": s.transactionUUID,
	})
}

// SelectEInvoice moves straight to invoice issuance.
func (m *Manager) SelectEInvoice(ctx context.Context, terminalID string) (View, error) {
	return m.selectIssuance(terminalID, &PaymentSelection{Method: enums.PaymentMethodEInvoice})
}

// SelectOther routes any non-cash, non-QR method through issuance.
func (m *Manager) SelectOther(ctx context.Context, terminalID, methodID string) (View, error) {
	return m.selectIssuance(terminalID, &PaymentSelection{Method: enums.PaymentMethodOther, MethodID: methodID})
}

func (m *Manager) selectIssuance(terminalID string, selection *PaymentSelection) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateSelectingPaymentMethod); err != nil {
		return s.view(), err
	}
	s.selection = selection
	s.state = enums.CheckoutStateIssuingEInvoice
	return s.view(), nil
}

// InvoiceDetails are the operator-entered fields for issuance.
type InvoiceDetails struct {
	IssuerCode      string
	TemplateCode    string
	CustomerName    string
	CustomerTaxCode *string
	CustomerAddress *string
	CustomerEmail   string
}

// IssueNow publishes the invoice and persists order and invoice. A gateway
// or validation failure leaves the state unchanged for retry; a bookkeeping
// failure after a confirmed issuance is logged and tolerated.
func (m *Manager) IssueNow(ctx context.Context, terminalID string, details InvoiceDetails) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateIssuingEInvoice); err != nil {
		return s.view(), err
	}

	input := m.issueInput(s, details)
	result, err := m.invoices.Publish(ctx, input)
	if err != nil {
		m.metrics.IncFailure("issue_invoice")
		return s.view(), err
	}

	m.finishIssuanceLocked(ctx, s, input, result)
	return s.view(), nil
}

// IssueLater persists a draft invoice and a pending order without touching
// the provider.
func (m *Manager) IssueLater(ctx context.Context, terminalID string, details InvoiceDetails) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateIssuingEInvoice); err != nil {
		return s.view(), err
	}

	input := m.issueInput(s, details)
	if err := invoices.Validate(input); err != nil {
		return s.view(), err
	}

	m.finishIssuanceLocked(ctx, s, input, nil)
	return s.view(), nil
}

func (m *Manager) issueInput(s *session, details InvoiceDetails) invoices.IssueInput {
	method := enums.PaymentMethodEInvoice
	if s.selection != nil {
		method = s.selection.Method
	}
	customerName := details.CustomerName
	if customerName == "" && s.draft != nil {
		customerName = s.draft.CustomerName
	}
	return invoices.IssueInput{
		TradeNumber:     s.draft.OrderNumber,
		IssuerCode:      details.IssuerCode,
		TemplateCode:    details.TemplateCode,
		CustomerName:    customerName,
		CustomerTaxCode: details.CustomerTaxCode,
		CustomerAddress: details.CustomerAddress,
		CustomerEmail:   details.CustomerEmail,
		PaymentMethod:   method,
		Snapshot:        s.snapshot,
	}
}

// finishIssuanceLocked saves the order, then the invoice. Result nil means
// issue-later: pending order, draft invoice. An invoice write failing after
// the order write is the accepted degraded state; the flow still completes.
func (m *Manager) finishIssuanceLocked(ctx context.Context, s *session, input invoices.IssueInput, result *einvoice.PublishResult) {
	orderStatus := enums.OrderStatusPending
	einvoiceStatus := 0
	if result != nil {
		orderStatus = enums.OrderStatusPaid
		einvoiceStatus = 1
	}

	order, err := m.orders.Save(ctx, orders.SaveInput{
		OrderNumber:    s.draft.OrderNumber,
		TerminalID:     s.terminalID,
		TableID:        s.tableID,
		Status:         orderStatus,
		PaymentMethod:  input.PaymentMethod,
		EInvoiceStatus: einvoiceStatus,
		Snapshot:       s.snapshot,
	})
	if err != nil {
		m.metrics.IncFailure("save_order")
		m.logError(ctx, s.terminalID, "order persistence failed during issuance", err)
	} else {
		s.orderID = &order.ID
	}

	invoice, err := m.invoices.Save(ctx, input, result)
	if err != nil {
		m.metrics.IncFailure("save_invoice")
		m.logError(ctx, s.terminalID, "invoice persistence failed, order stands alone", err)
	} else {
		s.invoiceID = &invoice.ID
	}

	s.state = enums.CheckoutStateShowingFinalReceipt
	m.metrics.IncCompletion(string(input.PaymentMethod))
	m.publish(ctx, enums.DisplayEventPaymentSuccess, s.terminalID, map[string]any{
		"method": string(input.PaymentMethod),
	})
}

// CloseReceipt ends the session. This is the only point that empties the
// live cart; everything before it worked off the immutable snapshot.
func (m *Manager) CloseReceipt(ctx context.Context, terminalID string) (View, error) {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(enums.CheckoutStateShowingFinalReceipt); err != nil {
		return s.view(), err
	}

	if err := m.carts.ConvertActive(ctx, terminalID); err != nil {
		m.logError(ctx, terminalID, "clearing cart after checkout failed", err)
	}

	s.reset()
	m.publish(ctx, enums.DisplayEventPopupClose, terminalID, nil)
	return s.view(), nil
}

// State returns the current session view for the terminal.
func (m *Manager) State(terminalID string) View {
	s := m.session(terminalID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (m *Manager) publish(ctx context.Context, eventType enums.DisplayEventType, terminalID string, payload map[string]any) {
	m.sink.Publish(ctx, display.NewEvent(eventType, terminalID, payload))
}

func (m *Manager) logError(ctx context.Context, terminalID, msg string, err error) {
	if m.logger == nil {
		return
	}
	if terminalID != "" {
		ctx = m.logger.WithTerminalID(ctx, terminalID)
	}
	m.logger.Error(ctx, msg, err)
}

func (m *Manager) logWarn(ctx context.Context, terminalID, msg string) {
	if m.logger == nil {
		return
	}
	if terminalID != "" {
		ctx = m.logger.WithTerminalID(ctx, terminalID)
	}
	m.logger.Warn(ctx, msg)
}
