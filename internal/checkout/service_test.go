package checkout

import (
	"context"
	"sync"
	"testing"
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
)

type stubCarts struct {
	snapshot  cart.Snapshot
	getErr    error
	converted int
}

func (s *stubCarts) Get(ctx context.Context, terminalID string) (cart.Snapshot, error) {
	if s.getErr != nil {
		return cart.Snapshot{}, s.getErr
	}
	return s.snapshot, nil
}

func (s *stubCarts) ConvertActive(ctx context.Context, terminalID string) error {
	s.converted++
	return nil
}

type stubOrders struct {
	mu    sync.Mutex
	saved []orders.SaveInput
	err   error
}

func (s *stubOrders) Save(ctx context.Context, input orders.SaveInput) (*models.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.saved = append(s.saved, input)
	return &models.OrderRecord{ID: uuid.New()}, nil
}

func (s *stubOrders) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *stubOrders) last() orders.SaveInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

type stubInvoices struct {
	published  []invoices.IssueInput
	saved      []*einvoice.PublishResult
	publishErr error
	saveErr    error
}

func (s *stubInvoices) Publish(ctx context.Context, input invoices.IssueInput) (*einvoice.PublishResult, error) {
	if s.publishErr != nil {
		return nil, s.publishErr
	}
	s.published = append(s.published, input)
	return &einvoice.PublishResult{InvoiceNumber: "INV-1", InvoiceDate: "2026-08-29"}, nil
}

func (s *stubInvoices) Save(ctx context.Context, input invoices.IssueInput, result *einvoice.PublishResult) (*models.InvoiceRecord, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.saved = append(s.saved, result)
	return &models.InvoiceRecord{ID: uuid.New()}, nil
}

type stubQR struct {
	requests []qrpay.QRRequest
	err      error
	uuid     string
}

func (s *stubQR) RequestQR(ctx context.Context, req qrpay.QRRequest) (*qrpay.QRResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	return &qrpay.QRResponse{QRPayload: "payload-data", TransactionUUID: s.uuid}, nil
}

func (s *stubQR) MerchantCode() string { return "MERCH01" }

type recordingSink struct {
	mu     sync.Mutex
	events []display.Event
}

func (s *recordingSink) Publish(ctx context.Context, event display.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []enums.DisplayEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enums.DisplayEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func testSnapshot() cart.Snapshot {
	after := 11000.0
	lines := []cart.Line{
		{
			LineID:            uuid.New(),
			ProductID:         uuid.New(),
			Name:              "Iced Coffee",
			UnitPrice:         10000,
			Quantity:          2,
			TaxRate:           10,
			AfterTaxUnitPrice: &after,
		},
	}
	return cart.Snapshot{
		CartID:     uuid.New(),
		TerminalID: "term-1",
		Lines:      lines,
		Totals:     cart.ComputeTotals(lines),
		TakenAt:    time.Now().UTC(),
	}
}

type fixture struct {
	mgr      *Manager
	carts    *stubCarts
	orders   *stubOrders
	invoices *stubInvoices
	qr       *stubQR
	sink     *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts:    &stubCarts{snapshot: testSnapshot()},
		orders:   &stubOrders{},
		invoices: &stubInvoices{},
		qr:       &stubQR{uuid: "txn-1"},
		sink:     &recordingSink{},
	}
	mgr, err := NewManager(f.carts, f.orders, f.invoices, f.qr, f.sink, nil, nil, nil, config.CheckoutConfig{
		QRWaitTimeout:     time.Minute,
		RoundingTolerance: 1,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	f.mgr = mgr
	return f
}

func (f *fixture) toSelection(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.mgr.Begin(ctx, "term-1", BeginInput{CustomerName: "Walk-in"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := f.mgr.ConfirmPreview(ctx, "term-1"); err != nil {
		t.Fatalf("ConfirmPreview: %v", err)
	}
}

func TestBeginBuildsDraftFromSnapshot(t *testing.T) {
	f := newFixture(t)
	view, err := f.mgr.Begin(context.Background(), "term-1", BeginInput{CustomerName: "Walk-in"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if view.State != enums.CheckoutStatePreviewingReceipt {
		t.Fatalf("state = %s", view.State)
	}
	draft := view.Draft
	if draft == nil {
		t.Fatal("expected a receipt draft")
	}
	if draft.Subtotal != 20000 || draft.Tax != 2000 || draft.Total != 22000 {
		t.Fatalf("totals = %.0f/%.0f/%.0f", draft.Subtotal, draft.Tax, draft.Total)
	}
	if draft.OrderNumber == "" {
		t.Fatal("expected an order number")
	}
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.carts.snapshot = cart.Snapshot{}

	view, err := f.mgr.Begin(context.Background(), "term-1", BeginInput{})
	if !pkgerrors.Is(err, pkgerrors.CodeEmptyCart) {
		t.Fatalf("err = %v", err)
	}
	if view.State != enums.CheckoutStateIdle {
		t.Fatalf("state = %s", view.State)
	}
	if view.Draft != nil {
		t.Fatal("no draft should exist after a rejected begin")
	}
}

func TestBeginStaleTotalUsesRecomputed(t *testing.T) {
	f := newFixture(t)
	stale := 21000.0
	view, err := f.mgr.Begin(context.Background(), "term-1", BeginInput{CachedTotal: &stale})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if view.Draft.Total != 22000 {
		t.Fatalf("total = %.0f, want the recomputed 22000", view.Draft.Total)
	}
}

func TestBeginRequiresIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.Begin(ctx, "term-1", BeginInput{}); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	if _, err := f.mgr.Begin(ctx, "term-1", BeginInput{}); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v", err)
	}
}

func TestSnapshotIsolatedFromLiveCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.Begin(ctx, "term-1", BeginInput{}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	// Mutating the live cart after Begin must not touch the draft.
	f.carts.snapshot.Lines[0].Quantity = 99
	f.carts.snapshot.Lines[0].UnitPrice = 1

	view := f.mgr.State("term-1")
	if view.Draft.Total != 22000 {
		t.Fatalf("total = %.0f after live cart mutation", view.Draft.Total)
	}
	if view.Draft.Lines[0].Quantity != 2 {
		t.Fatalf("quantity = %d after live cart mutation", view.Draft.Lines[0].Quantity)
	}
}

func TestCashHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)

	if _, err := f.mgr.SelectCash(ctx, "term-1"); err != nil {
		t.Fatalf("SelectCash: %v", err)
	}
	view, err := f.mgr.CompleteCash(ctx, "term-1", 25000)
	if err != nil {
		t.Fatalf("CompleteCash: %v", err)
	}
	if view.State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatalf("state = %s", view.State)
	}
	if view.ChangeDue == nil || *view.ChangeDue != 3000 {
		t.Fatalf("change = %v, want 3000", view.ChangeDue)
	}

	saved := f.orders.last()
	if saved.Status != enums.OrderStatusPaid || saved.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("saved order %s/%s", saved.Status, saved.PaymentMethod)
	}
	if saved.AmountReceived == nil || *saved.AmountReceived != 25000 {
		t.Fatalf("amount received = %v", saved.AmountReceived)
	}
}

func TestCompleteCashRejectsShortAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectCash(ctx, "term-1"); err != nil {
		t.Fatalf("SelectCash: %v", err)
	}

	if _, err := f.mgr.CompleteCash(ctx, "term-1", 20000); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v", err)
	}
	if f.orders.count() != 0 {
		t.Fatal("no order should be persisted on a short tender")
	}
	if f.mgr.State("term-1").State != enums.CheckoutStateAwaitingCash {
		t.Fatal("state must stay at the cash screen")
	}
}

func TestCashCompletesDespiteOrderSaveFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectCash(ctx, "term-1"); err != nil {
		t.Fatalf("SelectCash: %v", err)
	}
	f.orders.err = pkgerrors.New(pkgerrors.CodeDependency, "connection lost")

	view, err := f.mgr.CompleteCash(ctx, "term-1", 25000)
	if err != nil {
		t.Fatalf("CompleteCash: %v", err)
	}
	if view.State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatalf("state = %s, the tendered payment wins", view.State)
	}
}

func TestQRCompletionViaCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)

	view, err := f.mgr.SelectQR(ctx, "term-1")
	if err != nil {
		t.Fatalf("SelectQR: %v", err)
	}
	if view.State != enums.CheckoutStateAwaitingQR {
		t.Fatalf("state = %s", view.State)
	}
	if view.QRPayload != "payload-data" {
		t.Fatalf("payload = %q", view.QRPayload)
	}

	if err := f.mgr.NotifyPaymentSuccess(ctx, "txn-1"); err != nil {
		t.Fatalf("NotifyPaymentSuccess: %v", err)
	}
	if f.mgr.State("term-1").State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatal("callback must complete the checkout")
	}
	if saved := f.orders.last(); saved.PaymentMethod != enums.PaymentMethodQR {
		t.Fatalf("method = %s", saved.PaymentMethod)
	}
}

func TestQRDoubleCallbackPersistsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectQR(ctx, "term-1"); err != nil {
		t.Fatalf("SelectQR: %v", err)
	}

	if err := f.mgr.NotifyPaymentSuccess(ctx, "txn-1"); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := f.mgr.NotifyPaymentSuccess(ctx, "txn-1"); err != nil {
		t.Fatalf("second notify: %v", err)
	}
	if f.orders.count() != 1 {
		t.Fatalf("orders saved = %d, want 1", f.orders.count())
	}
}

func TestQRManualAndCallbackRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectQR(ctx, "term-1"); err != nil {
		t.Fatalf("SelectQR: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.mgr.CompleteQR(ctx, "term-1")
	}()
	go func() {
		defer wg.Done()
		_ = f.mgr.NotifyPaymentSuccess(ctx, "txn-1")
	}()
	wg.Wait()

	if f.orders.count() != 1 {
		t.Fatalf("orders saved = %d, want exactly 1", f.orders.count())
	}
	if f.mgr.State("term-1").State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatal("one of the two paths must have completed the checkout")
	}
}

func TestCancelQRDeregistersListener(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectQR(ctx, "term-1"); err != nil {
		t.Fatalf("SelectQR: %v", err)
	}

	view, err := f.mgr.CancelQR(ctx, "term-1")
	if err != nil {
		t.Fatalf("CancelQR: %v", err)
	}
	if view.State != enums.CheckoutStateSelectingPaymentMethod {
		t.Fatalf("state = %s", view.State)
	}
	if f.mgr.listeners.Active("txn-1") {
		t.Fatal("listener must be gone after cancel")
	}

	// A late callback for a cancelled transaction is a no-op.
	if err := f.mgr.NotifyPaymentSuccess(ctx, "txn-1"); err != nil {
		t.Fatalf("late notify: %v", err)
	}
	if f.orders.count() != 0 {
		t.Fatal("no order may be created after cancellation")
	}
}

func TestSelectQRFallsBackToPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	f.qr.err = pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway down")

	view, err := f.mgr.SelectQR(ctx, "term-1")
	if err != nil {
		t.Fatalf("SelectQR: %v", err)
	}
	if view.State != enums.CheckoutStateAwaitingQR {
		t.Fatalf("state = %s, outage must not block checkout", view.State)
	}
	if view.QRPayload == "" || view.QRPayload == "payload-data" {
		t.Fatalf("payload = %q, want a locally generated placeholder", view.QRPayload)
	}
}

func TestQRWaitTimesOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mgr, err := NewManager(f.carts, f.orders, f.invoices, f.qr, f.sink, nil, nil, nil, config.CheckoutConfig{
		QRWaitTimeout:     20 * time.Millisecond,
		RoundingTolerance: 1,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := mgr.Begin(ctx, "term-1", BeginInput{}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := mgr.ConfirmPreview(ctx, "term-1"); err != nil {
		t.Fatalf("ConfirmPreview: %v", err)
	}
	if _, err := mgr.SelectQR(ctx, "term-1"); err != nil {
		t.Fatalf("SelectQR: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.State("term-1").State == enums.CheckoutStateSelectingPaymentMethod {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := mgr.State("term-1").State; got != enums.CheckoutStateSelectingPaymentMethod {
		t.Fatalf("state = %s, want the session back at payment selection", got)
	}
	if mgr.listeners.Active("txn-1") {
		t.Fatal("listener must be gone after timeout")
	}
}

func TestIssueNowPersistsOrderAndInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectEInvoice(ctx, "term-1"); err != nil {
		t.Fatalf("SelectEInvoice: %v", err)
	}

	view, err := f.mgr.IssueNow(ctx, "term-1", InvoiceDetails{
		IssuerCode:   "issuer-1",
		TemplateCode: "1/001",
		CustomerName: "ACME Ltd",
	})
	if err != nil {
		t.Fatalf("IssueNow: %v", err)
	}
	if view.State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatalf("state = %s", view.State)
	}
	saved := f.orders.last()
	if saved.Status != enums.OrderStatusPaid || saved.EInvoiceStatus != 1 {
		t.Fatalf("order %s einvoice=%d", saved.Status, saved.EInvoiceStatus)
	}
	if len(f.invoices.saved) != 1 || f.invoices.saved[0] == nil {
		t.Fatal("expected a published invoice to be persisted")
	}
}

func TestIssueNowGatewayFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectEInvoice(ctx, "term-1"); err != nil {
		t.Fatalf("SelectEInvoice: %v", err)
	}
	f.invoices.publishErr = pkgerrors.New(pkgerrors.CodeGatewayRejected, "provider rejected")

	_, err := f.mgr.IssueNow(ctx, "term-1", InvoiceDetails{
		IssuerCode:   "issuer-1",
		TemplateCode: "1/001",
		CustomerName: "ACME Ltd",
	})
	if !pkgerrors.Is(err, pkgerrors.CodeGatewayRejected) {
		t.Fatalf("err = %v", err)
	}
	if f.mgr.State("term-1").State != enums.CheckoutStateIssuingEInvoice {
		t.Fatal("state must allow a retry after a gateway failure")
	}
	if f.orders.count() != 0 {
		t.Fatal("nothing may be persisted when issuance failed")
	}
}

func TestIssueNowToleratesInvoiceSaveFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectEInvoice(ctx, "term-1"); err != nil {
		t.Fatalf("SelectEInvoice: %v", err)
	}
	f.invoices.saveErr = pkgerrors.New(pkgerrors.CodeDependency, "write failed")

	view, err := f.mgr.IssueNow(ctx, "term-1", InvoiceDetails{
		IssuerCode:   "issuer-1",
		TemplateCode: "1/001",
		CustomerName: "ACME Ltd",
	})
	if err != nil {
		t.Fatalf("IssueNow: %v", err)
	}
	if view.State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatal("issued invoice wins even when its row does not land")
	}
	if f.orders.count() != 1 {
		t.Fatal("order must still be saved")
	}
}

func TestIssueLaterSavesDraftWithoutGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectEInvoice(ctx, "term-1"); err != nil {
		t.Fatalf("SelectEInvoice: %v", err)
	}

	view, err := f.mgr.IssueLater(ctx, "term-1", InvoiceDetails{
		IssuerCode:   "issuer-1",
		TemplateCode: "1/001",
		CustomerName: "ACME Ltd",
	})
	if err != nil {
		t.Fatalf("IssueLater: %v", err)
	}
	if view.State != enums.CheckoutStateShowingFinalReceipt {
		t.Fatalf("state = %s", view.State)
	}
	if len(f.invoices.published) != 0 {
		t.Fatal("issue-later must not call the provider")
	}
	saved := f.orders.last()
	if saved.Status != enums.OrderStatusPending || saved.EInvoiceStatus != 0 {
		t.Fatalf("order %s einvoice=%d, want pending draft", saved.Status, saved.EInvoiceStatus)
	}
	if len(f.invoices.saved) != 1 || f.invoices.saved[0] != nil {
		t.Fatal("expected a draft invoice row")
	}
}

func TestCloseReceiptClearsCartAndResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectCash(ctx, "term-1"); err != nil {
		t.Fatalf("SelectCash: %v", err)
	}
	if _, err := f.mgr.CompleteCash(ctx, "term-1", 22000); err != nil {
		t.Fatalf("CompleteCash: %v", err)
	}

	view, err := f.mgr.CloseReceipt(ctx, "term-1")
	if err != nil {
		t.Fatalf("CloseReceipt: %v", err)
	}
	if view.State != enums.CheckoutStateIdle {
		t.Fatalf("state = %s", view.State)
	}
	if f.carts.converted != 1 {
		t.Fatalf("cart conversions = %d, want 1", f.carts.converted)
	}
	if view.Draft != nil {
		t.Fatal("draft must be cleared")
	}
}

func TestCancelKeepsLiveCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)

	view, err := f.mgr.Cancel(ctx, "term-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if view.State != enums.CheckoutStateIdle {
		t.Fatalf("state = %s", view.State)
	}
	if f.carts.converted != 0 {
		t.Fatal("cancel must never clear the live cart")
	}

	found := false
	for _, typ := range f.sink.types() {
		if typ == enums.DisplayEventRestoreCart {
			found = true
		}
	}
	if !found {
		t.Fatal("customer display must be told to restore the cart")
	}
}

func TestCancelDuringQRCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.toSelection(t)
	if _, err := f.mgr.SelectQR(ctx, "term-1"); err != nil {
		t.Fatalf("SelectQR: %v", err)
	}
	if _, err := f.mgr.Cancel(ctx, "term-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.mgr.listeners.Active("txn-1") {
		t.Fatal("listener must be deregistered on full cancel")
	}
}

func TestTerminalsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.Begin(ctx, "term-1", BeginInput{}); err != nil {
		t.Fatalf("Begin term-1: %v", err)
	}
	if got := f.mgr.State("term-2").State; got != enums.CheckoutStateIdle {
		t.Fatalf("term-2 state = %s, sessions must not bleed across terminals", got)
	}
}
