package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/internal/cart"
	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
)

// ReceiptDraft is the working receipt created when checkout begins. One
// draft per session; it is never mutated while a payment is in flight.
type ReceiptDraft struct {
	ID           uuid.UUID   `json:"id"`
	OrderNumber  string      `json:"order_number"`
	CustomerName string      `json:"customer_name"`
	Lines        []cart.Line `json:"lines"`
	Subtotal     float64     `json:"subtotal"`
	Tax          float64     `json:"tax"`
	Total        float64     `json:"total"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PaymentSelection records the chosen payment method and its parameters.
type PaymentSelection struct {
	Method         enums.PaymentMethod `json:"method"`
	AmountReceived *float64            `json:"amount_received,omitempty"`
	TransactionRef string              `json:"transaction_ref,omitempty"`
	MethodID       string              `json:"method_id,omitempty"`
}

// session is the in-memory checkout state for one terminal. mu serializes
// every transition; the checkout flow is single-threaded per terminal.
type session struct {
	mu sync.Mutex

	terminalID string
	state      enums.CheckoutState

	snapshot  cart.Snapshot
	draft     *ReceiptDraft
	selection *PaymentSelection
	tableID   *string

	transactionUUID string
	qrPayload       string
	qrTimer         *time.Timer

	orderID   *uuid.UUID
	invoiceID *uuid.UUID
	changeDue *float64
}

func newSession(terminalID string) *session {
	return &session{
		terminalID: terminalID,
		state:      enums.CheckoutStateIdle,
	}
}

// reset returns the session to Idle and drops every per-checkout artifact.
// Persisted records are left untouched.
func (s *session) reset() {
	s.stopQRTimer()
	s.state = enums.CheckoutStateIdle
	s.snapshot = cart.Snapshot{}
	s.draft = nil
	s.selection = nil
	s.tableID = nil
	s.transactionUUID = ""
	s.qrPayload = ""
	s.orderID = nil
	s.invoiceID = nil
	s.changeDue = nil
}

func (s *session) stopQRTimer() {
	if s.qrTimer != nil {
		s.qrTimer.Stop()
		s.qrTimer = nil
	}
}

// require guards a transition on the current state.
func (s *session) require(allowed ...enums.CheckoutState) error {
	for _, state := range allowed {
		if s.state == state {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "action not allowed in state "+string(s.state)).
		WithDetails(map[string]any{"state": string(s.state)})
}

// View is the externally visible session state rendered by the terminal UI.
type View struct {
	TerminalID      string              `json:"terminal_id"`
	State           enums.CheckoutState `json:"state"`
	Draft           *ReceiptDraft       `json:"draft,omitempty"`
	Selection       *PaymentSelection   `json:"selection,omitempty"`
	QRPayload       string              `json:"qr_payload,omitempty"`
	TransactionUUID string              `json:"transaction_uuid,omitempty"`
	ChangeDue       *float64            `json:"change_due,omitempty"`
	OrderID         *uuid.UUID          `json:"order_id,omitempty"`
	InvoiceID       *uuid.UUID          `json:"invoice_id,omitempty"`
}

func (s *session) view() View {
	return View{
		TerminalID:      s.terminalID,
		State:           s.state,
		Draft:           s.draft,
		Selection:       s.selection,
		QRPayload:       s.qrPayload,
		TransactionUUID: s.transactionUUID,
		ChangeDue:       s.changeDue,
		OrderID:         s.orderID,
		InvoiceID:       s.invoiceID,
	}
}
