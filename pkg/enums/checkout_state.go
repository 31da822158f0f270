package enums

// CheckoutState enumerates the states of a checkout session.
type CheckoutState string

const (
	CheckoutStateIdle                   CheckoutState = "idle"
	CheckoutStatePreviewingReceipt      CheckoutState = "previewing_receipt"
	CheckoutStateSelectingPaymentMethod CheckoutState = "selecting_payment_method"
	CheckoutStateAwaitingCash           CheckoutState = "awaiting_cash"
	CheckoutStateAwaitingQR             CheckoutState = "awaiting_qr"
	CheckoutStateIssuingEInvoice        CheckoutState = "issuing_einvoice"
	CheckoutStateShowingFinalReceipt    CheckoutState = "showing_final_receipt"
)

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsTerminalView reports whether the session sits on the final receipt.
func (s CheckoutState) IsTerminalView() bool {
	return s == CheckoutStateShowingFinalReceipt
}

// AcceptsPaymentSelection reports whether a payment method may be chosen now.
func (s CheckoutState) AcceptsPaymentSelection() bool {
	return s == CheckoutStateSelectingPaymentMethod
}
