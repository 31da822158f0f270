package enums

// DisplayEventType names the events published to the customer-facing display.
type DisplayEventType string

const (
	DisplayEventCartUpdate         DisplayEventType = "cart_update"
	DisplayEventQRPayment          DisplayEventType = "qr_payment"
	DisplayEventQRPaymentCancelled DisplayEventType = "qr_payment_cancelled"
	DisplayEventRestoreCart        DisplayEventType = "restore_cart_display"
	DisplayEventPaymentSuccess     DisplayEventType = "payment_success"
	DisplayEventPopupClose         DisplayEventType = "popup_close"
)

// String implements fmt.Stringer.
func (d DisplayEventType) String() string {
	return string(d)
}
