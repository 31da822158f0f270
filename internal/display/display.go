package display

import (
	"time"

	"github.com/tqvinh-dev/salepoint-backend/pkg/enums"
)

// Event is one message for the customer-facing display. Payload shape is
// event-specific; the display renders what it recognizes and ignores the rest.
type Event struct {
	Type       enums.DisplayEventType `json:"type"`
	TerminalID string                 `json:"terminal_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]any         `json:"payload,omitempty"`
}

// NewEvent stamps an event for the given terminal.
func NewEvent(eventType enums.DisplayEventType, terminalID string, payload map[string]any) Event {
	return Event{
		Type:       eventType,
		TerminalID: terminalID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
