package cart

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
)

// Line is one snapshot line used for totals and checkout.
type Line struct {
	LineID            uuid.UUID
	ProductID         uuid.UUID
	Name              string
	UnitPrice         float64
	Quantity          int
	TaxRate           int
	AfterTaxUnitPrice *float64
}

// Subtotal is the pre-tax amount for the line.
func (l Line) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Tax is the floored per-line tax used for the displayed running total.
// Lines without an after-tax price contribute zero.
func (l Line) Tax() float64 {
	return math.Floor(l.taxBase())
}

// RoundedTax is the rounded per-line tax submitted on regulator-facing
// invoice payloads. Kept distinct from Tax on purpose: the submitted total
// may differ from the displayed total by a few currency units, and both
// must stay independently reproducible.
func (l Line) RoundedTax() float64 {
	return math.Round(l.taxBase())
}

func (l Line) taxBase() float64 {
	if l.AfterTaxUnitPrice == nil {
		return 0
	}
	diff := *l.AfterTaxUnitPrice - l.UnitPrice
	if diff < 0 {
		diff = 0
	}
	return diff * float64(l.Quantity)
}

// Totals is the cart-level money summary.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ComputeTotals sums per-line contributions. Tax is accumulated from the
// floored per-line amounts, then the grand total is rounded once.
func ComputeTotals(lines []Line) Totals {
	var t Totals
	for _, line := range lines {
		t.Subtotal += line.Subtotal()
		t.Tax += line.Tax()
	}
	t.Total = math.Round(t.Subtotal + t.Tax)
	return t
}

// Snapshot is a frozen copy of a cart taken at checkout start. Later edits
// to the live cart never reach an in-flight checkout session.
type Snapshot struct {
	CartID     uuid.UUID `json:"cart_id"`
	TerminalID string    `json:"terminal_id"`
	Lines      []Line    `json:"lines"`
	Totals     Totals    `json:"totals"`
	TakenAt    time.Time `json:"taken_at"`
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// SnapshotOf deep-copies the record's lines and computes fresh totals.
func SnapshotOf(record *models.CartRecord) Snapshot {
	snap := Snapshot{TakenAt: time.Now().UTC()}
	if record == nil {
		return snap
	}
	snap.CartID = record.ID
	snap.TerminalID = record.TerminalID
	snap.Lines = make([]Line, 0, len(record.Lines))
	for _, stored := range record.Lines {
		line := Line{
			LineID:    stored.ID,
			ProductID: stored.ProductID,
			Name:      stored.Name,
			UnitPrice: stored.UnitPrice,
			Quantity:  stored.Quantity,
			TaxRate:   stored.TaxRate,
		}
		if stored.AfterTaxUnitPrice != nil {
			v := *stored.AfterTaxUnitPrice
			line.AfterTaxUnitPrice = &v
		}
		snap.Lines = append(snap.Lines, line)
	}
	snap.Totals = ComputeTotals(snap.Lines)
	return snap
}
