package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tqvinh-dev/salepoint-backend/pkg/db/models"
)

func ptr(v float64) *float64 { return &v }

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  Totals
	}{
		{
			name: "worked cash example",
			lines: []Line{
				{UnitPrice: 10000, Quantity: 2, TaxRate: 10, AfterTaxUnitPrice: ptr(11000)},
			},
			want: Totals{Subtotal: 20000, Tax: 2000, Total: 22000},
		},
		{
			name: "line without after-tax price contributes zero tax",
			lines: []Line{
				{UnitPrice: 5000, Quantity: 3},
			},
			want: Totals{Subtotal: 15000, Tax: 0, Total: 15000},
		},
		{
			name: "fractional tax is floored per line",
			lines: []Line{
				{UnitPrice: 100, Quantity: 3, AfterTaxUnitPrice: ptr(100.5)},
				{UnitPrice: 100, Quantity: 3, AfterTaxUnitPrice: ptr(100.9)},
			},
			// 0.5*3=1.5 -> 1, 0.9*3=2.7 -> 2
			want: Totals{Subtotal: 600, Tax: 3, Total: 603},
		},
		{
			name: "after-tax below unit price clamps to zero",
			lines: []Line{
				{UnitPrice: 200, Quantity: 2, AfterTaxUnitPrice: ptr(150)},
			},
			want: Totals{Subtotal: 400, Tax: 0, Total: 400},
		},
		{
			name:  "empty cart",
			lines: nil,
			want:  Totals{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.lines)
			if got != tc.want {
				t.Fatalf("totals = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRoundedTaxDiffersFromFloored(t *testing.T) {
	line := Line{UnitPrice: 100, Quantity: 3, AfterTaxUnitPrice: ptr(100.9)}
	if got := line.Tax(); got != 2 {
		t.Fatalf("floored tax = %v, want 2", got)
	}
	if got := line.RoundedTax(); got != 3 {
		t.Fatalf("rounded tax = %v, want 3", got)
	}
}

func TestSnapshotOfDeepCopiesLines(t *testing.T) {
	after := 11000.0
	record := &models.CartRecord{
		ID:         uuid.New(),
		TerminalID: "T-1",
		Lines: []models.CartLine{
			{ID: uuid.New(), ProductID: uuid.New(), Name: "Espresso", UnitPrice: 10000, Quantity: 2, TaxRate: 10, AfterTaxUnitPrice: &after},
		},
	}

	snap := SnapshotOf(record)
	if snap.Totals.Total != 22000 {
		t.Fatalf("snapshot total = %v, want 22000", snap.Totals.Total)
	}

	// Mutating the record afterwards must not leak into the snapshot.
	record.Lines[0].Quantity = 99
	*record.Lines[0].AfterTaxUnitPrice = 0

	if snap.Lines[0].Quantity != 2 {
		t.Fatalf("snapshot quantity mutated: %d", snap.Lines[0].Quantity)
	}
	if *snap.Lines[0].AfterTaxUnitPrice != 11000 {
		t.Fatalf("snapshot after-tax price mutated: %v", *snap.Lines[0].AfterTaxUnitPrice)
	}
}
