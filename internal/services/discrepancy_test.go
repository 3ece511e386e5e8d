package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

func entriesWithAmounts(amounts ...float64) []models.MetadataEntry {
	entries := make([]models.MetadataEntry, len(amounts))
	for i, a := range amounts {
		entries[i] = models.MetadataEntry{
			AccountCode: "4010",
			Amount:      decimal.NewFromFloat(a),
		}
	}
	return entries
}

// Charges tolerate a 0.01 drift; anything beyond is a discrepancy
func TestDiscrepancyDetector_ChargeTolerance(t *testing.T) {
	d := NewDiscrepancyDetector()

	tests := []struct {
		name     string
		amounts  []float64
		expected float64
		wantFlag bool
	}{
		{
			name:     "Exact sum",
			amounts:  []float64{60.00, 40.00},
			expected: 100.00,
			wantFlag: false,
		},
		{
			name:     "Drift inside tolerance",
			amounts:  []float64{60.00, 40.01},
			expected: 100.00,
			wantFlag: false,
		},
		{
			name:     "Drift beyond tolerance",
			amounts:  []float64{60.00, 40.02},
			expected: 100.00,
			wantFlag: true,
		},
		{
			name:     "Metadata sum short of the amount",
			amounts:  []float64{45.00},
			expected: 50.00,
			wantFlag: true,
		},
		{
			name:     "No usable entries at all",
			amounts:  nil,
			expected: 50.00,
			wantFlag: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := d.Check("txn_1", models.KindCharge, entriesWithAmounts(tt.amounts...),
				decimal.NewFromFloat(tt.expected), "ops@example.com")
			if tt.wantFlag {
				require.NotNil(t, rec)
				assert.Equal(t, "txn_1", rec.TransactionID)
				assert.True(t, rec.Expected.Equal(decimal.NewFromFloat(tt.expected)))
			} else {
				assert.Nil(t, rec)
			}
		})
	}
}

// Refunds require exact equality; even a sub-tolerance drift flags. This is
// deliberately stricter than the charge path and must not be unified.
func TestDiscrepancyDetector_RefundExactEquality(t *testing.T) {
	d := NewDiscrepancyDetector()

	t.Run("Exact match passes", func(t *testing.T) {
		rec := d.Check("txn_2", models.KindRefund, entriesWithAmounts(50.00),
			decimal.NewFromFloat(50.00), "ops@example.com")
		assert.Nil(t, rec)
	})

	t.Run("One-cent drift flags where a charge would pass", func(t *testing.T) {
		entries := entriesWithAmounts(50.01)
		expected := decimal.NewFromFloat(50.00)

		assert.Nil(t, d.Check("txn_2", models.KindCharge, entries, expected, "ops@example.com"))

		rec := d.Check("txn_2", models.KindRefund, entries, expected, "ops@example.com")
		require.NotNil(t, rec)
		assert.Equal(t, models.KindRefund, rec.Kind)
	})
}

func TestSumEntries_DiscountContributesOnce(t *testing.T) {
	entries := []models.MetadataEntry{
		{AccountCode: "4010", Amount: decimal.NewFromFloat(90.00), IsDiscount: true, DiscountAmount: decimal.NewFromFloat(10.00)},
		{AccountCode: "4011", Amount: decimal.NewFromFloat(10.00)},
	}

	// The discount entry contributes its parsed amount once, not the
	// expanded two-line figures.
	assert.Equal(t, "100", SumEntries(entries).String())
}
