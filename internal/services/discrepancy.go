package services

import (
	"github.com/shopspring/decimal"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// chargeTolerance is the maximum accepted drift between a charge's metadata
// sum and its authoritative amount, in currency units
var chargeTolerance = decimal.NewFromFloat(0.01)

// DiscrepancyDetector compares the sum of parsed metadata amounts against a
// transaction's authoritative amount. Charges tolerate a 0.01 rounding drift;
// refunds require exact equality.
type DiscrepancyDetector struct{}

// NewDiscrepancyDetector creates a new detector instance
func NewDiscrepancyDetector() *DiscrepancyDetector {
	return &DiscrepancyDetector{}
}

// Check returns a DiscrepancyRecord when the entries' sum diverges from the
// expected amount, or nil when the transaction reconciles. expected is the
// charge's net amount, or the refund's absolute amount before sign inversion.
func (d *DiscrepancyDetector) Check(txnID string, kind models.TransactionKind, entries []models.MetadataEntry, expected decimal.Decimal, email string) *models.DiscrepancyRecord {
	observed := SumEntries(entries)

	var mismatch bool
	if kind == models.KindRefund {
		mismatch = !observed.Equal(expected)
	} else {
		mismatch = observed.Sub(expected).Abs().GreaterThan(chargeTolerance)
	}

	if !mismatch {
		return nil
	}
	return &models.DiscrepancyRecord{
		TransactionID: txnID,
		Kind:          kind,
		Expected:      expected,
		Observed:      observed,
		Email:         email,
	}
}

// SumEntries totals the parsed amounts of all entries. Discount-marked
// entries contribute their parsed amount once; the two-line expansion
// (full amount + negated discount) nets out to the same figure.
func SumEntries(entries []models.MetadataEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.Amount)
	}
	return sum
}
