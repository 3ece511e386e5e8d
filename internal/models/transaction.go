package models

import (
	"github.com/shopspring/decimal"
)

// TransactionKind classifies a balance transaction within a payout
type TransactionKind string

const (
	KindCharge TransactionKind = "charge"
	KindRefund TransactionKind = "refund"
	KindFee    TransactionKind = "fee"
)

var minorUnitScale = decimal.NewFromInt(100)

// PayoutEvent is the trigger for one reconciliation run
type PayoutEvent struct {
	ID             string `json:"id"`
	SettlementDate int64  `json:"arrival_date"` // Unix timestamp from the processor
}

// Transaction is one ledger-movement event inside a payout, already
// deserialized from the processor's balance transaction representation.
// Amounts are minor-unit integers (cents); FeeMinor is the processor fee
// withheld from this transaction.
type Transaction struct {
	ID          string
	Kind        TransactionKind
	AmountMinor int64
	FeeMinor    int64
	Currency    string
	SourceRef   string // charge id or refund id, depending on Kind
	Description string
}

// NetAmount returns the transaction amount in currency units
func (t Transaction) NetAmount() decimal.Decimal {
	return decimal.NewFromInt(t.AmountMinor).Div(minorUnitScale)
}

// FeeAmount returns the processor fee in currency units
func (t Transaction) FeeAmount() decimal.Decimal {
	return decimal.NewFromInt(t.FeeMinor).Div(minorUnitScale)
}

// TransactionPage is one page of a payout's balance transaction listing.
// The processor cursors on the last record's id, so callers must consume a
// page fully before requesting the next one.
type TransactionPage struct {
	Transactions []Transaction
	HasMore      bool
}

// MetadataPair is one raw key/value annotation on a charge. Order matters:
// the processor returns metadata in insertion order and parsing is
// order-sensitive, so a slice is used rather than a map.
type MetadataPair struct {
	Key   string
	Value string
}

// ChargeDetail carries the charge-level fields the engine needs: the paying
// customer's email, the human-authored description, and the ordered metadata.
type ChargeDetail struct {
	CustomerEmail string
	Description   string
	Metadata      []MetadataPair
}

// RefundDetail links a refund back to its originating charge
type RefundDetail struct {
	ChargeID    string
	AmountMinor int64
}

// Amount returns the refunded amount in currency units (positive)
func (r RefundDetail) Amount() decimal.Decimal {
	return decimal.NewFromInt(r.AmountMinor).Div(minorUnitScale)
}

// MetadataEntry is one parsed metadata line. Entries without an extractable
// account code never reach this type; they surface as ParseWarnings instead.
type MetadataEntry struct {
	Key         string
	Value       string
	AccountCode string
	Amount      decimal.Decimal

	// Discount expansion: a value carrying the "Discount" marker either
	// parsed cleanly (IsDiscount + DiscountAmount) or failed to parse, in
	// which case the entry still counts toward the discrepancy sum but
	// produces no invoice lines.
	IsDiscount        bool
	DiscountAmount    decimal.Decimal
	DiscountParseFail bool
}

// ParseWarning is a non-fatal parsing defect surfaced to the operator log.
// The affected entry is dropped from line-item generation; the run continues.
type ParseWarning struct {
	TransactionID string `json:"transaction_id"`
	Key           string `json:"key"`
	Value         string `json:"value"`
	Reason        string `json:"reason"`
}

// DiscrepancyRecord flags that a transaction's metadata amounts do not sum to
// its authoritative amount. It replaces every line item that would have been
// derived from that transaction's metadata.
type DiscrepancyRecord struct {
	TransactionID string          `json:"transaction_id"`
	Kind          TransactionKind `json:"kind"`
	Expected      decimal.Decimal `json:"expected"`
	Observed      decimal.Decimal `json:"observed"`
	Email         string          `json:"email"`
}
