package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackingRef attaches a resolved tracking category/option pair to a line item
type TrackingRef struct {
	CategoryID string `json:"category_id"`
	OptionID   string `json:"option_id"`
}

// LineItem is one invoice line, ready for the ledger adapter. AccountCode is
// nil on discrepancy fallback lines; Tracking is empty on fee and fallback
// lines and holds up to two refs (type, destination) otherwise.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Currency    string          `json:"currency"`
	AccountCode *string         `json:"account_code"`
	TaxType     string          `json:"tax_type"`
	Tracking    []TrackingRef   `json:"tracking"`
}

// InvoiceDraft is the final output of one reconciliation run, handed to the
// external ledger client. Built once, never mutated after assembly.
type InvoiceDraft struct {
	ContactRef string     `json:"contact_ref"`
	IssueDate  time.Time  `json:"issue_date"`
	DueDate    time.Time  `json:"due_date"`
	Reference  string     `json:"reference"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	LineItems  []LineItem `json:"line_items"`
}

// InvoiceStatusDraft is the only status this engine emits; authorising or
// sending the invoice stays a human decision in the ledger UI.
const InvoiceStatusDraft = "DRAFT"

// DefaultTaxType is applied to every generated line
const DefaultTaxType = "NONE"
