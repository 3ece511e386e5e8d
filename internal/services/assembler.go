package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// deferralMarker selects the discount account: values mentioning a revenue
// deferral post the discount to the deferral code, everything else to the
// standard discount code.
const deferralMarker = "deferral"

// LineItemAssembler turns parsed, classified, validated metadata entries into
// ledger-ready line items, handling discount splitting and refund sign
// inversion. It never partially emits: a discrepancy replaces every
// metadata-derived line for that transaction with a single fallback line.
type LineItemAssembler struct{}

// NewLineItemAssembler creates a new assembler instance
func NewLineItemAssembler() *LineItemAssembler {
	return &LineItemAssembler{}
}

// AssembleInput carries everything the assembler needs for one transaction
type AssembleInput struct {
	Kind           models.TransactionKind
	Currency       string
	Email          string
	Entries        []models.MetadataEntry
	Classification models.ClassificationResult
}

// Assemble produces the ordered line items for one charge or refund
// transaction with no detected discrepancy. Refunds mirror the charge path
// with every amount negated. Entries whose discount marker failed to parse
// are skipped entirely (they were already surfaced as warnings). Returns any
// advisory warnings for account codes missing from the run's chart snapshot.
func (a *LineItemAssembler) Assemble(in AssembleInput, rctx models.ReconciliationContext) ([]models.LineItem, []models.ParseWarning) {
	sign := decimal.NewFromInt(1)
	if in.Kind == models.KindRefund {
		sign = decimal.NewFromInt(-1)
	}

	tracking := trackingRefs(in.Classification)

	var items []models.LineItem
	var warnings []models.ParseWarning

	for _, entry := range in.Entries {
		if entry.DiscountParseFail {
			continue
		}

		if !rctx.Accounts.HasCode(entry.AccountCode) {
			warnings = append(warnings, models.ParseWarning{
				Key:    entry.Key,
				Value:  entry.Value,
				Reason: fmt.Sprintf("account code %s not present in chart of accounts", entry.AccountCode),
			})
		}

		if entry.IsDiscount {
			// Two lines: the full pre-discount amount, then the negated
			// discount posted to the deferral or standard discount account.
			full := entry.Amount.Add(entry.DiscountAmount)
			items = append(items, models.LineItem{
				Description: fmt.Sprintf("%s for %s", entry.Value, in.Email),
				Quantity:    1,
				UnitAmount:  full.Mul(sign),
				Currency:    in.Currency,
				AccountCode: strPtr(entry.AccountCode),
				TaxType:     models.DefaultTaxType,
				Tracking:    tracking,
			})

			discountCode := rctx.Codes.DiscountStandard
			if strings.Contains(entry.Value, deferralMarker) {
				discountCode = rctx.Codes.DiscountDeferral
			}
			items = append(items, models.LineItem{
				Description: fmt.Sprintf("Discount for %s for %s", entry.Key, in.Email),
				Quantity:    1,
				UnitAmount:  entry.DiscountAmount.Neg().Mul(sign),
				Currency:    in.Currency,
				AccountCode: strPtr(discountCode),
				TaxType:     models.DefaultTaxType,
				Tracking:    tracking,
			})
			continue
		}

		items = append(items, models.LineItem{
			Description: fmt.Sprintf("%s for %s", entry.Value, in.Email),
			Quantity:    1,
			UnitAmount:  entry.Amount.Mul(sign),
			Currency:    in.Currency,
			AccountCode: strPtr(entry.AccountCode),
			TaxType:     models.DefaultTaxType,
			Tracking:    tracking,
		})
	}

	return items, warnings
}

// FallbackItem builds the single replacement line for a transaction whose
// metadata sum diverged from its authoritative amount. Account and
// classification fields stay null so the draft is an obvious review target.
func (a *LineItemAssembler) FallbackItem(rec models.DiscrepancyRecord, netAmount decimal.Decimal, currency string) models.LineItem {
	prefix := "Discrepancy"
	amount := netAmount
	if rec.Kind == models.KindRefund {
		prefix = "Refund Discrepancy"
		amount = netAmount.Abs().Neg()
	}

	return models.LineItem{
		Description: fmt.Sprintf("%s in metadata for transaction ID: %s. Email: %s", prefix, rec.TransactionID, rec.Email),
		Quantity:    1,
		UnitAmount:  amount,
		Currency:    currency,
		TaxType:     models.DefaultTaxType,
	}
}

// FeeItem builds the single flat processor-fee line appended once per
// invoice. total is the aggregated fee figure (normally negative).
func (a *LineItemAssembler) FeeItem(total decimal.Decimal, currency string, rctx models.ReconciliationContext) models.LineItem {
	return models.LineItem{
		Description: "Stripe Fee",
		Quantity:    1,
		UnitAmount:  total,
		Currency:    currency,
		AccountCode: strPtr(rctx.Codes.Fee),
		TaxType:     models.DefaultTaxType,
	}
}

// trackingRefs collects refs only for branches whose ids resolved; an
// unclassified branch is omitted rather than sent as nulls
func trackingRefs(result models.ClassificationResult) []models.TrackingRef {
	var refs []models.TrackingRef
	if result.Type != nil {
		refs = append(refs, models.TrackingRef{CategoryID: result.Type.CategoryID, OptionID: result.Type.OptionID})
	}
	if result.Destination != nil {
		refs = append(refs, models.TrackingRef{CategoryID: result.Destination.CategoryID, OptionID: result.Destination.OptionID})
	}
	return refs
}

func strPtr(s string) *string {
	return &s
}
