package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// Account-code extraction tries three patterns of increasing looseness; the
// first match wins. A 4-digit code in parentheses always beats a bare token.
var accountCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\((\d{4})\)`),
	regexp.MustCompile(`\b(\d{4})\b`),
	regexp.MustCompile(`\b(\d{4,5})\b`),
}

// discountAmountPattern extracts the trailing numeric amount after a
// "Discount code" marker, e.g. "Discount code SAVE10 10.00" -> 10.00
var discountAmountPattern = regexp.MustCompile(`Discount code.*?(\d+(?:\.\d+)?)`)

// discountMarker is the literal substring that flags a discounted entry
const discountMarker = "Discount"

// MetadataParser turns one raw metadata key/value pair into a structured
// MetadataEntry. Values carry the account code; keys carry the per-item price
// when a charge has more than one entry.
type MetadataParser struct{}

// NewMetadataParser creates a new metadata parser instance
func NewMetadataParser() *MetadataParser {
	return &MetadataParser{}
}

// Parse extracts an account code, an amount, and an optional discount from one
// metadata pair. netAmount is the owning transaction's amount in currency
// units; multiEntry reports whether the charge carries more than one pair.
//
// A nil entry with a non-nil warning means the pair is unusable and must be
// excluded from both line-item generation and the discrepancy sum. A non-nil
// entry may still carry a warning (failed discount parse) — such entries count
// toward the discrepancy sum but emit no lines.
func (p *MetadataParser) Parse(pair models.MetadataPair, netAmount decimal.Decimal, multiEntry bool) (*models.MetadataEntry, *models.ParseWarning) {
	code := extractAccountCode(pair.Value)
	if code == "" {
		return nil, &models.ParseWarning{
			Key:    pair.Key,
			Value:  pair.Value,
			Reason: "no account code found in metadata value",
		}
	}

	entry := &models.MetadataEntry{
		Key:         pair.Key,
		Value:       pair.Value,
		AccountCode: code,
	}

	if multiEntry {
		// Multi-entry charges encode "<item> <qty> <price>" in the key.
		// Any other token count is rejected rather than silently assumed.
		tokens := strings.Fields(pair.Key)
		if len(tokens) != 3 {
			return nil, &models.ParseWarning{
				Key:    pair.Key,
				Value:  pair.Value,
				Reason: fmt.Sprintf("expected 3-token metadata key for multi-entry charge, got %d tokens", len(tokens)),
			}
		}
		amount, err := decimal.NewFromString(tokens[2])
		if err != nil {
			return nil, &models.ParseWarning{
				Key:    pair.Key,
				Value:  pair.Value,
				Reason: fmt.Sprintf("metadata key price token %q is not numeric", tokens[2]),
			}
		}
		entry.Amount = amount
	} else {
		entry.Amount = netAmount
	}

	if strings.Contains(pair.Value, discountMarker) {
		matches := discountAmountPattern.FindStringSubmatch(pair.Value)
		if matches == nil {
			// Entry stays in the discrepancy sum but generates no lines.
			entry.DiscountParseFail = true
			return entry, &models.ParseWarning{
				Key:    pair.Key,
				Value:  pair.Value,
				Reason: "no valid discount amount found in metadata value",
			}
		}
		amount, err := decimal.NewFromString(matches[1])
		if err != nil {
			entry.DiscountParseFail = true
			return entry, &models.ParseWarning{
				Key:    pair.Key,
				Value:  pair.Value,
				Reason: fmt.Sprintf("discount amount %q is not numeric", matches[1]),
			}
		}
		entry.IsDiscount = true
		entry.DiscountAmount = amount
	}

	return entry, nil
}

// extractAccountCode runs the pattern ladder against a metadata value and
// returns the first captured code, or ""
func extractAccountCode(value string) string {
	for _, pattern := range accountCodePatterns {
		if matches := pattern.FindStringSubmatch(value); matches != nil {
			return strings.TrimSpace(matches[1])
		}
	}
	return ""
}
