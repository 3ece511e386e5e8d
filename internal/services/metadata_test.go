package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// Test the account-code pattern ladder: parenthesised 4-digit codes always
// win over looser matches
func TestMetadataParser_AccountCodeExtraction(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantCode string
	}{
		{
			name:     "Code in parentheses",
			value:    "Consulting Fee (4010)",
			wantCode: "4010",
		},
		{
			name:     "Parentheses beat a bare token",
			value:    "Plan 9999 upgrade (4020)",
			wantCode: "4020",
		},
		{
			name:     "Bare 4-digit token",
			value:    "Consulting Fee 4010",
			wantCode: "4010",
		},
		{
			name:     "5-digit token via loosest pattern",
			value:    "Workshop 40100",
			wantCode: "40100",
		},
		{
			name:     "No digits yields no code",
			value:    "Nothing here",
			wantCode: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, extractAccountCode(tt.value))
		})
	}
}

func TestMetadataParser_SingleEntryUsesNetAmount(t *testing.T) {
	p := NewMetadataParser()

	entry, warning := p.Parse(
		models.MetadataPair{Key: "Consulting Fee", Value: "Consulting Fee (4010)"},
		decimal.NewFromFloat(50.00),
		false,
	)

	require.Nil(t, warning)
	require.NotNil(t, entry)
	assert.Equal(t, "4010", entry.AccountCode)
	assert.True(t, entry.Amount.Equal(decimal.NewFromFloat(50.00)))
	assert.False(t, entry.IsDiscount)
}

func TestMetadataParser_MultiEntryKeyTokens(t *testing.T) {
	p := NewMetadataParser()
	net := decimal.NewFromFloat(100.00)

	tests := []struct {
		name       string
		key        string
		value      string
		wantAmount string
		wantReject bool
	}{
		{
			name:       "Three-token key uses the price token",
			key:        "Widget 1 60",
			value:      "Widget (4010)",
			wantAmount: "60",
		},
		{
			name:       "Decimal price token",
			key:        "Gadget 2 40.50",
			value:      "Gadget (4011)",
			wantAmount: "40.5",
		},
		{
			name:       "Two-token key rejected",
			key:        "Widget 60",
			value:      "Widget (4010)",
			wantReject: true,
		},
		{
			name:       "Four-token key rejected",
			key:        "Widget A 1 60",
			value:      "Widget (4010)",
			wantReject: true,
		},
		{
			name:       "Non-numeric price token rejected",
			key:        "Widget 1 sixty",
			value:      "Widget (4010)",
			wantReject: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, warning := p.Parse(models.MetadataPair{Key: tt.key, Value: tt.value}, net, true)
			if tt.wantReject {
				assert.Nil(t, entry)
				require.NotNil(t, warning)
				assert.NotEmpty(t, warning.Reason)
				return
			}
			require.Nil(t, warning)
			require.NotNil(t, entry)
			assert.Equal(t, tt.wantAmount, entry.Amount.String())
		})
	}
}

func TestMetadataParser_NoAccountCodeIsWarning(t *testing.T) {
	p := NewMetadataParser()

	entry, warning := p.Parse(
		models.MetadataPair{Key: "Consulting Fee", Value: "no code in here"},
		decimal.NewFromFloat(50.00),
		false,
	)

	assert.Nil(t, entry)
	require.NotNil(t, warning)
	assert.Contains(t, warning.Reason, "no account code")
}

func TestMetadataParser_Discount(t *testing.T) {
	p := NewMetadataParser()
	net := decimal.NewFromFloat(90.00)

	t.Run("Parseable discount amount", func(t *testing.T) {
		entry, warning := p.Parse(
			models.MetadataPair{Key: "Plan", Value: "Plan (4020) Discount code SAVE 10.00"},
			net,
			false,
		)
		require.Nil(t, warning)
		require.NotNil(t, entry)
		assert.True(t, entry.IsDiscount)
		assert.Equal(t, "10", entry.DiscountAmount.String())
		assert.False(t, entry.DiscountParseFail)
	})

	t.Run("Discount marker without amount", func(t *testing.T) {
		entry, warning := p.Parse(
			models.MetadataPair{Key: "Plan", Value: "Plan (4020) Discount applied"},
			net,
			false,
		)
		// The entry still counts toward the discrepancy sum but produces
		// no invoice lines.
		require.NotNil(t, entry)
		assert.True(t, entry.DiscountParseFail)
		assert.False(t, entry.IsDiscount)
		require.NotNil(t, warning)
		assert.Contains(t, warning.Reason, "discount")
		assert.True(t, entry.Amount.Equal(net))
	})
}
