package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

func testMapping() models.CategoryMapping {
	return models.CategoryMapping{
		Categories: []models.TrackingCategory{
			{
				ID:   "cat-type",
				Name: "Type",
				Options: []models.TrackingOption{
					{ID: "type-consulting", Name: "Consulting"},
					{ID: "type-training", Name: "Training"},
				},
			},
			{
				ID:   "cat-dest",
				Name: "Destination",
				Options: []models.TrackingOption{
					{ID: "dest-london", Name: "London"},
					{ID: "dest-leeds", Name: "Leeds"},
				},
			},
		},
	}
}

func TestSplitDescription(t *testing.T) {
	tests := []struct {
		name            string
		description     string
		wantDestination string
		wantType        string
	}{
		{
			name:            "Destination window between prefix and trailing tokens",
			description:     "Invoice for London office q3 consulting",
			wantDestination: "london",
			wantType:        "consulting",
		},
		{
			name:            "Multi-word destination",
			description:     "Invoice for London north office q3 extra consulting",
			wantDestination: "london north office",
			wantType:        "consulting",
		},
		{
			name:            "Too short for a destination window",
			description:     "quick training",
			wantDestination: "",
			wantType:        "training",
		},
		{
			name:            "Empty description",
			description:     "",
			wantDestination: "",
			wantType:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, typ := splitDescription(tt.description)
			assert.Equal(t, tt.wantDestination, dest)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

func TestTransactionClassifier_Classify(t *testing.T) {
	c := NewTransactionClassifier(NewCategoryMatcher())

	result := c.Classify("Invoice for London office q3 consulting", testMapping())

	require.NotNil(t, result.Type)
	assert.Equal(t, "cat-type", result.Type.CategoryID)
	assert.Equal(t, "type-consulting", result.Type.OptionID)

	require.NotNil(t, result.Destination)
	assert.Equal(t, "cat-dest", result.Destination.CategoryID)
	assert.Equal(t, "dest-london", result.Destination.OptionID)
}

func TestTransactionClassifier_EmptyMapping(t *testing.T) {
	c := NewTransactionClassifier(NewCategoryMatcher())

	result := c.Classify("Invoice for London office q3 consulting", models.CategoryMapping{})

	assert.Nil(t, result.Type)
	assert.Nil(t, result.Destination)
}

func TestTransactionClassifier_BranchWithoutOptions(t *testing.T) {
	c := NewTransactionClassifier(NewCategoryMatcher())
	mapping := models.CategoryMapping{
		Categories: []models.TrackingCategory{
			{ID: "cat-type", Name: "Type"}, // no options
		},
	}

	result := c.Classify("Invoice for London office q3 consulting", mapping)

	assert.Nil(t, result.Type)
	assert.Nil(t, result.Destination)
}
