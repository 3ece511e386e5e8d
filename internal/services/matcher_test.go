package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

func options(names ...string) []models.TrackingOption {
	opts := make([]models.TrackingOption, len(names))
	for i, name := range names {
		opts[i] = models.TrackingOption{ID: "opt-" + name, Name: name}
	}
	return opts
}

func TestCategoryMatcher_BestMatch(t *testing.T) {
	m := NewCategoryMatcher()

	tests := []struct {
		name       string
		fragment   string
		candidates []models.TrackingOption
		want       string
		wantFound  bool
	}{
		{
			name:       "Exact match",
			fragment:   "consulting",
			candidates: options("Consulting", "Training", "Events"),
			want:       "Consulting",
			wantFound:  true,
		},
		{
			name:       "Close misspelling",
			fragment:   "consultng",
			candidates: options("Consulting", "Training", "Events"),
			want:       "Consulting",
			wantFound:  true,
		},
		{
			name:       "Case insensitive",
			fragment:   "EVENTS",
			candidates: options("Consulting", "Training", "Events"),
			want:       "Events",
			wantFound:  true,
		},
		{
			name:       "No similarity floor, poor match still returned",
			fragment:   "zzzzzz",
			candidates: options("Consulting", "Training"),
			want:       "Training",
			wantFound:  true,
		},
		{
			name:       "Tie resolves to earliest candidate",
			fragment:   "cd",
			candidates: options("ca", "cb"),
			want:       "ca",
			wantFound:  true,
		},
		{
			name:       "No candidates",
			fragment:   "anything",
			candidates: nil,
			want:       "",
			wantFound:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := m.BestMatch(tt.fragment, tt.candidates)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The tie rule depends on candidate order, so reversing the slice must flip
// the winner
func TestCategoryMatcher_TieOrderIsInsertionOrder(t *testing.T) {
	m := NewCategoryMatcher()

	got, found := m.BestMatch("cd", options("cb", "ca"))
	assert.True(t, found)
	assert.Equal(t, "cb", got)
}
