package services

import (
	"strings"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// Branch names of the two classification dimensions in the ledger taxonomy
const (
	branchType        = "Type"
	branchDestination = "Destination"
)

// TransactionClassifier derives "type" and "destination" tracking references
// from a transaction or charge description. Descriptions follow a loose
// human convention ("<prefix> <prefix> <destination...> <x> <y> <type>"), so
// both fragments are resolved through the fuzzy matcher and treated as
// advisory until their ids are validated against the mapping.
type TransactionClassifier struct {
	matcher *CategoryMatcher
}

// NewTransactionClassifier creates a classifier backed by the given matcher
func NewTransactionClassifier(matcher *CategoryMatcher) *TransactionClassifier {
	return &TransactionClassifier{matcher: matcher}
}

// Classify resolves the description's fragments against the run's category
// mapping. A branch that cannot be resolved (empty mapping, no candidates, or
// a match whose ids do not exist) yields a nil ref; the transaction proceeds
// unclassified on that dimension.
func (c *TransactionClassifier) Classify(description string, mapping models.CategoryMapping) models.ClassificationResult {
	destFragment, typeFragment := splitDescription(description)

	return models.ClassificationResult{
		Type:        c.resolve(typeFragment, branchType, mapping),
		Destination: c.resolve(destFragment, branchDestination, mapping),
	}
}

func (c *TransactionClassifier) resolve(fragment, branch string, mapping models.CategoryMapping) *models.OptionRef {
	cat := mapping.Branch(branch)
	if cat == nil {
		return nil
	}

	name, ok := c.matcher.BestMatch(fragment, cat.Options)
	if !ok {
		return nil
	}

	ref, ok := mapping.Resolve(branch, name)
	if !ok {
		return nil
	}
	return &ref
}

// splitDescription lowercases the description and extracts the two fragments:
// destination = tokens[2 : len-3] joined with spaces, type = the last token.
// Descriptions too short to carry a destination window yield an empty
// destination fragment.
func splitDescription(description string) (destination, typ string) {
	tokens := strings.Split(strings.ToLower(description), " ")
	if len(tokens) == 0 {
		return "", ""
	}

	typ = tokens[len(tokens)-1]
	if len(tokens) > 5 {
		destination = strings.Join(tokens[2:len(tokens)-3], " ")
	}
	return destination, typ
}
