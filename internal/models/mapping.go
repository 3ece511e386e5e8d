package models

// TrackingOption is one selectable option inside a tracking category
type TrackingOption struct {
	ID   string
	Name string
}

// TrackingCategory is one branch of the ledger's two-level classification
// taxonomy ("Type", "Destination"). Options keep the order the ledger API
// returned them in; the matcher's tie-breaking depends on it.
type TrackingCategory struct {
	ID      string
	Name    string
	Options []TrackingOption
}

// OptionRef pairs a tracking category id with one of its option ids
type OptionRef struct {
	CategoryID string
	OptionID   string
}

// CategoryMapping is the classification taxonomy snapshot for one run.
// Fetched once at run start and read-only afterwards.
type CategoryMapping struct {
	Categories []TrackingCategory
}

// Branch returns the category with the given name, or nil
func (m CategoryMapping) Branch(name string) *TrackingCategory {
	for i := range m.Categories {
		if m.Categories[i].Name == name {
			return &m.Categories[i]
		}
	}
	return nil
}

// Resolve looks up the ids behind an option name within a branch. The second
// return reports whether both the branch and the option exist; callers must
// check it rather than trusting an advisory matcher result.
func (m CategoryMapping) Resolve(branch, option string) (OptionRef, bool) {
	cat := m.Branch(branch)
	if cat == nil {
		return OptionRef{}, false
	}
	for _, opt := range cat.Options {
		if opt.Name == option {
			return OptionRef{CategoryID: cat.ID, OptionID: opt.ID}, true
		}
	}
	return OptionRef{}, false
}

// AccountRef identifies one ledger account
type AccountRef struct {
	AccountID string
	Code      string
}

// AccountTable is the chart-of-accounts snapshot for one run, keyed by
// account name as the ledger reports it.
type AccountTable map[string]AccountRef

// HasCode reports whether any account in the table carries the given code
func (t AccountTable) HasCode(code string) bool {
	for _, ref := range t {
		if ref.Code == code {
			return true
		}
	}
	return false
}

// ClassificationResult holds the resolved type/destination references for one
// transaction. Nil fields mean the branch could not be resolved; the
// transaction still proceeds, unclassified.
type ClassificationResult struct {
	Type        *OptionRef
	Destination *OptionRef
}

// AccountCodes are the fixed ledger account codes the assembler posts
// synthetic lines to. They are configuration, not computed.
type AccountCodes struct {
	Fee              string // flat processor-fee line
	DiscountDeferral string // discount lines whose source mentions "deferral"
	DiscountStandard string // all other discount lines
}

// ReconciliationContext is the immutable per-run snapshot passed explicitly
// into every engine component. No component reads ambient global state.
type ReconciliationContext struct {
	Mapping  CategoryMapping
	Accounts AccountTable
	Codes    AccountCodes
}
