package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks a reconciliation run through its state machine
type RunStatus string

const (
	RunFetching    RunStatus = "fetching"
	RunClassifying RunStatus = "classifying"
	RunAssembling  RunStatus = "assembling"
	RunDone        RunStatus = "done"
	RunFailed      RunStatus = "failed"
)

// ReconcileRun is the persisted record of one payout reconciliation. The
// unique payout id constraint in the store is what makes re-delivered webhook
// events idempotent.
type ReconcileRun struct {
	ID               uuid.UUID `json:"id"`
	PayoutID         string    `json:"payout_id"`
	Status           RunStatus `json:"status"`
	InvoiceID        *string   `json:"invoice_id,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	LineItemCount    int       `json:"line_item_count"`
	WarningCount     int       `json:"warning_count"`
	DiscrepancyCount int       `json:"discrepancy_count"`
	ReportKey        *string   `json:"report_key,omitempty"`
	Error            *string   `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RunResult is what the reconciler returns to its caller once a run settles
type RunResult struct {
	RunID         uuid.UUID           `json:"run_id"`
	PayoutID      string              `json:"payout_id"`
	Status        RunStatus           `json:"status"`
	InvoiceID     string              `json:"invoice_id,omitempty"`
	LineItemCount int                 `json:"line_item_count"`
	Warnings      []ParseWarning      `json:"warnings,omitempty"`
	Discrepancies []DiscrepancyRecord `json:"discrepancies,omitempty"`
	ReportKey     string              `json:"report_key,omitempty"`
	Skipped       bool                `json:"skipped"` // payout already reconciled
}
