package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// ReportData is everything that goes into one run's review workbook
type ReportData struct {
	PayoutID      string
	RunID         string
	Reference     string
	Currency      string
	LineItems     []models.LineItem
	Warnings      []models.ParseWarning
	Discrepancies []models.DiscrepancyRecord
}

// ReconciliationReport renders an xlsx workbook for operator review: one
// sheet of line items, one of parse warnings, one of discrepancies, plus a
// summary. Operators work through discrepancies before approving the draft
// invoice in the ledger UI.
type ReconciliationReport struct{}

// NewReconciliationReport creates a new report builder
func NewReconciliationReport() *ReconciliationReport {
	return &ReconciliationReport{}
}

// Build renders the workbook and returns its bytes
func (r *ReconciliationReport) Build(data ReportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := r.writeSummary(f, data); err != nil {
		return nil, err
	}
	if err := r.writeLineItems(f, data.LineItems); err != nil {
		return nil, err
	}
	if err := r.writeWarnings(f, data.Warnings); err != nil {
		return nil, err
	}
	if err := r.writeDiscrepancies(f, data.Discrepancies); err != nil {
		return nil, err
	}

	// The default sheet becomes the summary; delete nothing, reorder nothing.
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *ReconciliationReport) writeSummary(f *excelize.File, data ReportData) error {
	const sheet = "Sheet1"
	if err := f.SetSheetName(sheet, "Summary"); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Payout ID", data.PayoutID},
		{"Run ID", data.RunID},
		{"Reference", data.Reference},
		{"Currency", data.Currency},
		{"Line items", len(data.LineItems)},
		{"Parse warnings", len(data.Warnings)},
		{"Discrepancies", len(data.Discrepancies)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}
	return nil
}

func (r *ReconciliationReport) writeLineItems(f *excelize.File, items []models.LineItem) error {
	const sheet = "Line Items"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	header := []interface{}{"Description", "Amount", "Currency", "Account", "Tax Type", "Tracking"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, item := range items {
		account := ""
		if item.AccountCode != nil {
			account = *item.AccountCode
		}
		tracking := ""
		for _, ref := range item.Tracking {
			if tracking != "" {
				tracking += "; "
			}
			tracking += fmt.Sprintf("%s/%s", ref.CategoryID, ref.OptionID)
		}

		row := []interface{}{
			item.Description,
			item.UnitAmount.String(),
			item.Currency,
			account,
			item.TaxType,
			tracking,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing line item row: %w", err)
		}
	}
	return nil
}

func (r *ReconciliationReport) writeWarnings(f *excelize.File, warnings []models.ParseWarning) error {
	const sheet = "Warnings"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	header := []interface{}{"Transaction", "Metadata Key", "Metadata Value", "Reason"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, w := range warnings {
		row := []interface{}{w.TransactionID, w.Key, w.Value, w.Reason}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing warning row: %w", err)
		}
	}
	return nil
}

func (r *ReconciliationReport) writeDiscrepancies(f *excelize.File, discrepancies []models.DiscrepancyRecord) error {
	const sheet = "Discrepancies"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	header := []interface{}{"Transaction", "Kind", "Expected", "Observed", "Email"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, d := range discrepancies {
		row := []interface{}{
			d.TransactionID,
			string(d.Kind),
			d.Expected.String(),
			d.Observed.String(),
			d.Email,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing discrepancy row: %w", err)
		}
	}
	return nil
}
