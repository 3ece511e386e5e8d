package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// ProcessorClient is the narrow boundary to the payment processor. The
// listing is cursor-paginated on the last record's id; a page must fully
// return before the next cursor is requested.
type ProcessorClient interface {
	ListPayoutTransactions(ctx context.Context, payoutID, startingAfter string, limit int) (models.TransactionPage, error)
	GetChargeDetail(ctx context.Context, chargeID string) (models.ChargeDetail, error)
	GetRefundDetail(ctx context.Context, refundID string) (models.RefundDetail, error)
}

// LedgerClient is the narrow boundary to the accounting platform
type LedgerClient interface {
	GetAccounts(ctx context.Context) (models.AccountTable, error)
	GetTrackingCategories(ctx context.Context) (models.CategoryMapping, error)
	CreateInvoice(ctx context.Context, draft models.InvoiceDraft) (string, error)
}

// RunStore persists reconciliation runs. FindRunByPayout backs the
// idempotency check that keeps re-delivered payout events from creating
// duplicate invoices.
type RunStore interface {
	FindRunByPayout(ctx context.Context, payoutID string) (*models.ReconcileRun, error)
	CreateRun(ctx context.Context, run *models.ReconcileRun) error
	UpdateRun(ctx context.Context, run *models.ReconcileRun) error
}

// ReportBuilder renders an operator-review workbook for one run
type ReportBuilder interface {
	Build(data ReportData) ([]byte, error)
}

// ReportArchive stores a rendered report under a key
type ReportArchive interface {
	Put(ctx context.Context, key string, body []byte) error
}

// ReconcilerConfig carries the run-invariant settings the orchestrator needs
type ReconcilerConfig struct {
	ContactRef        string
	DueDateOffsetDays int
	PageLimit         int
	Codes             models.AccountCodes
}

// PayoutReconciler drives one payout through the reconciliation state
// machine: FETCHING -> CLASSIFYING -> ASSEMBLING -> DONE | FAILED. A run is
// synchronous and sequential; payout volume is bounded, so all transactions
// are held in memory.
type PayoutReconciler struct {
	processor ProcessorClient
	ledger    LedgerClient
	runs      RunStore
	reporter  ReportBuilder
	archive   ReportArchive
	cfg       ReconcilerConfig
	logger    zerolog.Logger

	parser     *MetadataParser
	classifier *TransactionClassifier
	detector   *DiscrepancyDetector
	assembler  *LineItemAssembler
}

// NewPayoutReconciler wires the engine components together. runs, reporter
// and archive may be nil (engine-only use, e.g. tests); persistence and
// reporting are then skipped.
func NewPayoutReconciler(processor ProcessorClient, ledger LedgerClient, runs RunStore, reporter ReportBuilder, archive ReportArchive, cfg ReconcilerConfig, logger zerolog.Logger) *PayoutReconciler {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	return &PayoutReconciler{
		processor:  processor,
		ledger:     ledger,
		runs:       runs,
		reporter:   reporter,
		archive:    archive,
		cfg:        cfg,
		logger:     logger,
		parser:     NewMetadataParser(),
		classifier: NewTransactionClassifier(NewCategoryMatcher()),
		detector:   NewDiscrepancyDetector(),
		assembler:  NewLineItemAssembler(),
	}
}

// transactionOutcome is the tagged per-transaction result: line items,
// warnings, or a discrepancy that replaced the items. Fatal fetch errors are
// returned as errors instead and abort the run.
type transactionOutcome struct {
	items       []models.LineItem
	warnings    []models.ParseWarning
	discrepancy *models.DiscrepancyRecord
}

// Reconcile runs one payout end to end. A payout with a completed run is
// skipped; a failed or interrupted run is retried in place. Any fetch error
// aborts before ASSEMBLING and nothing is emitted.
func (r *PayoutReconciler) Reconcile(ctx context.Context, event models.PayoutEvent) (*models.RunResult, error) {
	var existing *models.ReconcileRun
	if r.runs != nil {
		var err error
		existing, err = r.runs.FindRunByPayout(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("checking existing runs: %w", err)
		}
		if existing != nil && existing.Status == models.RunDone {
			r.logger.Info().Str("payout_id", event.ID).Stringer("run_id", existing.ID).
				Msg("payout already reconciled, skipping")
			return &models.RunResult{
				RunID:    existing.ID,
				PayoutID: event.ID,
				Status:   existing.Status,
				Skipped:  true,
			}, nil
		}
	}

	run := &models.ReconcileRun{
		ID:       uuid.New(),
		PayoutID: event.ID,
		Status:   models.RunFetching,
	}
	if r.runs != nil {
		if existing != nil {
			// Retry: the unique payout index allows only one row, so the
			// prior run's record is reset and reused rather than re-inserted.
			run.ID = existing.ID
			run.CreatedAt = existing.CreatedAt
			if err := r.runs.UpdateRun(ctx, run); err != nil {
				return nil, fmt.Errorf("resetting run record for retry: %w", err)
			}
			r.logger.Info().Str("payout_id", event.ID).Stringer("run_id", run.ID).
				Str("previous_status", string(existing.Status)).
				Msg("retrying reconciliation run")
		} else if err := r.runs.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("creating run record: %w", err)
		}
	}

	result, err := r.execute(ctx, event, run)
	if err != nil {
		run.Status = models.RunFailed
		msg := err.Error()
		run.Error = &msg
		r.persist(ctx, run)
		return nil, err
	}
	return result, nil
}

func (r *PayoutReconciler) execute(ctx context.Context, event models.PayoutEvent, run *models.ReconcileRun) (*models.RunResult, error) {
	// Snapshot the taxonomy and chart of accounts once; both stay read-only
	// for the remainder of the run.
	accounts, err := r.ledger.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching chart of accounts: %w", err)
	}
	mapping, err := r.ledger.GetTrackingCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching tracking categories: %w", err)
	}
	rctx := models.ReconciliationContext{
		Mapping:  mapping,
		Accounts: accounts,
		Codes:    r.cfg.Codes,
	}

	transactions, err := r.fetchTransactions(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunClassifying
	r.persist(ctx, run)

	var (
		items         []models.LineItem
		warnings      []models.ParseWarning
		discrepancies []models.DiscrepancyRecord
		totalFees     = decimal.Zero
		currency      string
	)

	for _, txn := range transactions {
		if txn.Currency != "" {
			currency = strings.ToUpper(txn.Currency)
		}

		switch txn.Kind {
		case models.KindFee:
			totalFees = totalFees.Add(txn.NetAmount())
			continue
		case models.KindCharge:
			totalFees = totalFees.Sub(txn.FeeAmount())
		case models.KindRefund:
			// Refunds carry no processor fee of their own.
		default:
			r.logger.Debug().Str("transaction_id", txn.ID).Str("kind", string(txn.Kind)).
				Msg("skipping transaction of unhandled kind")
			continue
		}

		outcome, err := r.processTransaction(ctx, txn, rctx)
		if err != nil {
			return nil, err
		}

		for _, w := range outcome.warnings {
			r.logger.Warn().Str("payout_id", event.ID).Str("transaction_id", w.TransactionID).
				Str("metadata_key", w.Key).Str("reason", w.Reason).
				Msg("metadata parse warning")
		}
		warnings = append(warnings, outcome.warnings...)

		if outcome.discrepancy != nil {
			r.logger.Warn().Str("payout_id", event.ID).Str("transaction_id", txn.ID).
				Str("expected", outcome.discrepancy.Expected.String()).
				Str("observed", outcome.discrepancy.Observed.String()).
				Msg("discrepancy detected, falling back to single line item")
			discrepancies = append(discrepancies, *outcome.discrepancy)
		}
		items = append(items, outcome.items...)
	}

	run.Status = models.RunAssembling
	r.persist(ctx, run)

	if !totalFees.IsZero() {
		items = append(items, r.assembler.FeeItem(totalFees, currency, rctx))
	}

	result := &models.RunResult{
		RunID:         run.ID,
		PayoutID:      event.ID,
		LineItemCount: len(items),
		Warnings:      warnings,
		Discrepancies: discrepancies,
	}
	run.Currency = currency
	run.LineItemCount = len(items)
	run.WarningCount = len(warnings)
	run.DiscrepancyCount = len(discrepancies)

	if len(items) == 0 {
		r.logger.Info().Str("payout_id", event.ID).Msg("no line items to invoice, nothing to reconcile")
		run.Status = models.RunDone
		r.persist(ctx, run)
		result.Status = models.RunDone
		return result, nil
	}

	draft := r.buildDraft(event, currency, items)

	invoiceID, err := r.ledger.CreateInvoice(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("creating invoice draft: %w", err)
	}
	result.InvoiceID = invoiceID
	run.InvoiceID = &invoiceID

	// The review report is best-effort: a failed render or upload is logged
	// and never fails a run that already produced its invoice.
	if key := r.archiveReport(ctx, event, run.ID, draft, warnings, discrepancies); key != "" {
		result.ReportKey = key
		run.ReportKey = &key
	}

	run.Status = models.RunDone
	r.persist(ctx, run)
	result.Status = models.RunDone

	r.logger.Info().Str("payout_id", event.ID).Stringer("run_id", run.ID).
		Str("invoice_id", invoiceID).Int("line_items", len(items)).
		Int("warnings", len(warnings)).Int("discrepancies", len(discrepancies)).
		Msg("payout reconciled")

	return result, nil
}

// fetchTransactions pages through the payout's balance transaction listing
// until no further cursor is returned
func (r *PayoutReconciler) fetchTransactions(ctx context.Context, payoutID string) ([]models.Transaction, error) {
	var all []models.Transaction
	startingAfter := ""

	for {
		page, err := r.processor.ListPayoutTransactions(ctx, payoutID, startingAfter, r.cfg.PageLimit)
		if err != nil {
			return nil, fmt.Errorf("listing payout transactions: %w", err)
		}
		all = append(all, page.Transactions...)

		if !page.HasMore || len(page.Transactions) == 0 {
			return all, nil
		}
		startingAfter = page.Transactions[len(page.Transactions)-1].ID
	}
}

// processTransaction runs one charge or refund through parsing,
// classification, discrepancy detection and assembly
func (r *PayoutReconciler) processTransaction(ctx context.Context, txn models.Transaction, rctx models.ReconciliationContext) (transactionOutcome, error) {
	var (
		detail      models.ChargeDetail
		description string
		netAmount   decimal.Decimal
		err         error
	)

	switch txn.Kind {
	case models.KindCharge:
		detail, err = r.processor.GetChargeDetail(ctx, txn.SourceRef)
		if err != nil {
			return transactionOutcome{}, fmt.Errorf("fetching charge %s: %w", txn.SourceRef, err)
		}
		description = txn.Description
		netAmount = txn.NetAmount()
	case models.KindRefund:
		refund, rerr := r.processor.GetRefundDetail(ctx, txn.SourceRef)
		if rerr != nil {
			return transactionOutcome{}, fmt.Errorf("fetching refund %s: %w", txn.SourceRef, rerr)
		}
		detail, err = r.processor.GetChargeDetail(ctx, refund.ChargeID)
		if err != nil {
			return transactionOutcome{}, fmt.Errorf("fetching refunded charge %s: %w", refund.ChargeID, err)
		}
		// Refund descriptions live on the originating charge, and the
		// authoritative amount is the refund's own, pre-inversion.
		description = detail.Description
		netAmount = refund.Amount()
	default:
		return transactionOutcome{}, nil
	}

	var outcome transactionOutcome

	classification := r.classifier.Classify(description, rctx.Mapping)

	multiEntry := len(detail.Metadata) > 1
	var entries []models.MetadataEntry
	for _, pair := range detail.Metadata {
		entry, warning := r.parser.Parse(pair, netAmount, multiEntry)
		if warning != nil {
			warning.TransactionID = txn.ID
			outcome.warnings = append(outcome.warnings, *warning)
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	if rec := r.detector.Check(txn.ID, txn.Kind, entries, netAmount, detail.CustomerEmail); rec != nil {
		outcome.discrepancy = rec
		outcome.items = []models.LineItem{
			r.assembler.FallbackItem(*rec, txn.NetAmount(), strings.ToUpper(txn.Currency)),
		}
		return outcome, nil
	}

	items, accountWarnings := r.assembler.Assemble(AssembleInput{
		Kind:           txn.Kind,
		Currency:       strings.ToUpper(txn.Currency),
		Email:          detail.CustomerEmail,
		Entries:        entries,
		Classification: classification,
	}, rctx)
	for i := range accountWarnings {
		accountWarnings[i].TransactionID = txn.ID
	}
	outcome.warnings = append(outcome.warnings, accountWarnings...)
	outcome.items = items

	return outcome, nil
}

// buildDraft assembles the final invoice: issue date now, due date at the
// configured offset, reference naming the payout's settlement date
func (r *PayoutReconciler) buildDraft(event models.PayoutEvent, currency string, items []models.LineItem) models.InvoiceDraft {
	issued := time.Now().UTC()
	settled := time.Unix(event.SettlementDate, 0).UTC().Format("2006-01-02")

	return models.InvoiceDraft{
		ContactRef: r.cfg.ContactRef,
		IssueDate:  issued,
		DueDate:    issued.AddDate(0, 0, r.cfg.DueDateOffsetDays),
		Reference:  fmt.Sprintf("Stripe Payout: %s", settled),
		Currency:   currency,
		Status:     models.InvoiceStatusDraft,
		LineItems:  items,
	}
}

// archiveReport renders and uploads the operator workbook, returning the
// archive key or "" when reporting is disabled or failed
func (r *PayoutReconciler) archiveReport(ctx context.Context, event models.PayoutEvent, runID uuid.UUID, draft models.InvoiceDraft, warnings []models.ParseWarning, discrepancies []models.DiscrepancyRecord) string {
	if r.reporter == nil || r.archive == nil {
		return ""
	}

	body, err := r.reporter.Build(ReportData{
		PayoutID:      event.ID,
		RunID:         runID.String(),
		Reference:     draft.Reference,
		Currency:      draft.Currency,
		LineItems:     draft.LineItems,
		Warnings:      warnings,
		Discrepancies: discrepancies,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("payout_id", event.ID).Msg("failed to render review report")
		return ""
	}

	key := fmt.Sprintf("reports/%s/%s.xlsx", event.ID, runID)
	if err := r.archive.Put(ctx, key, body); err != nil {
		r.logger.Error().Err(err).Str("payout_id", event.ID).Str("key", key).
			Msg("failed to archive review report")
		return ""
	}
	return key
}

// persist updates the run record, logging rather than failing on store errors
func (r *PayoutReconciler) persist(ctx context.Context, run *models.ReconcileRun) {
	if r.runs == nil {
		return
	}
	if err := r.runs.UpdateRun(ctx, run); err != nil {
		r.logger.Error().Err(err).Str("payout_id", run.PayoutID).Msg("failed to update run record")
	}
}
