package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/dkemsley/payoutsync-api/internal/models"
	"github.com/dkemsley/payoutsync-api/internal/store"
	"github.com/dkemsley/payoutsync-api/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportStore fetches archived review reports by key
type ReportStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// ReconcileHandler exposes manual reconciliation and the run ledger to
// operators
type ReconcileHandler struct {
	reconciler Reconciler
	runs       *store.Store
	reports    ReportStore
	logger     zerolog.Logger
}

// NewReconcileHandler creates a new reconcile handler. reports may be nil
// when no archive is configured.
func NewReconcileHandler(reconciler Reconciler, runs *store.Store, reports ReportStore, logger zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconciler: reconciler,
		runs:       runs,
		reports:    reports,
		logger:     logger,
	}
}

// TriggerRun reconciles one payout on demand, e.g. after a missed webhook
// or a resolved discrepancy. Runs synchronously so the operator sees the
// outcome in the response.
// POST /v1/reconcile/:payoutID
func (h *ReconcileHandler) TriggerRun(c fiber.Ctx) error {
	payoutID := c.Params("payoutID")
	if payoutID == "" {
		return utils.NewBadRequestError("payout id is required", nil)
	}

	var body struct {
		SettlementDate int64 `json:"settlement_date"`
	}
	// Body is optional; a missing settlement date defaults to now.
	_ = c.Bind().Body(&body)
	if body.SettlementDate == 0 {
		body.SettlementDate = time.Now().Unix()
	}

	if operator, ok := c.Locals("operator_id").(string); ok {
		h.logger.Info().Str("payout_id", payoutID).Str("operator_id", operator).
			Msg("manual reconciliation requested")
	}

	result, err := h.reconciler.Reconcile(c.Context(), models.PayoutEvent{
		ID:             payoutID,
		SettlementDate: body.SettlementDate,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, err.Error())
	}
	if result.Skipped {
		return utils.NewConflictError("payout already reconciled")
	}

	return utils.SuccessResponse(c, result)
}

// ListRuns returns the run ledger, newest first
// GET /v1/runs?limit=50&offset=0
func (h *ReconcileHandler) ListRuns(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	runs, err := h.runs.ListRuns(c.Context(), limit, offset)
	if err != nil {
		return utils.NewInternalError(err)
	}
	total, err := h.runs.CountRuns(c.Context())
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.PaginatedResponse(c, runs, offset/limit+1, limit, total)
}

// GetRun returns one run by id
// GET /v1/runs/:id
func (h *ReconcileHandler) GetRun(c fiber.Ctx) error {
	run, err := h.runs.GetRun(c.Context(), c.Params("id"))
	if err != nil {
		return utils.NewInternalError(err)
	}
	if run == nil {
		return utils.NewNotFoundError("run")
	}
	return utils.SuccessResponse(c, run)
}

// GetRunReport streams a run's archived review workbook
// GET /v1/runs/:id/report
func (h *ReconcileHandler) GetRunReport(c fiber.Ctx) error {
	if h.reports == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "report archive is not configured")
	}

	run, err := h.runs.GetRun(c.Context(), c.Params("id"))
	if err != nil {
		return utils.NewInternalError(err)
	}
	if run == nil {
		return utils.NewNotFoundError("run")
	}
	if run.ReportKey == nil {
		return utils.NewNotFoundError("report for run")
	}

	body, err := h.reports.Get(c.Context(), *run.ReportKey)
	if err != nil {
		h.logger.Error().Err(err).Str("key", *run.ReportKey).Msg("failed to fetch archived report")
		return utils.NewInternalError(err)
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="reconciliation-report.xlsx"`)
	return c.Send(body)
}
