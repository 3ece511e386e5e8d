// Package store persists the two bits of state the service keeps: the
// ledger-platform OAuth token and the reconciliation run ledger. The unique
// payout id index on reconcile_runs is the idempotency guard against
// duplicate invoices for a re-delivered payout event.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkemsley/payoutsync-api/internal/models"
	"github.com/dkemsley/payoutsync-api/internal/xero"
)

const schema = `
CREATE TABLE IF NOT EXISTS xero_tokens (
    id            INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    access_token  TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expiry        TIMESTAMPTZ NOT NULL,
    tenant_id     TEXT NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reconcile_runs (
    id                UUID PRIMARY KEY,
    payout_id         TEXT NOT NULL,
    status            TEXT NOT NULL,
    invoice_id        TEXT,
    currency          TEXT NOT NULL DEFAULT '',
    line_item_count   INT NOT NULL DEFAULT 0,
    warning_count     INT NOT NULL DEFAULT 0,
    discrepancy_count INT NOT NULL DEFAULT 0,
    report_key        TEXT,
    error             TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS reconcile_runs_payout_id_idx ON reconcile_runs (payout_id);
`

// Store wraps the connection pool with typed queries
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over an existing pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate bootstraps the schema. Safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// GetToken returns the stored OAuth token, or nil when the connect flow has
// never completed
func (s *Store) GetToken(ctx context.Context) (*xero.StoredToken, error) {
	var token xero.StoredToken
	err := s.pool.QueryRow(ctx,
		`SELECT access_token, refresh_token, expiry, tenant_id FROM xero_tokens WHERE id = 1`,
	).Scan(&token.AccessToken, &token.RefreshToken, &token.Expiry, &token.TenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return &token, nil
}

// SaveToken upserts the single token row
func (s *Store) SaveToken(ctx context.Context, token xero.StoredToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO xero_tokens (id, access_token, refresh_token, expiry, tenant_id, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expiry = EXCLUDED.expiry,
			tenant_id = EXCLUDED.tenant_id,
			updated_at = now()`,
		token.AccessToken, token.RefreshToken, token.Expiry, token.TenantID,
	)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// FindRunByPayout returns the run for a payout id, or nil
func (s *Store) FindRunByPayout(ctx context.Context, payoutID string) (*models.ReconcileRun, error) {
	run, err := s.scanRun(s.pool.QueryRow(ctx,
		`SELECT id, payout_id, status, invoice_id, currency, line_item_count,
		        warning_count, discrepancy_count, report_key, error, created_at, updated_at
		 FROM reconcile_runs WHERE payout_id = $1`, payoutID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run for payout %s: %w", payoutID, err)
	}
	return run, nil
}

// GetRun returns one run by id, or nil
func (s *Store) GetRun(ctx context.Context, id string) (*models.ReconcileRun, error) {
	run, err := s.scanRun(s.pool.QueryRow(ctx,
		`SELECT id, payout_id, status, invoice_id, currency, line_item_count,
		        warning_count, discrepancy_count, report_key, error, created_at, updated_at
		 FROM reconcile_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs newest-first
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]models.ReconcileRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, payout_id, status, invoice_id, currency, line_item_count,
		        warning_count, discrepancy_count, report_key, error, created_at, updated_at
		 FROM reconcile_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ReconcileRun
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of runs in the ledger
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM reconcile_runs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return total, nil
}

// CreateRun inserts a new run record
func (s *Store) CreateRun(ctx context.Context, run *models.ReconcileRun) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reconcile_runs (id, payout_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`,
		run.ID, run.PayoutID, run.Status, now,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRun persists the mutable fields of a run
func (s *Store) UpdateRun(ctx context.Context, run *models.ReconcileRun) error {
	run.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE reconcile_runs SET
			status = $2, invoice_id = $3, currency = $4, line_item_count = $5,
			warning_count = $6, discrepancy_count = $7, report_key = $8,
			error = $9, updated_at = $10
		WHERE id = $1`,
		run.ID, run.Status, run.InvoiceID, run.Currency, run.LineItemCount,
		run.WarningCount, run.DiscrepancyCount, run.ReportKey, run.Error, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row rowScanner) (*models.ReconcileRun, error) {
	var run models.ReconcileRun
	err := row.Scan(
		&run.ID, &run.PayoutID, &run.Status, &run.InvoiceID, &run.Currency,
		&run.LineItemCount, &run.WarningCount, &run.DiscrepancyCount,
		&run.ReportKey, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
