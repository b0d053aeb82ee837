package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/291e/bogofit-shop-sub001/internal/domain"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/sqlinline"
)

// FittingRunRepositoryPG implements domain.FittingRunRepository.
type FittingRunRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewFittingRunRepository creates a fitting run repository backed by PostgreSQL.
func NewFittingRunRepository(sql infra.SQLExecutor) *FittingRunRepositoryPG {
	return &FittingRunRepositoryPG{sql: sql}
}

// Create inserts a run in its initial status.
func (r *FittingRunRepositoryPG) Create(ctx context.Context, run *domain.FittingRun) error {
	var productID string
	if run.ProductID != nil {
		productID = *run.ProductID
	}
	if run.Status == "" {
		run.Status = domain.FittingRunRunning
	}
	err := r.sql.QueryRow(ctx, sqlinline.QInsertFittingRun,
		run.ID,
		string(run.Status),
		run.ProMode,
		run.ConnectionInfo,
		productID,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repo: insert fitting run: %w", err)
	}
	return nil
}

// Complete stores the terminal outcome of a run.
func (r *FittingRunRepositoryPG) Complete(ctx context.Context, run *domain.FittingRun) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteFittingRun,
		run.ID,
		string(run.Status),
		run.ImageURL,
		run.VideoURL,
		run.ErrorMessage,
		run.VideoError,
		run.ConnectionInfo,
	)
	if err != nil {
		return fmt.Errorf("repo: complete fitting run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a run by its identifier.
func (r *FittingRunRepositoryPG) GetByID(ctx context.Context, id string) (*domain.FittingRun, error) {
	var run domain.FittingRun
	var status string
	err := r.sql.QueryRow(ctx, sqlinline.QGetFittingRun, id).Scan(
		&run.ID,
		&status,
		&run.ProMode,
		&run.ConnectionInfo,
		&run.ImageURL,
		&run.VideoURL,
		&run.ErrorMessage,
		&run.VideoError,
		&run.ProductID,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get fitting run: %w", err)
	}
	run.Status = domain.FittingRunStatus(status)
	return &run, nil
}

// FailStale marks runs still running since before olderThan as failed.
func (r *FittingRunRepositoryPG) FailStale(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailStaleFittingRuns, olderThan, reason)
	if err != nil {
		return 0, fmt.Errorf("repo: fail stale fitting runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.FittingRunRepository = (*FittingRunRepositoryPG)(nil)
