package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned when no ledger row matches
var ErrRunNotFound = errors.New("evidence run not found")

const runColumns = `
	run_id, request_id, ruleset_id, token_hash, manifest,
	archive_bytes, client_count, band_counts, signed,
	lookback_start, lookback_end, created_at, expires_at`

// RunRepository is the append-only ledger of issued evidence bundles
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{
		pool: pool,
	}
}

// RecordRun inserts a ledger row. This is an APPEND-ONLY operation.
func (r *RunRepository) RecordRun(ctx context.Context, run *domain.EvidenceRun) error {
	bandCounts, err := json.Marshal(run.BandCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal band counts: %w", err)
	}

	query := `INSERT INTO evidence_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.pool.Exec(ctx, query,
		run.RunID, run.RequestID, run.RulesetID, run.TokenHash, run.ManifestJSON,
		run.ArchiveBytes, run.ClientCount, bandCounts, run.Signed,
		run.Lookback.Start.Time, run.Lookback.End.Time, run.CreatedAt, run.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert evidence run: %w", err)
	}
	return nil
}

// GetRun returns one ledger row
func (r *RunRepository) GetRun(ctx context.Context, runID uuid.UUID) (*domain.EvidenceRun, error) {
	query := `SELECT ` + runColumns + ` FROM evidence_runs WHERE run_id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get evidence run: %w", err)
	}
	return run, nil
}

// ListRuns returns ledger rows matching filter, newest first
func (r *RunRepository) ListRuns(ctx context.Context, filter domain.EvidenceRunFilter) (*domain.EvidenceRunPage, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.RunID != nil {
		where += fmt.Sprintf(" AND run_id = $%d", argIdx)
		args = append(args, *filter.RunID)
		argIdx++
	}
	if filter.RequestID != nil {
		where += fmt.Sprintf(" AND request_id = $%d", argIdx)
		args = append(args, *filter.RequestID)
		argIdx++
	}
	if filter.RulesetID != nil {
		where += fmt.Sprintf(" AND ruleset_id = $%d", argIdx)
		args = append(args, *filter.RulesetID)
		argIdx++
	}
	if filter.StartTime != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.StartTime)
		argIdx++
	}
	if filter.EndTime != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.EndTime)
		argIdx++
	}

	var totalCount int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM evidence_runs"+where, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count evidence runs: %w", err)
	}

	query := `SELECT ` + runColumns + ` FROM evidence_runs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*domain.EvidenceRun, 0, filter.Limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence runs: %w", err)
	}

	return &domain.EvidenceRunPage{
		Runs:       runs,
		TotalCount: totalCount,
		PageSize:   filter.Limit,
		HasMore:    totalCount > int64(filter.Offset+filter.Limit),
	}, nil
}

func scanRun(row pgx.Row) (*domain.EvidenceRun, error) {
	var (
		run           domain.EvidenceRun
		bandCounts    []byte
		lookbackStart time.Time
		lookbackEnd   time.Time
	)
	err := row.Scan(
		&run.RunID, &run.RequestID, &run.RulesetID, &run.TokenHash, &run.ManifestJSON,
		&run.ArchiveBytes, &run.ClientCount, &bandCounts, &run.Signed,
		&lookbackStart, &lookbackEnd, &run.CreatedAt, &run.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bandCounts, &run.BandCounts); err != nil {
		return nil, fmt.Errorf("failed to decode band counts: %w", err)
	}
	run.Lookback = domain.LookbackWindow{
		Start: dateOf(lookbackStart),
		End:   dateOf(lookbackEnd),
	}
	return &run, nil
}

func dateOf(t time.Time) domain.Date {
	y, m, d := t.Date()
	return domain.NewDate(y, m, d)
}
