package postgres

import (
	"context"
	"fmt"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessLogRepository implements repository for evidence link access logs
type AccessLogRepository struct {
	pool *pgxpool.Pool
}

// NewAccessLogRepository creates a new access log repository
func NewAccessLogRepository(pool *pgxpool.Pool) *AccessLogRepository {
	return &AccessLogRepository{
		pool: pool,
	}
}

// LogAccess records who used an evidence link
func (r *AccessLogRepository) LogAccess(ctx context.Context, entry *domain.EvidenceAccessLog) error {
	const query = `
		INSERT INTO evidence_access_logs (
			access_id, token_hash, access_type, found,
			ip_address, user_agent, timestamp
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.AccessID, entry.TokenHash, string(entry.AccessType), entry.Found,
		entry.IPAddress, entry.UserAgent, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// CountAccesses returns how many times a link was used
func (r *AccessLogRepository) CountAccesses(ctx context.Context, tokenHash string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evidence_access_logs WHERE token_hash = $1`, tokenHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return n, nil
}
