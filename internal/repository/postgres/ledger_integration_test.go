package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/banking/dnfbp-risk/internal/config"
	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLedgerFlow requires a Postgres reachable with the RISK_DATABASE_* settings
func TestLedgerFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("RISK_DATABASE_ENABLED") != "true" {
		t.Skip("RISK_DATABASE_ENABLED not set")
	}

	// 1. Setup
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, cfg.Database)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, EnsureSchema(ctx, pool))

	runs := NewRunRepository(pool)
	accessLogs := NewAccessLogRepository(pool)

	// 2. Execution
	runID := uuid.New()
	requestID := "it-" + runID.String()
	created := time.Now().UTC().Truncate(time.Second)
	run := &domain.EvidenceRun{
		RunID:        runID,
		RequestID:    requestID,
		RulesetID:    "dnfbp-2025.11",
		TokenHash:    crypto.HashToken(runID.String()),
		ManifestJSON: []byte(`{"hash_alg":"SHA-256","files":[]}`),
		ArchiveBytes: 2048,
		ClientCount:  3,
		BandCounts:   map[domain.Band]int{domain.BandHigh: 1, domain.BandMedium: 0, domain.BandLow: 2},
		Signed:       true,
		Lookback: domain.LookbackWindow{
			Start: domain.NewDate(2025, time.May, 1),
			End:   domain.NewDate(2025, time.October, 31),
		},
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}
	require.NoError(t, runs.RecordRun(ctx, run))

	for _, found := range []bool{true, false} {
		require.NoError(t, accessLogs.LogAccess(ctx, &domain.EvidenceAccessLog{
			AccessID:   uuid.New(),
			TokenHash:  run.TokenHash,
			AccessType: domain.AccessTypeDownload,
			Found:      found,
			IPAddress:  "127.0.0.1",
			Timestamp:  time.Now().UTC(),
		}))
	}

	// 3. Verification
	got, err := runs.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, requestID, got.RequestID)
	assert.Equal(t, run.Lookback, got.Lookback)
	assert.Equal(t, 1, got.BandCounts[domain.BandHigh])
	assert.JSONEq(t, string(run.ManifestJSON), string(got.ManifestJSON))

	page, err := runs.ListRuns(ctx, domain.EvidenceRunFilter{RequestID: &requestID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Runs, 1)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.False(t, page.HasMore)

	n, err := accessLogs.CountAccesses(ctx, run.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = runs.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
