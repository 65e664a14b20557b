package service

import (
	"context"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
)

// ScoreIndex stores scored clients for search
type ScoreIndex interface {
	IndexScores(ctx context.Context, runID string, output domain.ScoringOutput) error
	SearchScores(ctx context.Context, query string, from, size int) (*domain.ScoreDocumentPage, error)
}

// BundleMirror keeps an at-rest copy of each issued bundle
type BundleMirror interface {
	StoreBundle(ctx context.Context, runID string, createdAt time.Time, archive, manifest []byte) error
}

// RunLedger records issued bundles
type RunLedger interface {
	RecordRun(ctx context.Context, run *domain.EvidenceRun) error
	ListRuns(ctx context.Context, filter domain.EvidenceRunFilter) (*domain.EvidenceRunPage, error)
}

// AccessLog records use of evidence links
type AccessLog interface {
	LogAccess(ctx context.Context, entry *domain.EvidenceAccessLog) error
}

// EventPublisher announces issued bundles
type EventPublisher interface {
	PublishEvidenceIssued(ctx context.Context, event *domain.EvidenceIssued) error
}

// Option wires an optional sink into the service
type Option func(*RiskService)

// WithScoreIndex enables score indexing and search
func WithScoreIndex(index ScoreIndex) Option {
	return func(s *RiskService) { s.index = index }
}

// WithBundleMirror enables the at-rest bundle mirror
func WithBundleMirror(mirror BundleMirror) Option {
	return func(s *RiskService) { s.mirror = mirror }
}

// WithRunLedger enables the run ledger
func WithRunLedger(ledger RunLedger) Option {
	return func(s *RiskService) { s.ledger = ledger }
}

// WithAccessLog enables link access logging
func WithAccessLog(log AccessLog) Option {
	return func(s *RiskService) { s.accessLog = log }
}

// WithEventPublisher enables issued-bundle events
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *RiskService) { s.publisher = publisher }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *RiskService) { s.now = now }
}
