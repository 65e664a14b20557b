package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/banking/dnfbp-risk/internal/archive"
	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/evidence"
	"github.com/banking/dnfbp-risk/internal/metrics"
	"github.com/banking/dnfbp-risk/internal/report"
	"github.com/banking/dnfbp-risk/internal/scoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sideEffectTimeout bounds every best-effort sink call
const sideEffectTimeout = 5 * time.Second

// Requester identifies who used an evidence link
type Requester struct {
	IPAddress string
	UserAgent string
}

// VerificationResult is what a verify link shows
type VerificationResult struct {
	Manifest     domain.EvidenceManifest   `json:"manifest"`
	Verification domain.VerificationReport `json:"verification"`
	PublicKey    string                    `json:"public_key,omitempty"` // base64, empty when signing is off
	ExpiresAt    time.Time                 `json:"expires_at"`
}

// RiskService scores requests and issues evidence bundles. Scoring and
// assembly are on the request path; indexing, mirroring, the run ledger,
// access logs and events are best effort and never fail a request.
type RiskService struct {
	ruleset   scoring.Ruleset
	renderer  *report.Renderer
	assembler *evidence.Assembler
	cache     *evidence.TokenCache
	publicKey ed25519.PublicKey

	index     ScoreIndex
	mirror    BundleMirror
	ledger    RunLedger
	accessLog AccessLog
	publisher EventPublisher

	now     func() time.Time
	pending sync.WaitGroup
	logger  *zap.Logger
}

// NewRiskService creates the service. publicKey may be nil when signing is off.
func NewRiskService(
	ruleset scoring.Ruleset,
	renderer *report.Renderer,
	assembler *evidence.Assembler,
	cache *evidence.TokenCache,
	publicKey ed25519.PublicKey,
	logger *zap.Logger,
	opts ...Option,
) *RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RiskService{
		ruleset:   ruleset,
		renderer:  renderer,
		assembler: assembler,
		cache:     cache,
		publicKey: publicKey,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesetID returns the id of the active ruleset
func (s *RiskService) RulesetID() string {
	return s.ruleset.ID
}

// Score runs the ruleset over the request
func (s *RiskService) Score(ctx context.Context, req domain.ScoreRequest) (domain.ScoringOutput, error) {
	if err := validateRequest(req); err != nil {
		return domain.ScoringOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ScoringOutput{}, err
	}

	output := s.ruleset.Score(req.Clients, req.Transactions, req.Lookback)

	metrics.ScoringRunsTotal.WithLabelValues(s.ruleset.ID).Inc()
	for band, n := range output.BandCounts() {
		metrics.ClientsScoredTotal.WithLabelValues(string(band)).Add(float64(n))
	}
	s.logger.Info("Scoring run completed",
		zap.String("request_id", req.RequestID),
		zap.String("ruleset_id", s.ruleset.ID),
		zap.Int("clients", len(req.Clients)),
		zap.Int("transactions", len(req.Transactions)),
	)
	return output, nil
}

// GenerateEvidence scores the request and issues a token-addressed bundle
func (s *RiskService) GenerateEvidence(ctx context.Context, req domain.ScoreRequest) (*domain.EvidenceRef, error) {
	output, err := s.Score(ctx, req)
	if err != nil {
		return nil, err
	}

	cases := req.Cases
	if cases == nil {
		cases = DeriveCases(output.Scores)
	}

	createdAt := s.now().UTC()
	html, err := s.renderer.Render(output, cases, createdAt)
	if err != nil {
		return nil, err
	}

	assembled, err := s.assembler.Assemble(ctx, evidence.AssemblyInput{
		Clients:      req.Clients,
		Transactions: req.Transactions,
		Scoring:      output,
		Cases:        cases,
		Report:       html,
	})
	if err != nil {
		s.logger.Error("Failed to assemble evidence bundle",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("evidence assembly failed: %w", err)
	}

	ref := assembled.Ref
	runID := uuid.New()
	ref.RunID = runID.String()

	s.recordIssued(runID, req, output, assembled, createdAt)
	return &ref, nil
}

// recordIssued fans the run out to every configured sink
func (s *RiskService) recordIssued(runID uuid.UUID, req domain.ScoreRequest, output domain.ScoringOutput, assembled *evidence.Assembled, createdAt time.Time) {
	ref := assembled.Ref
	id := runID.String()
	bandCounts := output.BandCounts()

	if s.index != nil {
		s.runAsync("index", id, func(ctx context.Context) error {
			return s.index.IndexScores(ctx, id, output)
		})
	}
	if s.mirror != nil {
		s.runAsync("mirror", id, func(ctx context.Context) error {
			return s.mirror.StoreBundle(ctx, id, createdAt, assembled.Archive, assembled.Manifest)
		})
	}
	if s.ledger != nil {
		run := &domain.EvidenceRun{
			RunID:        runID,
			RequestID:    req.RequestID,
			RulesetID:    ref.Manifest.RulesetID,
			TokenHash:    crypto.HashToken(ref.Token),
			ManifestJSON: assembled.Manifest,
			ArchiveBytes: len(assembled.Archive),
			ClientCount:  len(output.Scores),
			BandCounts:   bandCounts,
			Signed:       ref.Manifest.IsSigned(),
			Lookback:     req.Lookback,
			CreatedAt:    createdAt,
			ExpiresAt:    ref.ExpiresAt,
		}
		s.runAsync("ledger", id, func(ctx context.Context) error {
			return s.ledger.RecordRun(ctx, run)
		})
	}
	if s.publisher != nil {
		event := &domain.EvidenceIssued{
			RunID:       id,
			RequestID:   req.RequestID,
			RulesetID:   ref.Manifest.RulesetID,
			VerifyURL:   ref.VerifyURL,
			DownloadURL: ref.DownloadURL,
			BandCounts:  bandCounts,
			Signed:      ref.Manifest.IsSigned(),
			CreatedAt:   createdAt,
			ExpiresAt:   ref.ExpiresAt,
		}
		s.runAsync("publish", id, func(ctx context.Context) error {
			return s.publisher.PublishEvidenceIssued(ctx, event)
		})
	}
}

// LookupEvidence returns the cached bundle for token. A miss covers both
// unknown and expired tokens.
func (s *RiskService) LookupEvidence(token string, accessType domain.AccessType, who Requester) (domain.CachedEvidence, bool) {
	entry, ok := s.cache.Get(token)
	s.logAccess(token, accessType, ok, who)
	return entry, ok
}

// VerifyEvidence re-checks a cached bundle against its manifest
func (s *RiskService) VerifyEvidence(token string, who Requester) (*VerificationResult, bool, error) {
	entry, ok := s.LookupEvidence(token, domain.AccessTypeVerify, who)
	if !ok {
		return nil, false, nil
	}

	files, err := archive.Unpack(entry.Archive)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read cached bundle: %w", err)
	}

	result := &VerificationResult{
		Manifest:     entry.Manifest,
		Verification: evidence.VerifyManifest(entry.Manifest, files, s.publicKey),
		ExpiresAt:    entry.ExpiresAt,
	}
	if s.publicKey != nil {
		result.PublicKey = base64.StdEncoding.EncodeToString(s.publicKey)
	}
	return result, true, nil
}

// SearchScores queries the score index
func (s *RiskService) SearchScores(ctx context.Context, query string, from, size int) (*domain.ScoreDocumentPage, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	return s.index.SearchScores(ctx, query, from, size)
}

// ListRuns queries the run ledger
func (s *RiskService) ListRuns(ctx context.Context, filter domain.EvidenceRunFilter) (*domain.EvidenceRunPage, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.ListRuns(ctx, filter)
}

// Wait blocks until in-flight side effects have finished
func (s *RiskService) Wait() {
	s.pending.Wait()
}

func (s *RiskService) logAccess(token string, accessType domain.AccessType, found bool, who Requester) {
	if s.accessLog == nil {
		return
	}
	entry := &domain.EvidenceAccessLog{
		AccessID:   uuid.New(),
		TokenHash:  crypto.HashToken(token),
		AccessType: accessType,
		Found:      found,
		IPAddress:  who.IPAddress,
		UserAgent:  who.UserAgent,
		Timestamp:  s.now().UTC(),
	}
	s.runAsync("access_log", entry.AccessID.String(), func(ctx context.Context) error {
		return s.accessLog.LogAccess(ctx, entry)
	})
}

// runAsync handles a background side effect with panic protection
func (s *RiskService) runAsync(sink, id string, fn func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.SideEffectFailuresTotal.WithLabelValues(sink).Inc()
				s.logger.Error("Panic in async side effect", zap.String("sink", sink), zap.Any("panic", r))
			}
		}()

		// Use a detached context for async operations
		asyncCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := fn(asyncCtx); err != nil {
			metrics.SideEffectFailuresTotal.WithLabelValues(sink).Inc()
			s.logger.Error("Best-effort side effect failed",
				zap.String("sink", sink),
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}()
}

func validateRequest(req domain.ScoreRequest) error {
	lb := req.Lookback
	if lb.Start.IsZero() || lb.End.IsZero() {
		return fmt.Errorf("%w: lookback start and end are required", ErrInvalidRequest)
	}
	if lb.Start.After(lb.End.Time) {
		return fmt.Errorf("%w: lookback start %s is after end %s", ErrInvalidRequest, lb.Start, lb.End)
	}
	for i, c := range req.Clients {
		if c.ClientID == "" {
			return fmt.Errorf("%w: client %d has no client_id", ErrInvalidRequest, i)
		}
	}
	for i, tx := range req.Transactions {
		if !tx.Direction.Valid() {
			return fmt.Errorf("%w: transaction %d has direction %q, want in or out", ErrInvalidRequest, i, tx.Direction)
		}
		if tx.Amount.IsNegative() {
			return fmt.Errorf("%w: transaction %d has negative amount %s", ErrInvalidRequest, i, tx.Amount)
		}
	}
	return nil
}
