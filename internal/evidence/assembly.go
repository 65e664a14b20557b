package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
	"go.uber.org/zap"
)

// Bundle file names
const (
	FileClients      = "clients.json"
	FileTransactions = "transactions.json"
	FileScores       = "scores.json"
	FileCases        = "cases.json"
	FileReport       = "report.html"
	FileManifest     = "manifest.json"
)

// Archiver packs named files into a single container
type Archiver interface {
	Pack(files []domain.NamedBlob) ([]byte, error)
}

// AssemblyInput is everything that goes into one evidence bundle
type AssemblyInput struct {
	Clients      []domain.ClientProfile
	Transactions []domain.TransactionRecord
	Scoring      domain.ScoringOutput
	Cases        []domain.RiskCase
	Report       []byte
}

// Assembled is the result of a successful assembly
type Assembled struct {
	Ref      domain.EvidenceRef
	Archive  []byte
	Manifest []byte // manifest.json as stored in the archive
}

// Assembler turns scoring output into a registered, token-addressed bundle
type Assembler struct {
	builder    *ManifestBuilder
	archiver   Archiver
	cache      *TokenCache
	baseOrigin string
	ttl        time.Duration
	newToken   func() (string, error)
	logger     *zap.Logger
}

// NewAssembler creates an assembler publishing links under baseOrigin
func NewAssembler(builder *ManifestBuilder, archiver Archiver, cache *TokenCache, baseOrigin string, ttl time.Duration, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		builder:    builder,
		archiver:   archiver,
		cache:      cache,
		baseOrigin: strings.TrimRight(baseOrigin, "/"),
		ttl:        ttl,
		newToken:   NewToken,
		logger:     logger,
	}
}

// Assemble builds the named files, the manifest over them, archives the set
// with the manifest appended and registers the archive under a fresh token.
func (a *Assembler) Assemble(ctx context.Context, in AssemblyInput) (*Assembled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := evidenceFiles(in)
	if err != nil {
		return nil, err
	}

	manifest := a.builder.Build(files, in.Scoring.Meta)
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	files = append(files, domain.NamedBlob{Name: FileManifest, Data: manifestJSON})

	archive, err := a.archiver.Pack(files)
	if err != nil {
		return nil, fmt.Errorf("failed to archive evidence: %w", err)
	}

	token, err := a.newToken()
	if err != nil {
		return nil, err
	}
	expiresAt, err := a.cache.Put(token, archive, manifest, a.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to register evidence: %w", err)
	}

	a.logger.Info("Evidence bundle registered",
		zap.String("ruleset_id", manifest.RulesetID),
		zap.Int("files", len(files)),
		zap.Int("archive_bytes", len(archive)),
		zap.Bool("signed", manifest.IsSigned()),
		zap.Time("expires_at", expiresAt),
	)

	return &Assembled{
		Ref: domain.EvidenceRef{
			Token:       token,
			VerifyURL:   a.link(token, "verify"),
			DownloadURL: a.link(token, "download"),
			ExpiresAt:   expiresAt,
			Manifest:    manifest,
		},
		Archive:  archive,
		Manifest: manifestJSON,
	}, nil
}

func (a *Assembler) link(token, action string) string {
	return a.baseOrigin + "/evidence/" + url.PathEscape(token) + "/" + action
}

func evidenceFiles(in AssemblyInput) ([]domain.NamedBlob, error) {
	clients := in.Clients
	if clients == nil {
		clients = []domain.ClientProfile{}
	}
	transactions := in.Transactions
	if transactions == nil {
		transactions = []domain.TransactionRecord{}
	}
	cases := in.Cases
	if cases == nil {
		cases = []domain.RiskCase{}
	}

	parts := []struct {
		name  string
		value interface{}
	}{
		{FileClients, clients},
		{FileTransactions, transactions},
		{FileScores, in.Scoring},
		{FileCases, cases},
	}

	files := make([]domain.NamedBlob, 0, len(parts)+1)
	for _, p := range parts {
		data, err := json.MarshalIndent(p.value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", p.name, err)
		}
		files = append(files, domain.NamedBlob{Name: p.name, Data: data})
	}
	files = append(files, domain.NamedBlob{Name: FileReport, Data: in.Report})
	return files, nil
}
