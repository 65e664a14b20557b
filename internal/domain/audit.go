package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessType is how an evidence link was used
type AccessType string

const (
	AccessTypeVerify   AccessType = "VERIFY"
	AccessTypeDownload AccessType = "DOWNLOAD"
)

// EvidenceRun is the ledger row written for every issued bundle.
// The token itself is never stored, only its SHA-256.
type EvidenceRun struct {
	RunID        uuid.UUID      `json:"run_id" db:"run_id"`
	RequestID    string         `json:"request_id" db:"request_id"`
	RulesetID    string         `json:"ruleset_id" db:"ruleset_id"`
	TokenHash    string         `json:"-" db:"token_hash"`
	ManifestJSON []byte         `json:"-" db:"manifest"`
	ArchiveBytes int            `json:"archive_bytes" db:"archive_bytes"`
	ClientCount  int            `json:"client_count" db:"client_count"`
	BandCounts   map[Band]int   `json:"band_counts" db:"band_counts"`
	Signed       bool           `json:"signed" db:"signed"`
	Lookback     LookbackWindow `json:"lookback" db:"-"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at" db:"expires_at"`
}

// EvidenceRunFilter selects ledger rows
type EvidenceRunFilter struct {
	RunID     *uuid.UUID `json:"run_id,omitempty"`
	RequestID *string    `json:"request_id,omitempty"`
	RulesetID *string    `json:"ruleset_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// EvidenceRunPage is a page of ledger rows
type EvidenceRunPage struct {
	Runs       []*EvidenceRun `json:"runs"`
	TotalCount int64          `json:"total_count"`
	PageSize   int            `json:"page_size"`
	HasMore    bool           `json:"has_more"`
}

// EvidenceAccessLog tracks who used an evidence link (audit of audits)
type EvidenceAccessLog struct {
	AccessID   uuid.UUID  `json:"access_id" db:"access_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	AccessType AccessType `json:"access_type" db:"access_type"`
	Found      bool       `json:"found" db:"found"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	Timestamp  time.Time  `json:"timestamp" db:"timestamp"`
}

// ScoreDocument is the search index shape of one scored client
type ScoreDocument struct {
	RunID     string          `json:"run_id"`
	RulesetID string          `json:"ruleset_id"`
	IndexedAt time.Time       `json:"indexed_at"`
	Result    RiskScoreResult `json:"result"`
}

// ScoreDocumentPage is a page of search hits
type ScoreDocumentPage struct {
	Documents  []ScoreDocument `json:"documents"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	HasMore    bool            `json:"has_more"`
}

// EvidenceIssued is published after a bundle is registered
type EvidenceIssued struct {
	RunID       string       `json:"run_id"`
	RequestID   string       `json:"request_id,omitempty"`
	RulesetID   string       `json:"ruleset_id"`
	VerifyURL   string       `json:"verify_url"`
	DownloadURL string       `json:"download_url"`
	BandCounts  map[Band]int `json:"band_counts"`
	Signed      bool         `json:"signed"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}
