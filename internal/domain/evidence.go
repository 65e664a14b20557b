package domain

import (
	"time"
)

// HashAlgSHA256 is the content hash identifier recorded in manifests
const HashAlgSHA256 = "SHA-256"

// NamedBlob is one evidence file. A []NamedBlob is an insertion-ordered
// name to bytes mapping.
type NamedBlob struct {
	Name string
	Data []byte
}

// FileDigestEntry records the size and digest of one evidence file
type FileDigestEntry struct {
	Name   string `json:"name"`
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// ManifestSigning is the detached signature block of a manifest
type ManifestSigning struct {
	KeyID     string `json:"key_id"`    // "ed25519:<key-id>"
	Signature string `json:"signature"` // base64
}

// EvidenceManifest describes the files of an evidence bundle. Signing is
// nil when no key pair is configured or signing failed.
type EvidenceManifest struct {
	Created   time.Time         `json:"created"`
	HashAlg   string            `json:"hash_alg"`
	RulesetID string            `json:"ruleset_id"`
	Files     []FileDigestEntry `json:"files"`
	Signing   *ManifestSigning  `json:"signing,omitempty"`
}

// IsSigned reports whether the manifest carries a signature block
func (m *EvidenceManifest) IsSigned() bool {
	return m.Signing != nil
}

// CachedEvidence is the token cache entry for one bundle
type CachedEvidence struct {
	Archive   []byte
	Manifest  EvidenceManifest
	ExpiresAt time.Time
}

// EvidenceRef is returned to callers once a bundle is registered
type EvidenceRef struct {
	RunID       string           `json:"run_id"`
	Token       string           `json:"token"`
	VerifyURL   string           `json:"verify_url"`
	DownloadURL string           `json:"download_url"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Manifest    EvidenceManifest `json:"manifest"`
}

// SignatureStatus is the outcome of manifest signature verification
type SignatureStatus string

const (
	SignatureValid    SignatureStatus = "valid"
	SignatureInvalid  SignatureStatus = "invalid"
	SignatureUnsigned SignatureStatus = "unsigned"
)

// FileCheck is the digest comparison for one manifest entry
type FileCheck struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Match    bool   `json:"match"`
}

// VerificationReport is the result of re-checking a manifest against file bytes
type VerificationReport struct {
	DigestsOK bool            `json:"digests_ok"`
	Files     []FileCheck     `json:"files"`
	Signature SignatureStatus `json:"signature"`
}
