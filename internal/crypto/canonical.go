package crypto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/gowebpki/jcs"
)

// canonicalManifest is the only manifest shape that is ever signed. JCS
// orders keys lexicographically, so the byte layout is
// {"created":...,"files":[{"bytes":..,"name":..,"sha256":..}],"ruleset_id":...}.
// Changing it invalidates every previously issued signature.
type canonicalManifest struct {
	Created   string                   `json:"created"`
	Files     []domain.FileDigestEntry `json:"files"`
	RulesetID string                   `json:"ruleset_id"`
}

// CanonicalManifestBytes returns the RFC 8785 serialization of the signed
// manifest fields
func CanonicalManifestBytes(m *domain.EvidenceManifest) ([]byte, error) {
	files := m.Files
	if files == nil {
		files = []domain.FileDigestEntry{}
	}
	raw, err := json.Marshal(canonicalManifest{
		Created:   m.Created.UTC().Format(time.RFC3339),
		Files:     files,
		RulesetID: m.RulesetID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canonical manifest: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize manifest: %w", err)
	}
	return out, nil
}
