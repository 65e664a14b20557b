// Package evidence builds, verifies and brokers access to evidence bundles.
package evidence

import (
	"time"

	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/metrics"
	"go.uber.org/zap"
)

// ManifestBuilder digests evidence files and optionally signs the result.
// It holds no mutable state and is safe for concurrent use.
type ManifestBuilder struct {
	signer crypto.ManifestSigner // nil when signing is not configured
	now    func() time.Time
	logger *zap.Logger
}

// NewManifestBuilder creates a builder. Pass a nil signer to emit unsigned manifests.
func NewManifestBuilder(signer crypto.ManifestSigner, logger *zap.Logger) *ManifestBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestBuilder{
		signer: signer,
		now:    time.Now,
		logger: logger,
	}
}

// Build returns the manifest for files in the given order. Signing failures
// never fail the build; the manifest is returned unsigned and the failure
// is logged and counted.
func (b *ManifestBuilder) Build(files []domain.NamedBlob, meta domain.RulesetMetadata) domain.EvidenceManifest {
	entries := make([]domain.FileDigestEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, domain.FileDigestEntry{
			Name:   f.Name,
			Bytes:  len(f.Data),
			SHA256: crypto.SHA256Hex(f.Data),
		})
	}

	manifest := domain.EvidenceManifest{
		Created:   b.now().UTC().Truncate(time.Second),
		HashAlg:   domain.HashAlgSHA256,
		RulesetID: meta.RulesetID,
		Files:     entries,
	}

	if b.signer == nil {
		metrics.ManifestsBuiltTotal.WithLabelValues("unsigned").Inc()
		return manifest
	}

	signing, err := b.sign(&manifest)
	if err != nil {
		b.logger.Warn("Evidence manifest signing failed, emitting unsigned manifest",
			zap.String("key_id", b.signer.KeyID()),
			zap.String("ruleset_id", manifest.RulesetID),
			zap.Error(err),
		)
		metrics.SigningFailuresTotal.Inc()
		metrics.ManifestsBuiltTotal.WithLabelValues("failed").Inc()
		return manifest
	}

	manifest.Signing = signing
	metrics.ManifestsBuiltTotal.WithLabelValues("signed").Inc()
	return manifest
}

func (b *ManifestBuilder) sign(m *domain.EvidenceManifest) (signing *domain.ManifestSigning, err error) {
	defer func() {
		if r := recover(); r != nil {
			signing, err = nil, errPanic(r)
		}
	}()

	payload, err := crypto.CanonicalManifestBytes(m)
	if err != nil {
		return nil, err
	}
	sig, err := b.signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	return &domain.ManifestSigning{KeyID: b.signer.KeyID(), Signature: sig}, nil
}
