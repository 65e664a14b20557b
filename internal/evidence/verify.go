package evidence

import (
	"crypto/ed25519"

	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/domain"
)

// VerifyManifest recomputes each listed file's digest from files and checks
// the manifest signature against pub. Files not listed in the manifest (such
// as manifest.json itself) are ignored. An unsigned manifest reports
// SignatureUnsigned, never SignatureInvalid.
func VerifyManifest(m domain.EvidenceManifest, files []domain.NamedBlob, pub ed25519.PublicKey) domain.VerificationReport {
	byName := make(map[string][]byte, len(files))
	for _, f := range files {
		byName[f.Name] = f.Data
	}

	report := domain.VerificationReport{
		DigestsOK: true,
		Files:     make([]domain.FileCheck, 0, len(m.Files)),
	}
	for _, entry := range m.Files {
		check := domain.FileCheck{Name: entry.Name, Expected: entry.SHA256}
		if data, ok := byName[entry.Name]; ok {
			check.Actual = crypto.SHA256Hex(data)
			check.Match = check.Actual == entry.SHA256 && len(data) == entry.Bytes
		}
		if !check.Match {
			report.DigestsOK = false
		}
		report.Files = append(report.Files, check)
	}

	report.Signature = verifySignature(m, pub)
	return report
}

func verifySignature(m domain.EvidenceManifest, pub ed25519.PublicKey) domain.SignatureStatus {
	if m.Signing == nil {
		return domain.SignatureUnsigned
	}
	if pub == nil {
		return domain.SignatureInvalid
	}
	payload, err := crypto.CanonicalManifestBytes(&m)
	if err != nil {
		return domain.SignatureInvalid
	}
	ok, err := crypto.VerifySignature(pub, payload, m.Signing.Signature)
	if err != nil || !ok {
		return domain.SignatureInvalid
	}
	return domain.SignatureValid
}
