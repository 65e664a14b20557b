package evidence

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testMeta = domain.RulesetMetadata{
	RulesetID: "dnfbp-2025.11",
	Lookback: domain.LookbackWindow{
		Start: domain.NewDate(2025, time.May, 1),
		End:   domain.NewDate(2025, time.October, 31),
	},
	CorridorCountries: []string{"AE", "CN", "HK", "IN", "IR", "RU"},
	Banding:           domain.BandThresholds{High: 30, Medium: 15},
}

var testFiles = []domain.NamedBlob{
	{Name: "scores.json", Data: []byte(`{"scores":[]}`)},
	{Name: "clients.json", Data: []byte(`[]`)},
	{Name: "report.html", Data: []byte("<html>report</html>")},
}

func newTestSigner(t *testing.T) *crypto.Ed25519Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return crypto.NewEd25519SignerFromKey("evidence-test", priv)
}

type failingSigner struct{ panics bool }

func (f failingSigner) Sign([]byte) (string, error) {
	if f.panics {
		panic("hsm unavailable")
	}
	return "", errors.New("hsm unavailable")
}
func (f failingSigner) KeyID() string                { return "ed25519:broken" }
func (f failingSigner) PublicKey() ed25519.PublicKey { return nil }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestManifestBuilder_DigestsInInsertionOrder(t *testing.T) {
	b := NewManifestBuilder(nil, zap.NewNop())
	b.now = fixedClock(time.Date(2025, 11, 3, 9, 30, 15, 999, time.FixedZone("AEDT", 11*3600)))

	m := b.Build(testFiles, testMeta)

	assert.Equal(t, "SHA-256", m.HashAlg)
	assert.Equal(t, "dnfbp-2025.11", m.RulesetID)
	assert.Equal(t, time.Date(2025, 11, 2, 22, 30, 15, 0, time.UTC), m.Created)
	require.Len(t, m.Files, len(testFiles))
	for i, f := range testFiles {
		sum := sha256.Sum256(f.Data)
		assert.Equal(t, f.Name, m.Files[i].Name)
		assert.Equal(t, len(f.Data), m.Files[i].Bytes)
		assert.Equal(t, hex.EncodeToString(sum[:]), m.Files[i].SHA256)
	}
	assert.Nil(t, m.Signing)
	assert.False(t, m.IsSigned())
}

func TestManifestBuilder_Signed(t *testing.T) {
	signer := newTestSigner(t)
	m := NewManifestBuilder(signer, zap.NewNop()).Build(testFiles, testMeta)

	require.NotNil(t, m.Signing)
	assert.Equal(t, "ed25519:evidence-test", m.Signing.KeyID)

	payload, err := crypto.CanonicalManifestBytes(&m)
	require.NoError(t, err)
	ok, err := crypto.VerifySignature(signer.PublicKey(), payload, m.Signing.Signature)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManifestBuilder_SigningFailureFallsBackToUnsigned(t *testing.T) {
	for _, panics := range []bool{false, true} {
		core, logs := observer.New(zap.WarnLevel)
		b := NewManifestBuilder(failingSigner{panics: panics}, zap.New(core))

		var m domain.EvidenceManifest
		require.NotPanics(t, func() { m = b.Build(testFiles, testMeta) })

		assert.Nil(t, m.Signing)
		assert.Len(t, m.Files, len(testFiles))
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "ed25519:broken", logs.All()[0].ContextMap()["key_id"])
	}
}

func TestManifestBuilder_MisconfiguredKeysFallBackToUnsigned(t *testing.T) {
	signer := crypto.NewEd25519Signer("k", "bm90LWEta2V5", "bm90LWEta2V5")
	m := NewManifestBuilder(signer, nil).Build(testFiles, testMeta)
	assert.Nil(t, m.Signing)
}

func TestVerifyManifest(t *testing.T) {
	signer := newTestSigner(t)
	m := NewManifestBuilder(signer, nil).Build(testFiles, testMeta)

	report := VerifyManifest(m, testFiles, signer.PublicKey())
	assert.True(t, report.DigestsOK)
	assert.Equal(t, domain.SignatureValid, report.Signature)
	for _, f := range report.Files {
		assert.True(t, f.Match, f.Name)
	}

	t.Run("altered bytes", func(t *testing.T) {
		altered := append([]domain.NamedBlob(nil), testFiles...)
		altered[2] = domain.NamedBlob{Name: "report.html", Data: []byte("<html>edited</html>")}
		report := VerifyManifest(m, altered, signer.PublicKey())
		assert.False(t, report.DigestsOK)
		assert.False(t, report.Files[2].Match)
		assert.Equal(t, domain.SignatureValid, report.Signature)
	})

	t.Run("missing file", func(t *testing.T) {
		report := VerifyManifest(m, testFiles[:1], signer.PublicKey())
		assert.False(t, report.DigestsOK)
		assert.Empty(t, report.Files[1].Actual)
	})

	t.Run("altered manifest", func(t *testing.T) {
		tampered := m
		tampered.Files = append([]domain.FileDigestEntry(nil), m.Files...)
		tampered.Files[0].SHA256 = crypto.SHA256Hex([]byte("forged"))
		report := VerifyManifest(tampered, testFiles, signer.PublicKey())
		assert.Equal(t, domain.SignatureInvalid, report.Signature)

		moved := m
		moved.Created = m.Created.Add(time.Second)
		assert.Equal(t, domain.SignatureInvalid, VerifyManifest(moved, testFiles, signer.PublicKey()).Signature)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newTestSigner(t)
		assert.Equal(t, domain.SignatureInvalid, VerifyManifest(m, testFiles, other.PublicKey()).Signature)
		assert.Equal(t, domain.SignatureInvalid, VerifyManifest(m, testFiles, nil).Signature)
	})

	t.Run("unsigned is not invalid", func(t *testing.T) {
		unsigned := NewManifestBuilder(nil, nil).Build(testFiles, testMeta)
		report := VerifyManifest(unsigned, testFiles, signer.PublicKey())
		assert.Equal(t, domain.SignatureUnsigned, report.Signature)
		assert.True(t, report.DigestsOK)
	})
}
