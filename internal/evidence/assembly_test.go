package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/banking/dnfbp-risk/internal/archive"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/scoring"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenArchiver struct{}

func (brokenArchiver) Pack([]domain.NamedBlob) ([]byte, error) {
	return nil, errors.New("disk full")
}

func assemblyFixture() AssemblyInput {
	lookback := domain.LookbackWindow{
		Start: domain.NewDate(2025, time.May, 1),
		End:   domain.NewDate(2025, time.October, 31),
	}
	clients := []domain.ClientProfile{
		{ClientID: "C-001", PEP: true, ResidencyCountry: "AU"},
	}
	transactions := []domain.TransactionRecord{
		{
			ClientID:  "C-001",
			Date:      domain.NewDate(2025, time.June, 2),
			Direction: domain.DirectionIn,
			Method:    "cash",
			Currency:  "AUD",
			Amount:    decimal.RequireFromString("9500"),
		},
	}
	ruleset, _ := scoring.Lookup(scoring.DefaultRulesetID)
	return AssemblyInput{
		Clients:      clients,
		Transactions: transactions,
		Scoring:      ruleset.Score(clients, transactions, lookback),
		Report:       []byte("<html><body>report</body></html>"),
	}
}

func TestAssembler_RoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	clock := newClock()
	cache := NewTokenCache(WithClock(clock.Now))
	asm := NewAssembler(NewManifestBuilder(signer, nil), archive.NewZipArchiver(time.Time{}), cache, "https://evidence.example.com/", 15*time.Minute, nil)

	out, err := asm.Assemble(context.Background(), assemblyFixture())
	require.NoError(t, err)

	ref := out.Ref
	require.NotEmpty(t, ref.Token)
	assert.Equal(t, "https://evidence.example.com/evidence/"+ref.Token+"/verify", ref.VerifyURL)
	assert.Equal(t, "https://evidence.example.com/evidence/"+ref.Token+"/download", ref.DownloadURL)
	assert.Equal(t, clock.Now().Add(15*time.Minute), ref.ExpiresAt)
	assert.True(t, ref.Manifest.IsSigned())

	names := make([]string, 0, len(ref.Manifest.Files))
	for _, f := range ref.Manifest.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{FileClients, FileTransactions, FileScores, FileCases, FileReport}, names)

	cached, ok := cache.Get(ref.Token)
	require.True(t, ok)
	assert.Equal(t, out.Archive, cached.Archive)
	assert.Equal(t, ref.Manifest, cached.Manifest)

	files, err := archive.Unpack(out.Archive)
	require.NoError(t, err)
	require.Len(t, files, 6)
	assert.Equal(t, FileManifest, files[5].Name)
	assert.Equal(t, out.Manifest, files[5].Data)

	var stored domain.EvidenceManifest
	require.NoError(t, json.Unmarshal(files[5].Data, &stored))
	report := VerifyManifest(stored, files, signer.PublicKey())
	assert.True(t, report.DigestsOK)
	assert.Equal(t, domain.SignatureValid, report.Signature)

	var cases []domain.RiskCase
	require.NoError(t, json.Unmarshal(files[3].Data, &cases))
	assert.Empty(t, cases)
	assert.True(t, strings.HasPrefix(string(files[0].Data), "["))
}

func TestAssembler_TokensAreUnique(t *testing.T) {
	cache := NewTokenCache()
	asm := NewAssembler(NewManifestBuilder(nil, nil), archive.NewZipArchiver(time.Time{}), cache, "http://localhost:8080", time.Hour, nil)

	first, err := asm.Assemble(context.Background(), assemblyFixture())
	require.NoError(t, err)
	second, err := asm.Assemble(context.Background(), assemblyFixture())
	require.NoError(t, err)

	assert.NotEqual(t, first.Ref.Token, second.Ref.Token)
	assert.Equal(t, 2, cache.Len())
	assert.False(t, first.Ref.Manifest.IsSigned())
}

func TestAssembler_Failures(t *testing.T) {
	t.Run("archiver", func(t *testing.T) {
		cache := NewTokenCache()
		asm := NewAssembler(NewManifestBuilder(nil, nil), brokenArchiver{}, cache, "http://localhost", time.Hour, nil)
		_, err := asm.Assemble(context.Background(), assemblyFixture())
		assert.ErrorContains(t, err, "disk full")
		assert.Zero(t, cache.Len())
	})

	t.Run("token source", func(t *testing.T) {
		asm := NewAssembler(NewManifestBuilder(nil, nil), archive.NewZipArchiver(time.Time{}), NewTokenCache(), "http://localhost", time.Hour, nil)
		asm.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }
		_, err := asm.Assemble(context.Background(), assemblyFixture())
		assert.ErrorContains(t, err, "entropy exhausted")
	})

	t.Run("colliding token", func(t *testing.T) {
		cache := NewTokenCache()
		asm := NewAssembler(NewManifestBuilder(nil, nil), archive.NewZipArchiver(time.Time{}), cache, "http://localhost", time.Hour, nil)
		asm.newToken = func() (string, error) { return "fixed", nil }
		_, err := asm.Assemble(context.Background(), assemblyFixture())
		require.NoError(t, err)
		_, err = asm.Assemble(context.Background(), assemblyFixture())
		assert.ErrorIs(t, err, ErrTokenExists)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		asm := NewAssembler(NewManifestBuilder(nil, nil), archive.NewZipArchiver(time.Time{}), NewTokenCache(), "http://localhost", time.Hour, nil)
		_, err := asm.Assemble(ctx, assemblyFixture())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
