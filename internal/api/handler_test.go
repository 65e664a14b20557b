package api

import (
	"archive/zip"
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banking/dnfbp-risk/internal/archive"
	"github.com/banking/dnfbp-risk/internal/crypto"
	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/evidence"
	"github.com/banking/dnfbp-risk/internal/report"
	"github.com/banking/dnfbp-risk/internal/scoring"
	"github.com/banking/dnfbp-risk/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const scoreBody = `{
	"request_id": "req-1",
	"clients": [
		{"client_id": "C-1", "pep_flag": true, "delivery_channel": "online"},
		{"client_id": "C-2", "kyc_last_reviewed_at": "2023-01-15"}
	],
	"transactions": [
		{"client_id": "C-1", "date": "2025-07-01", "direction": "out", "method": "wire", "currency": "AUD", "amount": "25000", "counterparty_country": "HK"},
		{"client_id": "C-1", "date": "2025-07-09", "direction": "out", "method": "wire", "currency": "AUD", "amount": 1200.50, "counterparty_country": "hk"}
	],
	"lookback": {"start": "2025-05-01", "end": "2025-10-31"}
}`

type testServer struct {
	e      *echo.Echo
	clock  *time.Time
	signer *crypto.Ed25519Signer
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer := crypto.NewEd25519SignerFromKey("api-test", priv)

	ruleset, err := scoring.Lookup(scoring.DefaultRulesetID)
	require.NoError(t, err)
	renderer, err := report.NewRenderer()
	require.NoError(t, err)

	now := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	clock := &now
	cache := evidence.NewTokenCache(evidence.WithClock(func() time.Time { return *clock }))
	logger := zap.NewNop()
	assembler := evidence.NewAssembler(
		evidence.NewManifestBuilder(signer, logger),
		archive.NewZipArchiver(time.Time{}),
		cache, "https://risk.example.com", 60*time.Minute, logger,
	)
	svc := service.NewRiskService(ruleset, renderer, assembler, cache, signer.PublicKey(), logger)

	e := NewRouter(cfg, NewRiskHandler(svc), NewEvidenceHandler(svc), logger)
	return &testServer{e: e, clock: clock, signer: signer}
}

func (s *testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestScoreEndpoint(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := srv.do(http.MethodPost, "/risk/score", scoreBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out domain.ScoringOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Scores, 2)

	// PEP 20 + online 3 + corridor 10
	assert.Equal(t, "C-1", out.Scores[0].ClientID)
	assert.Equal(t, 33, out.Scores[0].Score)
	assert.Equal(t, domain.BandHigh, out.Scores[0].Band)
	// stale KYC only
	assert.Equal(t, 5, out.Scores[1].Score)
	assert.Equal(t, domain.BandLow, out.Scores[1].Band)
	assert.Equal(t, "dnfbp-2025.11", out.Meta.RulesetID)
}

func TestScoreEndpoint_BadRequests(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := srv.do(http.MethodPost, "/risk/score", `{"clients": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/risk/score", `{"clients": [], "lookback": {"start": "2025-31-01", "end": "2025-10-31"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/risk/score", `{"clients": [], "transactions": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "lookback")
}

func TestScoreEndpoint_TransactionValidation(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	upper := strings.ReplaceAll(scoreBody, `"direction": "out"`, `"direction": "OUT"`)
	rec := srv.do(http.MethodPost, "/risk/score", upper)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out domain.ScoringOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 33, out.Scores[0].Score)

	outbound := strings.Replace(scoreBody, `"direction": "out"`, `"direction": "outbound"`, 1)
	rec = srv.do(http.MethodPost, "/risk/score", outbound)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "direction")

	negative := strings.Replace(scoreBody, `"amount": "25000"`, `"amount": "-5"`, 1)
	rec = srv.do(http.MethodPost, "/risk/evidence", negative)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "negative amount")
}

func TestEvidenceLifecycle(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rec := srv.do(http.MethodPost, "/risk/evidence", scoreBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ref domain.EvidenceRef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	require.NotEmpty(t, ref.Token)
	assert.Equal(t, "https://risk.example.com/evidence/"+ref.Token+"/verify", ref.VerifyURL)
	assert.True(t, ref.Manifest.IsSigned())

	verifyPath := "/evidence/" + ref.Token + "/verify"
	downloadPath := "/evidence/" + ref.Token + "/download"

	t.Run("verify", func(t *testing.T) {
		rec := srv.do(http.MethodGet, verifyPath, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var result service.VerificationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Verification.DigestsOK)
		assert.Equal(t, domain.SignatureValid, result.Verification.Signature)
		assert.NotEmpty(t, result.PublicKey)
		assert.Len(t, result.Manifest.Files, 5)
	})

	t.Run("download", func(t *testing.T) {
		rec := srv.do(http.MethodGet, downloadPath, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/zip", rec.Header().Get(echo.HeaderContentType))
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment;")

		body := rec.Body.Bytes()
		zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
		require.NoError(t, err)
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"clients.json", "transactions.json", "scores.json", "cases.json", "report.html", "manifest.json"}, names)
	})

	t.Run("expired", func(t *testing.T) {
		*srv.clock = srv.clock.Add(61 * time.Minute)

		for _, path := range []string{verifyPath, downloadPath} {
			rec := srv.do(http.MethodGet, path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"error":"link expired"}`, rec.Body.String())
		}
	})
}

func TestEvidence_UnknownToken(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	rec := srv.do(http.MethodGet, "/evidence/does-not-exist/download", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"link expired"}`, rec.Body.String())
}

func TestOptionalEndpointsUnavailable(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/risk/search?q=band:High", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/risk/runs", "").Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodGet, "/risk/runs?run_id=nope", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	rec := srv.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/metrics", "").Code)
}

func TestJWTProtectsRiskRoutesOnly(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newTestServer(t, RouterConfig{JWTPublicKey: &key.PublicKey, JWTIssuer: "banking-auth-service"})

	sign := func(issuer string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "analyst-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return "Bearer " + signed
	}

	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodPost, "/risk/score", scoreBody).Code)
	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodPost, "/risk/score", scoreBody, "Authorization", sign("someone-else")).Code)

	rec := srv.do(http.MethodPost, "/risk/evidence", scoreBody, "Authorization", sign("banking-auth-service"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ref domain.EvidenceRef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/evidence/"+ref.Token+"/verify", "").Code)
}

func TestRateLimiter(t *testing.T) {
	srv := newTestServer(t, RouterConfig{RequestsPerSecond: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, srv.do(http.MethodGet, "/health", "").Code)
}
