package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	Register()
	SigningFailuresTotal.Inc()
	EvidenceLookupsTotal.WithLabelValues("hit").Inc()

	e := echo.New()
	e.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dnfbp_signing_failures_total")
	assert.Contains(t, rec.Body.String(), `dnfbp_evidence_lookups_total{result="hit"}`)
}
