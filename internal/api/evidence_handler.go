package api

import (
	"fmt"
	"net/http"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/service"
	"github.com/labstack/echo/v4"
)

// linkExpired is the only answer for unknown and expired tokens alike
var linkExpired = map[string]string{"error": "link expired"}

// EvidenceHandler serves token links. The token is the credential, so
// these routes sit outside JWT auth.
type EvidenceHandler struct {
	riskService *service.RiskService
}

func NewEvidenceHandler(riskService *service.RiskService) *EvidenceHandler {
	return &EvidenceHandler{
		riskService: riskService,
	}
}

// Verify handles GET /evidence/:token/verify
func (h *EvidenceHandler) Verify(c echo.Context) error {
	result, found, err := h.riskService.VerifyEvidence(c.Param("token"), requester(c))
	if !found {
		return c.JSON(http.StatusNotFound, linkExpired)
	}
	if err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to verify evidence"})
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, result)
}

// Download handles GET /evidence/:token/download
func (h *EvidenceHandler) Download(c echo.Context) error {
	entry, found := h.riskService.LookupEvidence(c.Param("token"), domain.AccessTypeDownload, requester(c))
	if !found {
		return c.JSON(http.StatusNotFound, linkExpired)
	}

	filename := fmt.Sprintf("evidence-%s-%s.zip", entry.Manifest.RulesetID, entry.Manifest.Created.UTC().Format("20060102T150405Z"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "application/zip", entry.Archive)
}

// RegisterRoutes registers the link routes
func (h *EvidenceHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:token/verify", h.Verify)
	g.GET("/:token/download", h.Download)
}

func requester(c echo.Context) service.Requester {
	return service.Requester{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
