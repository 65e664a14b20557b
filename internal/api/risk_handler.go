package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type RiskHandler struct {
	riskService *service.RiskService
}

func NewRiskHandler(riskService *service.RiskService) *RiskHandler {
	return &RiskHandler{
		riskService: riskService,
	}
}

// Score handles POST /risk/score
func (h *RiskHandler) Score(c echo.Context) error {
	var req domain.ScoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	output, err := h.riskService.Score(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err, "scoring failed")
	}

	return c.JSON(http.StatusOK, output)
}

// GenerateEvidence handles POST /risk/evidence
func (h *RiskHandler) GenerateEvidence(c echo.Context) error {
	var req domain.ScoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ref, err := h.riskService.GenerateEvidence(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err, "failed to generate evidence")
	}

	return c.JSON(http.StatusCreated, ref)
}

// SearchScores handles GET /risk/search
func (h *RiskHandler) SearchScores(c echo.Context) error {
	from, size := pagination(c, "from", "size")

	page, err := h.riskService.SearchScores(c.Request().Context(), c.QueryParam("q"), from, size)
	if err != nil {
		return errorResponse(c, err, "search failed")
	}

	return c.JSON(http.StatusOK, page)
}

// ListRuns handles GET /risk/runs
func (h *RiskHandler) ListRuns(c echo.Context) error {
	offset, limit := pagination(c, "offset", "limit")
	filter := domain.EvidenceRunFilter{
		Limit:  limit,
		Offset: offset,
	}

	if v := c.QueryParam("run_id"); v != "" {
		runID, err := uuid.Parse(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid run_id"})
		}
		filter.RunID = &runID
	}
	if v := c.QueryParam("request_id"); v != "" {
		filter.RequestID = &v
	}
	if v := c.QueryParam("ruleset_id"); v != "" {
		filter.RulesetID = &v
	}

	page, err := h.riskService.ListRuns(c.Request().Context(), filter)
	if err != nil {
		return errorResponse(c, err, "failed to list runs")
	}

	return c.JSON(http.StatusOK, page)
}

// RegisterRoutes registers the API routes
func (h *RiskHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/score", h.Score)
	g.POST("/evidence", h.GenerateEvidence)
	g.GET("/search", h.SearchScores)
	g.GET("/runs", h.ListRuns)
}

func pagination(c echo.Context, offsetParam, sizeParam string) (int, int) {
	offset, _ := strconv.Atoi(c.QueryParam(offsetParam))
	size, _ := strconv.Atoi(c.QueryParam(sizeParam))
	if offset < 0 {
		offset = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return offset, size
}

func errorResponse(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSearchDisabled), errors.Is(err, service.ErrLedgerDisabled):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}
