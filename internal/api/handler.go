// Package api exposes the analyst-facing HTTP surface over the engine.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/banking/aml-engine/internal/alert"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/banking/aml-engine/internal/evidence"
	"github.com/banking/aml-engine/internal/pipeline"
	"github.com/banking/aml-engine/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AlertSearcher answers full-text alert queries. Optional; when nil the
// search endpoint reports the capability as unavailable.
type AlertSearcher interface {
	SearchAlerts(ctx context.Context, query string, from, size int) (*domain.AlertPage, error)
}

type Handler struct {
	pipeline *pipeline.Pipeline
	evidence *evidence.Engine
	alerts   *alert.Service
	store    store.Store
	search   AlertSearcher
}

func NewHandler(p *pipeline.Pipeline, ev *evidence.Engine, alerts *alert.Service, st store.Store, search AlertSearcher) *Handler {
	return &Handler{
		pipeline: p,
		evidence: ev,
		alerts:   alerts,
		store:    st,
		search:   search,
	}
}

// IngestTransaction handles POST /transactions
func (h *Handler) IngestTransaction(c echo.Context) error {
	var tx domain.Transaction
	if err := c.Bind(&tx); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed transaction"})
	}

	result, err := h.pipeline.Process(c.Request().Context(), &tx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process transaction"})
	}

	return c.JSON(http.StatusCreated, result)
}

// GetEvidence handles GET /accounts/:account_id/evidence
func (h *Handler) GetEvidence(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing account_id"})
	}

	ev, err := h.store.GetEvidence(c.Request().Context(), accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to retrieve evidence"})
	}
	if ev == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "account has not been evaluated"})
	}

	return c.JSON(http.StatusOK, ev)
}

// GetHighRiskAccounts handles GET /accounts/high-risk
func (h *Handler) GetHighRiskAccounts(c echo.Context) error {
	accounts, err := h.evidence.HighRiskAccounts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to retrieve high-risk accounts"})
	}
	return c.JSON(http.StatusOK, accounts)
}

// ListAlerts handles GET /alerts
func (h *Handler) ListAlerts(c echo.Context) error {
	alerts, err := h.store.ListAlerts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to retrieve alerts"})
	}

	if status := c.QueryParam("status"); status != "" {
		filtered := alerts[:0]
		for _, a := range alerts {
			if string(a.Status) == status {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}
	return c.JSON(http.StatusOK, alerts)
}

// SearchAlerts handles GET /alerts/search
func (h *Handler) SearchAlerts(c echo.Context) error {
	if h.search == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "alert search is not available"})
	}
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing query parameter 'q'"})
	}

	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size == 0 {
		size = 20
	}

	page, err := h.search.SearchAlerts(c.Request().Context(), query, from, size)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "search failed"})
	}
	return c.JSON(http.StatusOK, page)
}

type alertActionRequest struct {
	Comments string `json:"comments"`
}

// CloseAlert handles POST /alerts/:alert_id/close
func (h *Handler) CloseAlert(c echo.Context) error {
	var req alertActionRequest
	_ = c.Bind(&req) // Comments are optional

	a, err := h.alerts.Close(c.Request().Context(), c.Param("alert_id"), analystName(c), req.Comments)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, a)
}

// FileSAR handles POST /alerts/:alert_id/sar
func (h *Handler) FileSAR(c echo.Context) error {
	a, err := h.alerts.MarkSARFiled(c.Request().Context(), c.Param("alert_id"), analystName(c))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, a)
}

// RunAnalysis handles POST /analysis/run
func (h *Handler) RunAnalysis(c echo.Context) error {
	report, err := h.pipeline.FullAnalysis(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "analysis failed"})
	}
	return c.JSON(http.StatusOK, report)
}

// GetWatchlist handles GET /watchlist
func (h *Handler) GetWatchlist(c echo.Context) error {
	entries, err := h.store.ListWatchlist(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to retrieve watchlist"})
	}
	return c.JSON(http.StatusOK, map[string][]string{"accounts": entries})
}

type watchlistRequest struct {
	AccountID string `json:"account_id"`
}

// AddToWatchlist handles POST /watchlist
func (h *Handler) AddToWatchlist(c echo.Context) error {
	var req watchlistRequest
	if err := c.Bind(&req); err != nil || req.AccountID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing account_id"})
	}
	if err := h.store.AddWatchlistEntry(c.Request().Context(), req.AccountID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update watchlist"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"account_id": req.AccountID})
}

// RegisterRoutes registers the API routes
func (h *Handler) RegisterRoutes(e *echo.Group) {
	e.POST("/transactions", h.IngestTransaction)
	e.GET("/accounts/high-risk", h.GetHighRiskAccounts)
	e.GET("/accounts/:account_id/evidence", h.GetEvidence)
	e.GET("/alerts", h.ListAlerts)
	e.GET("/alerts/search", h.SearchAlerts)
	e.POST("/alerts/:alert_id/close", h.CloseAlert)
	e.POST("/alerts/:alert_id/sar", h.FileSAR)
	e.POST("/analysis/run", h.RunAnalysis)
	e.GET("/watchlist", h.GetWatchlist)
	e.POST("/watchlist", h.AddToWatchlist)
}

// analystName extracts the caller identity from the JWT subject claim,
// falling back to "analyst" when the API runs without authentication.
func analystName(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return "analyst"
	}
	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return "analyst"
	}
	if sub, ok := (*claims)["sub"].(string); ok && sub != "" {
		return sub
	}
	return "analyst"
}
