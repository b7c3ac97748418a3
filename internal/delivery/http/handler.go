package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/agentmap/dashboard/internal/usecase"
	"github.com/agentmap/dashboard/internal/version"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "agentmap-dashboard"

// remoteHealthTimeout bounds the upstream probe made by /health.
const remoteHealthTimeout = 2 * time.Second

// statusClientClosedRequest is reported when the caller went away mid-request.
const statusClientClosedRequest = 499

// Handler holds dependencies for HTTP handlers
type Handler struct {
	client       domain.AgentMapClient
	orchestrator *usecase.Orchestrator
	dashboard    *usecase.DashboardService
	log          *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	client domain.AgentMapClient,
	orchestrator *usecase.Orchestrator,
	dashboard *usecase.DashboardService,
	log *zap.Logger,
) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		client:       client,
		orchestrator: orchestrator,
		dashboard:    dashboard,
		log:          log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error to the HTTP status returned to the browser.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrWizardStep):
		return http.StatusConflict
	}

	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		var de *domain.Error
		if errors.As(err, &de) && de.Remote {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	case domain.KindInvalidIdentifier:
		return http.StatusBadRequest
	case domain.KindRemoteRejected:
		var de *domain.Error
		if errors.As(err, &de) && de.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case domain.KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindSuperseded:
		return http.StatusConflict
	case domain.KindCanceled:
		return statusClientClosedRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := string(domain.KindOf(err))
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		kind = "not_found"
	case kind == "":
		kind = "internal"
	}
	_ = c.Error(err)
	c.JSON(statusFor(err), errorResponse{Error: domain.Message(err), Kind: kind})
}

// HealthCheck returns the health status of the service and of the AgentMap API
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version.Version,
	}

	if h.client != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), remoteHealthTimeout)
		defer cancel()

		remote, err := h.client.Health(ctx)
		if err != nil {
			resp["status"] = "degraded"
			resp["remote"] = gin.H{"status": "unavailable", "error": domain.Message(err)}
		} else {
			resp["remote"] = remote
		}
	}

	c.JSON(http.StatusOK, resp)
}

// mseIDParam accepts an MSE id given either as a JSON number or a string.
// Validation is left to domain.ParseMSEID.
type mseIDParam string

func (p *mseIDParam) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = mseIDParam(s)
		return nil
	}
	*p = mseIDParam(data)
	return nil
}

// MatchRequest is the body of the match endpoints.
type MatchRequest struct {
	MSEID mseIDParam `json:"mse_id"`
	TopK  int        `json:"top_k"`
	Lang  string     `json:"lang"`
}

// language resolves the display language from the request body, the lang
// query parameter, then Accept-Language.
func language(c *gin.Context, bodyLang string) usecase.Language {
	switch {
	case bodyLang != "":
		return usecase.SelectLanguage(bodyLang)
	case c.Query("lang") != "":
		return usecase.SelectLanguage(c.Query("lang"))
	default:
		return usecase.SelectLanguage(c.GetHeader("Accept-Language"))
	}
}

func bindMatchRequest(c *gin.Context) (MatchRequest, error) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, domain.NewError(domain.KindInvalidInput, "invalid request body", err)
	}
	if req.TopK < 0 || req.TopK > 50 {
		return req, domain.Errorf(domain.KindInvalidInput, "top_k must be between 1 and 50")
	}
	return req, nil
}

// Match runs one classify-then-match orchestration and returns the rendered view
func (h *Handler) Match(c *gin.Context) {
	req, err := bindMatchRequest(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp, err := h.orchestrator.RunRaw(c.Request.Context(), string(req.MSEID), req.TopK)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, usecase.Render(&domain.DashboardState{Result: resp}, language(c, req.Lang)))
}

// CreateSession allocates a new dashboard session id
func (h *Handler) CreateSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"session_id": usecase.NewSessionID()})
}

// SessionMatch runs an orchestration on behalf of a dashboard session
func (h *Handler) SessionMatch(c *gin.Context) {
	req, err := bindMatchRequest(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	state, err := h.dashboard.StartMatch(c.Request.Context(), c.Param("session"), string(req.MSEID), req.TopK)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, usecase.Render(state, language(c, req.Lang)))
}

// SessionView renders a dashboard session
func (h *Handler) SessionView(c *gin.Context) {
	view, err := h.dashboard.View(c.Request.Context(), c.Param("session"), language(c, ""))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteSession cancels in-flight work and drops a dashboard session
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.dashboard.Reset(c.Request.Context(), c.Param("session")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterMSE forwards a registration to the AgentMap API without local field checks
func (h *Handler) RegisterMSE(c *gin.Context) {
	var reg domain.MSERegistration
	if err := c.ShouldBindJSON(&reg); err != nil {
		h.respondError(c, domain.NewError(domain.KindInvalidInput, "invalid request body", err))
		return
	}

	mse, err := h.client.RegisterMSE(c.Request.Context(), reg)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mse)
}

// ListMSEs returns the review queue
func (h *Handler) ListMSEs(c *gin.Context) {
	query := domain.ListMSEsQuery{
		State: c.Query("state"),
		Limit: domain.DefaultReviewLimit,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			h.respondError(c, domain.Errorf(domain.KindInvalidInput, "limit must be between 1 and 100"))
			return
		}
		query.Limit = limit
	}
	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			h.respondError(c, domain.Errorf(domain.KindInvalidInput, "skip must be a non-negative integer"))
			return
		}
		query.Skip = skip
	}

	mses, err := h.client.ListMSEs(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": mses,
		"rows":  usecase.PresentMSEs(mses),
		"count": len(mses),
	})
}

// GetMSE returns a single registrant
func (h *Handler) GetMSE(c *gin.Context) {
	id, err := domain.ParseMSEID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	mse, err := h.client.GetMSE(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mse)
}

// RegistrationOptions returns the option lists of the registration form
func (h *Handler) RegistrationOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"states":    usecase.States,
		"languages": usecase.RegistrationLanguages,
	})
}

// Audit is not implemented yet
func (h *Handler) Audit(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, errorResponse{
		Error: "audit log is not implemented",
		Kind:  "not_implemented",
	})
}
