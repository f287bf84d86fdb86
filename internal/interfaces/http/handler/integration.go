package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// SyncRunner triggers sync work on demand.
type SyncRunner interface {
	SyncIntegration(ctx context.Context, id uuid.UUID, kind integration.SyncKind) (*integration.SyncLog, error)
	ForceRefreshToken(ctx context.Context, credentialID uuid.UUID) error
}

// IntegrationHandler serves the operator API for credentials, integrations
// and their sync history.
type IntegrationHandler struct {
	BaseHandler
	credentials  integration.CredentialRepository
	integrations integration.IntegrationRepository
	syncLogs     integration.SyncLogRepository
	runner       SyncRunner
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(
	credentials integration.CredentialRepository,
	integrations integration.IntegrationRepository,
	syncLogs integration.SyncLogRepository,
	runner SyncRunner,
) *IntegrationHandler {
	return &IntegrationHandler{
		credentials:  credentials,
		integrations: integrations,
		syncLogs:     syncLogs,
		runner:       runner,
	}
}

// CreateCredential handles POST /api/v1/credentials
func (h *IntegrationHandler) CreateCredential(c *gin.Context) {
	var req CreateCredentialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	env := integration.CredentialEnvironment(req.Environment)
	if req.Environment == "" {
		env = integration.CredentialEnvProduction
	}

	cred, err := integration.NewCredential(
		integration.Provider(strings.ToUpper(req.Provider)),
		req.Name,
		req.ClientID,
		req.ClientSecret,
		env,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// One active credential per (provider, name); the partial unique index
	// turns a second insert into ErrDuplicateCredential.
	if err := h.credentials.Save(c.Request.Context(), cred); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toCredentialResponse(cred))
}

// GetCredential handles GET /api/v1/credentials/:id
func (h *IntegrationHandler) GetCredential(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid credential id")
		return
	}

	cred, err := h.credentials.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toCredentialResponse(cred))
}

// RefreshCredential handles POST /api/v1/credentials/:id/refresh. It forces
// a token refresh regardless of the expiry buffer, for operator recovery
// after re-authorization.
func (h *IntegrationHandler) RefreshCredential(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid credential id")
		return
	}

	if err := h.runner.ForceRefreshToken(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	cred, err := h.credentials.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toCredentialResponse(cred))
}

// CreateIntegration handles POST /api/v1/integrations
func (h *IntegrationHandler) CreateIntegration(c *gin.Context) {
	var req CreateIntegrationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	credentialID, err := uuid.Parse(req.CredentialID)
	if err != nil {
		h.BadRequest(c, "invalid credential id")
		return
	}

	// The credential must exist and belong to the same provider.
	cred, err := h.credentials.FindByID(c.Request.Context(), credentialID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	provider := integration.Provider(strings.ToUpper(req.Provider))
	if cred.Provider != provider {
		h.BadRequest(c, "credential belongs to a different provider")
		return
	}

	kind := integration.IntegrationKind(strings.ToLower(req.Kind))
	if !kind.IsValid() {
		h.BadRequest(c, "invalid integration kind")
		return
	}

	categories := make([]integration.DataCategory, 0, len(req.Categories))
	for _, cat := range req.Categories {
		categories = append(categories, integration.DataCategory(cat))
	}

	integ, err := integration.NewIntegration(
		credentialID,
		provider,
		kind,
		req.Name,
		time.Duration(req.SyncFrequencySeconds)*time.Second,
		categories,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	for key, value := range req.Config {
		integ.Config[key] = value
	}

	if err := h.integrations.Save(c.Request.Context(), integ); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toIntegrationResponse(integ))
}

// ListIntegrations handles GET /api/v1/integrations with optional provider,
// status and active filters.
func (h *IntegrationHandler) ListIntegrations(c *gin.Context) {
	var filter integration.IntegrationFilter

	if raw := c.Query("provider"); raw != "" {
		provider := integration.Provider(strings.ToUpper(raw))
		if !provider.IsValid() {
			h.BadRequest(c, "invalid provider filter")
			return
		}
		filter.Provider = &provider
	}
	if raw := c.Query("status"); raw != "" {
		status := integration.IntegrationStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			h.BadRequest(c, "invalid status filter")
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "invalid active filter")
			return
		}
		filter.IsActive = &active
	}

	integrations, err := h.integrations.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toIntegrationResponses(integrations))
}

// GetIntegration handles GET /api/v1/integrations/:id
func (h *IntegrationHandler) GetIntegration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid integration id")
		return
	}

	integ, err := h.integrations.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toIntegrationResponse(integ))
}

// ActivateIntegration handles POST /api/v1/integrations/:id/activate
func (h *IntegrationHandler) ActivateIntegration(c *gin.Context) {
	h.updateIntegration(c, func(integ *integration.Integration) {
		integ.Activate()
	})
}

// DeactivateIntegration handles POST /api/v1/integrations/:id/deactivate
func (h *IntegrationHandler) DeactivateIntegration(c *gin.Context) {
	h.updateIntegration(c, func(integ *integration.Integration) {
		integ.Deactivate()
	})
}

func (h *IntegrationHandler) updateIntegration(c *gin.Context, mutate func(*integration.Integration)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid integration id")
		return
	}

	integ, err := h.integrations.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	mutate(integ)

	if err := h.integrations.Save(c.Request.Context(), integ); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toIntegrationResponse(integ))
}

// TriggerSync handles POST /api/v1/integrations/:id/sync. The sync runs
// inline; the response carries the finalized attempt log.
func (h *IntegrationHandler) TriggerSync(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid integration id")
		return
	}

	kind := integration.SyncKindIncremental
	var req TriggerSyncRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
		if req.Kind != "" {
			kind = integration.SyncKind(req.Kind)
		}
	}

	log, err := h.runner.SyncIntegration(c.Request.Context(), id, kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSyncLogResponse(log))
}

// ListSyncLogs handles GET /api/v1/integrations/:id/logs
func (h *IntegrationHandler) ListSyncLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid integration id")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			h.BadRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	logs, err := h.syncLogs.FindRecent(c.Request.Context(), id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]SyncLogResponse, 0, len(logs))
	for _, log := range logs {
		responses = append(responses, toSyncLogResponse(log))
	}
	h.Success(c, responses)
}
