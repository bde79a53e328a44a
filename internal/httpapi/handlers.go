package httpapi

import (
	"errors"
	"net/http"
	"time"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/auth"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/numbers"
	"campaign-dialer/internal/rbac"
	"campaign-dialer/internal/reporting"
	"campaign-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Store     campaigns.Store
	Numbers   numbers.Store
	Reporting *reporting.Service
	Audit     *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Campaign control ---

// controlTransitions lists the lifecycle moves the control API may
// request. The store enforces each transition's allowed starting
// statuses, so a stale button press cannot revive a finished campaign.
var controlTransitions = map[string]struct {
	from    []campaigns.CampaignStatus
	to      campaigns.CampaignStatus
	message string
}{
	"start": {
		from:    []campaigns.CampaignStatus{campaigns.CampaignStatusDraft, campaigns.CampaignStatusScheduled, campaigns.CampaignStatusPaused},
		to:      campaigns.CampaignStatusRunning,
		message: "campaign started",
	},
	"pause": {
		from:    []campaigns.CampaignStatus{campaigns.CampaignStatusRunning},
		to:      campaigns.CampaignStatusPaused,
		message: "campaign paused",
	},
	"resume": {
		from:    []campaigns.CampaignStatus{campaigns.CampaignStatusPaused},
		to:      campaigns.CampaignStatusRunning,
		message: "campaign resumed",
	},
	"cancel": {
		from: []campaigns.CampaignStatus{
			campaigns.CampaignStatusDraft, campaigns.CampaignStatusScheduled,
			campaigns.CampaignStatusRunning, campaigns.CampaignStatusPaused,
		},
		to:      campaigns.CampaignStatusCancelled,
		message: "campaign cancelled",
	},
}

// ControlCampaign handles POST /campaigns/:campaign_id/:action for
// start, pause, resume and cancel.
func (h Handlers) ControlCampaign(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}
	action := c.Param("action")
	tr, ok := controlTransitions[action]
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	err = h.Store.SetCampaignStatus(c.Request.Context(), workspaceID, campaignID, tr.from, tr.to)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	case errors.Is(err, campaigns.ErrBadTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "campaign is not in a state that allows " + action})
		return
	case err != nil:
		log.Error("campaign control failed", "campaign_id", campaignID, "action", action, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		if aerr := h.Audit.LogAdminAction(c.Request.Context(), workspaceID, userID, role, c.ClientIP(), tr.message, campaignID, ""); aerr != nil {
			log.Warn("audit append failed", "err", aerr)
		}
	}

	c.JSON(http.StatusOK, gin.H{"campaign_id": campaignID, "status": string(tr.to)})
}

// GetCampaign returns one campaign with its aggregate counters.
func (h Handlers) GetCampaign(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	camp, err := h.Store.GetCampaign(c.Request.Context(), workspaceID, campaignID)
	if errors.Is(err, campaigns.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, camp)
}

// ListCampaignCalls returns the call records of one campaign.
func (h Handlers) ListCampaignCalls(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}
	rows, err := h.Store.ListCalls(c.Request.Context(), workspaceID, campaignID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

// --- Reporting ---

func (h Handlers) CampaignOutcomeSummary(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.OutcomeSummary(c.Request.Context(), reporting.OutcomeSummaryRequest{
		WorkspaceID: workspaceID,
		CampaignID:  c.Param("campaign_id"),
		Range:       rng,
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CampaignConversionMetrics(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.ConversionMetrics(c.Request.Context(), reporting.ConversionMetricsRequest{
		WorkspaceID: workspaceID,
		CampaignID:  c.Param("campaign_id"),
		Range:       rng,
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseRange reads from/to query params (RFC 3339). Missing values
// default to the trailing 24 hours.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.Add(-24 * time.Hour), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return reporting.TimeRange{}, false
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return reporting.TimeRange{}, false
		}
		rng.To = t
	}
	return rng, true
}

// --- Number pools ---

// ResetPoolCooldowns clears cooldown_until across a pool so dialing can
// resume after an operator decision.
// RBAC: owner or campaign_manager.
func (h Handlers) ResetPoolCooldowns(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Numbers == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "number store not configured"})
		return
	}
	workspaceID, err := auth.WorkspaceID(c.Request.Context())
	if err != nil || workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	poolID := c.Param("pool_id")
	if poolID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "pool_id required"})
		return
	}
	n, err := h.Numbers.ResetCooldowns(c.Request.Context(), workspaceID, poolID)
	if errors.Is(err, numbers.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "pool not found"})
		return
	}
	if err != nil {
		log.Error("cooldown reset failed", "pool_id", poolID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}

	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		if aerr := h.Audit.LogPoolMaintenance(c.Request.Context(), workspaceID, userID, role, c.ClientIP(), poolID, "cooldowns reset", ""); aerr != nil {
			log.Warn("audit append failed", "err", aerr)
		}
	}

	c.JSON(http.StatusOK, gin.H{"pool_id": poolID, "members_reset": n})
}

// Convenience middleware bundles.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
