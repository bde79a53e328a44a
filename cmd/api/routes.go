package main

import (
	"database/sql"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/auth"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/httpapi"
	"campaign-dialer/internal/ingest"
	"campaign-dialer/internal/numbers"
	"campaign-dialer/internal/rbac"
	"campaign-dialer/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	authMW     gin.HandlerFunc
	auth       *auth.Manager
	store      campaigns.Store
	numbers    numbers.Store
	audit      *audit.Service
	reconciler ingest.Applier
	db         *sql.DB
	redis      *redis.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by provider signature validation in production.
	{
		h := ingest.WebhookHandler{Applier: deps.reconciler}
		r.POST("/webhooks/dialer/status", h.HandleStatusCallback)
	}

	h := httpapi.Handlers{
		Auth:      deps.auth,
		Store:     deps.store,
		Numbers:   deps.numbers,
		Reporting: reporting.NewService(reporting.NewPostgresRepo(deps.db)),
		Audit:     deps.audit,
	}

	// AUTH routes (token issuance). Public: no access token exists yet.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	{
		// Identity echo, useful for debugging token plumbing.
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			wid, _ := auth.WorkspaceID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "workspace_id": wid, "role": role})
		})

		// CAMPAIGN control and visibility.
		campaignGroup := v1.Group("/campaigns")
		campaignGroup.Use(rbac.RequireWorkspace())
		{
			read := campaignGroup.Group("")
			read.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
			{
				read.GET("/:campaign_id", h.GetCampaign)
				read.GET("/:campaign_id/calls", h.ListCampaignCalls)
				read.GET("/:campaign_id/outcomes", h.CampaignOutcomeSummary)
				read.GET("/:campaign_id/conversions", h.CampaignConversionMetrics)
			}

			control := campaignGroup.Group("")
			control.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleSuperAdmin))
			{
				control.POST("/:campaign_id/:action", h.ControlCampaign)
			}
		}

		// NUMBER POOL maintenance.
		pools := v1.Group("/pools")
		pools.Use(rbac.RequireWorkspace())
		pools.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleSuperAdmin))
		{
			pools.POST("/:pool_id/reset-cooldowns", h.ResetPoolCooldowns)
		}
	}
}
