package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/auth"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/numbers"
	"campaign-dialer/internal/rbac"

	"github.com/gin-gonic/gin"
)

func controlRouter(h Handlers, identity bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	grp := r.Group("/")
	if identity {
		grp.Use(func(c *gin.Context) {
			ctx := auth.WithIdentity(c.Request.Context(), "u1", "w", rbac.RoleOwner)
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
	grp.POST("/campaigns/:campaign_id/:action", h.ControlCampaign)
	grp.POST("/pools/:pool_id/reset-cooldowns", h.ResetPoolCooldowns)
	return r
}

func TestControlCampaign_StartAndPause(t *testing.T) {
	store := campaigns.NewMemoryStore()
	store.PutCampaign(campaigns.Campaign{CampaignID: "camp", WorkspaceID: "w", Status: campaigns.CampaignStatusDraft})
	h := Handlers{Store: store, Audit: audit.NewService(audit.NewMemoryRepo())}
	r := controlRouter(h, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/camp/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.Campaigns["camp"].Status != campaigns.CampaignStatusRunning {
		t.Fatalf("expected running, got %s", store.Campaigns["camp"].Status)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/camp/pause", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", w.Code)
	}
	if store.Campaigns["camp"].Status != campaigns.CampaignStatusPaused {
		t.Fatalf("expected paused, got %s", store.Campaigns["camp"].Status)
	}
}

func TestControlCampaign_BadTransitionConflicts(t *testing.T) {
	store := campaigns.NewMemoryStore()
	store.PutCampaign(campaigns.Campaign{CampaignID: "camp", WorkspaceID: "w", Status: campaigns.CampaignStatusCompleted})
	r := controlRouter(Handlers{Store: store}, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/camp/start", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("completed campaign must not restart, got %d", w.Code)
	}
}

func TestControlCampaign_UnknownAction(t *testing.T) {
	store := campaigns.NewMemoryStore()
	store.PutCampaign(campaigns.Campaign{CampaignID: "camp", WorkspaceID: "w", Status: campaigns.CampaignStatusDraft})
	r := controlRouter(Handlers{Store: store}, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/camp/explode", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestControlCampaign_RequiresIdentity(t *testing.T) {
	store := campaigns.NewMemoryStore()
	store.PutCampaign(campaigns.Campaign{CampaignID: "camp", WorkspaceID: "w", Status: campaigns.CampaignStatusDraft})
	r := controlRouter(Handlers{Store: store}, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/camp/start", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
}

func TestControlCampaign_WorkspaceIsolation(t *testing.T) {
	store := campaigns.NewMemoryStore()
	store.PutCampaign(campaigns.Campaign{CampaignID: "camp", WorkspaceID: "other", Status: campaigns.CampaignStatusDraft})
	r := controlRouter(Handlers{Store: store}, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/campaigns/camp/start", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-workspace access must read as not found, got %d", w.Code)
	}
}

func TestResetPoolCooldowns(t *testing.T) {
	ns := numbers.NewMemoryStore()
	ns.PutPool(numbers.Pool{PoolID: "p", WorkspaceID: "w"})
	until := time.Now().Add(time.Hour)
	ns.PutMember(numbers.PoolMember{MemberID: "m1", PoolID: "p", WorkspaceID: "w", Number: "+15550001", IsActive: true, IsHealthy: true, CooldownUntil: &until})
	ns.PutMember(numbers.PoolMember{MemberID: "m2", PoolID: "p", WorkspaceID: "w", Number: "+15550002", IsActive: true, IsHealthy: true})

	repo := audit.NewMemoryRepo()
	r := controlRouter(Handlers{Numbers: ns, Audit: audit.NewService(repo)}, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pools/p/reset-cooldowns", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ns.Members["m1"].CooldownUntil != nil {
		t.Fatalf("cooldown should be cleared")
	}
	if evs := repo.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypePoolMaintenance {
		t.Fatalf("expected a pool maintenance audit event, got %+v", evs)
	}
}
