package ingest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campaign-dialer/internal/dialer"
	"campaign-dialer/pkg/logger"
)

// Applier is the single entry point status events funnel into. Both the
// webhook and the poller reduce provider payloads to a StatusEvent and
// hand it here.
type Applier interface {
	Apply(ctx context.Context, ev dialer.StatusEvent) error
}

// WebhookHandler converts provider status callbacks to internal types
// and delegates to the reconciler.
//
// No business logic here. Response codes are the retry contract with the
// provider: 2xx acknowledges and stops redelivery, 5xx asks for a retry.
// Malformed payloads get a 400 because redelivering them cannot help.
type WebhookHandler struct {
	Applier Applier
}

// statusPayload is the provider's callback shape.
type statusPayload struct {
	DialID           string `json:"dial_id"`
	Status           string `json:"status"`
	SystemResultType string `json:"system_result_type"`

	StartedAt  *time.Time `json:"started_at"`
	AnsweredAt *time.Time `json:"answered_at"`
	EndedAt    *time.Time `json:"ended_at"`

	DurationSeconds int `json:"duration_seconds"`

	Transcript   string `json:"transcript"`
	RecordingURL string `json:"recording_url"`
	Summary      string `json:"summary"`
	Sentiment    string `json:"sentiment"`

	ExtractedData map[string]any `json:"extracted_data"`
}

func (p statusPayload) toEvent() dialer.StatusEvent {
	return dialer.StatusEvent{
		ExternalID:       p.DialID,
		ProviderStatus:   p.Status,
		SystemResultType: p.SystemResultType,
		StartedAt:        p.StartedAt,
		AnsweredAt:       p.AnsweredAt,
		EndedAt:          p.EndedAt,
		DurationSeconds:  p.DurationSeconds,
		Transcript:       p.Transcript,
		RecordingURL:     p.RecordingURL,
		Summary:          p.Summary,
		Sentiment:        p.Sentiment,
		ExtractedData:    p.ExtractedData,
	}
}

func (h WebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Applier == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconciler not configured"})
		return
	}

	var payload statusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Warn("status webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.DialID == "" {
		log.Warn("status webhook missing dial_id")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "dial_id is required"})
		return
	}

	if err := h.Applier.Apply(c.Request.Context(), payload.toEvent()); err != nil {
		log.Error("status event apply failed", "dial_id", payload.DialID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "apply failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
