package dialer

import (
	"context"
	"errors"
	"time"
)

// Provider is the provider-agnostic contract for the external dialer.
//
// Rules:
// - No provider SDK calls outside dialer adapters.
// - Keep request/response types provider-agnostic; raw provider payloads
//   stay in adapter metadata.
// - Submit must be safe to retry on timeout: callers check before
//   re-submitting rather than firing blind.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// Submit places an outbound call and returns the provider-side dial
	// id. That id is the join key for every later status update.
	Submit(ctx context.Context, req SubmitRequest) (string, error)

	// GetStatus fetches the current state of a previously submitted
	// dial. The polling adapter uses it for calls without reliable
	// webhook delivery.
	GetStatus(ctx context.Context, externalID string) (StatusEvent, error)
}

var (
	// ErrRejected means the provider refused the dial outright
	// (validation, blocked destination). Not retryable as-is.
	ErrRejected = errors.New("dialer: submission rejected")

	// ErrUnavailable covers transport failures and timeouts; the contact
	// goes back to pending and a later tick retries.
	ErrUnavailable = errors.New("dialer: provider unavailable")

	// ErrUnknownDial means the provider does not know the external id.
	ErrUnknownDial = errors.New("dialer: unknown dial id")
)

// SubmitRequest describes one outbound dial.
type SubmitRequest struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`

	// AgentID selects the voice-agent configuration at the provider.
	AgentID string `json:"agent_id"`

	// FromNumber and ToNumber are E.164 where possible.
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`

	// Metadata is echoed back by the provider on status events.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StatusEvent is the normalized dial status shape. Both webhook payloads
// and poll responses reduce to this before entering the reconciler, so
// there is exactly one code path for state transitions.
type StatusEvent struct {
	ExternalID string `json:"external_id"`

	// ProviderStatus is the raw provider status string; the reconciler
	// owns the mapping to the canonical call status.
	ProviderStatus string `json:"provider_status"`

	// SystemResultType is an explicit provider result signal, e.g.
	// "voicemail_detected". Stronger than any transcript heuristic.
	SystemResultType string `json:"system_result_type,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	DurationSeconds int `json:"duration_seconds,omitempty"`

	Transcript   string `json:"transcript,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Sentiment    string `json:"sentiment,omitempty"`

	ExtractedData map[string]any `json:"extracted_data,omitempty"`
}
