package calls

import "time"

// Call represents one workspace-scoped outbound dial attempt.
//
// Multi-tenant invariant: WorkspaceID is required on every row.
//
// ExternalID is the provider-side dial id and is the join key for every
// asynchronous status update, whether it arrives by webhook or by polling.
// Provider raw payloads belong in adapter metadata, not in this model.

type Call struct {
	CallID      string `json:"call_id" db:"call_id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CampaignID  string `json:"campaign_id,omitempty" db:"campaign_id"`
	ContactID   string `json:"contact_id,omitempty" db:"contact_id"`

	// ExternalID is assigned by the dialer provider at submission time.
	ExternalID string `json:"external_id" db:"external_id"`

	From string `json:"from" db:"from_number"`
	To   string `json:"to" db:"to_number"`

	// PoolMemberID records which sending number dialed this call so the
	// reconciler can update that member's usage on the terminal event.
	// Empty when the campaign dialed from a single fallback number.
	PoolMemberID string `json:"pool_member_id,omitempty" db:"pool_member_id"`

	Status CallStatus `json:"status" db:"status"`

	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds int `json:"duration" db:"duration"`

	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Summary      string `json:"summary,omitempty" db:"summary"`
	Sentiment    string `json:"sentiment,omitempty" db:"sentiment"`
	Outcome      string `json:"outcome,omitempty" db:"outcome"`

	// ExtractedData holds structured signals captured during the call
	// (appointment/success/transfer flags etc.) as reported by the agent.
	ExtractedData map[string]any `json:"extracted_data,omitempty" db:"extracted_data"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusVoicemail  CallStatus = "voicemail"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no_answer"
)

// IsTerminal reports whether a status is absorbing: once a call reaches a
// terminal status, later events may enrich fields but never change status.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusVoicemail, CallStatusBusy, CallStatusNoAnswer:
		return true
	default:
		return false
	}
}

// Connected reports whether the call was answered by a person.
// Voicemail pickups count separately for campaign accounting.
func (s CallStatus) Connected() bool {
	return s == CallStatusCompleted
}
