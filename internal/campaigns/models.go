package campaigns

import "time"

// Campaign is the unit of outbound dialing work.
//
// Aggregate counters are monotonically increasing and only the reconciler
// bumps them, exactly once per call that reaches a terminal status:
//
//	CompletedCalls == ConnectedCalls + VoicemailCalls + FailedCalls
//
// busy and no_answer roll into FailedCalls.
type Campaign struct {
	CampaignID  string `json:"campaign_id" db:"campaign_id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	Name        string `json:"name" db:"name"`
	AgentID     string `json:"agent_id" db:"agent_id"`

	Status CampaignStatus `json:"status" db:"status"`

	// Throttle.
	CallsPerMinute     int `json:"calls_per_minute" db:"calls_per_minute"`
	MaxConcurrentCalls int `json:"max_concurrent_calls" db:"max_concurrent_calls"`

	// MaxAttempts bounds submission retries per contact; past it the
	// contact is marked failed permanently instead of returning to pending.
	MaxAttempts int `json:"max_attempts" db:"max_attempts"`

	// Scheduling window.
	ScheduleType    ScheduleType   `json:"schedule_type" db:"schedule_type"`
	TimeWindowStart string         `json:"time_window_start,omitempty" db:"time_window_start"` // "HH:MM"
	TimeWindowEnd   string         `json:"time_window_end,omitempty" db:"time_window_end"`     // "HH:MM"
	Timezone        string         `json:"timezone,omitempty" db:"timezone"`
	RecurringDays   []time.Weekday `json:"recurring_days,omitempty" db:"recurring_days"`

	// Number sourcing: a rotation pool, or a single fallback number when
	// no pool is configured.
	PoolID         string `json:"pool_id,omitempty" db:"pool_id"`
	FallbackNumber string `json:"fallback_number,omitempty" db:"fallback_number"`

	CompletedCalls int `json:"completed_calls" db:"completed_calls"`
	ConnectedCalls int `json:"connected_calls" db:"connected_calls"`
	VoicemailCalls int `json:"voicemail_calls" db:"voicemail_calls"`
	FailedCalls    int `json:"failed_calls" db:"failed_calls"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type ScheduleType string

const (
	ScheduleTypeImmediate ScheduleType = "immediate"
	ScheduleTypeScheduled ScheduleType = "scheduled"
	ScheduleTypeRecurring ScheduleType = "recurring"
)

// Contact is the campaign/contact junction row: one dial target within one
// campaign, with its own attempt history.
//
// Transitions: pending -> in_progress (scheduler claims it) ->
// completed|failed (reconciler, on terminal call status). A submission
// failure returns the contact to pending with Attempts incremented.
type Contact struct {
	ContactID   string `json:"contact_id" db:"contact_id"`
	CampaignID  string `json:"campaign_id" db:"campaign_id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	Name        string `json:"name,omitempty" db:"name"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Status   ContactStatus `json:"status" db:"status"`
	Attempts int           `json:"attempts" db:"attempts"`

	LastError string `json:"last_error,omitempty" db:"last_error"`

	// Result is the outcome label assigned by the reconciler.
	Result      string     `json:"result,omitempty" db:"result"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ContactStatus string

const (
	ContactStatusPending    ContactStatus = "pending"
	ContactStatusInProgress ContactStatus = "in_progress"
	ContactStatusCompleted  ContactStatus = "completed"
	ContactStatusFailed     ContactStatus = "failed"
)
