package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Workspace isolation: WorkspaceID is required.

type CallsSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	CampaignID  string    `json:"campaign_id,omitempty"`
}

type CallsSummary struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	VoicemailCalls  int `json:"voicemail_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

// OutcomeSummaryRequest requests per-label outcome counts for one
// campaign's terminal calls.

type OutcomeSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	CampaignID  string    `json:"campaign_id"`
}

type OutcomeSummary struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`

	TotalClassified int `json:"total_classified"`

	// ByLabel counts calls per outcome label; ByCategory rolls the
	// labels up to positive/negative/neutral.
	ByLabel    map[string]int `json:"by_label"`
	ByCategory map[string]int `json:"by_category"`
}

// ConversionMetricsRequest captures simple campaign conversion metrics.
// A conversion is a terminal call whose outcome classifies as positive.

type ConversionMetricsRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	CampaignID  string    `json:"campaign_id"`
}

type ConversionMetrics struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`
	Conversions    int `json:"conversions"`

	ConnectionRate float64 `json:"connection_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}
