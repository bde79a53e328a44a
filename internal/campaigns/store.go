package campaigns

import (
	"context"
	"errors"
	"time"

	"campaign-dialer/internal/calls"
)

var (
	ErrNotFound      = errors.New("campaigns: not found")
	ErrInvalidInput  = errors.New("campaigns: invalid input")
	ErrNotClaimable  = errors.New("campaigns: contact not claimable")
	ErrBadTransition = errors.New("campaigns: illegal status transition")
)

// Store is the persistence contract shared by the scheduler and the
// reconciler. Multiple scheduler/reconciler instances may run against the
// same store concurrently, so every claim and counter update below is
// specified as an atomic conditional operation.
type Store interface {
	// Campaigns.
	GetCampaign(ctx context.Context, workspaceID, campaignID string) (Campaign, error)
	ListCampaignsByStatus(ctx context.Context, statuses ...CampaignStatus) ([]Campaign, error)

	// SetCampaignStatus transitions a campaign between lifecycle states.
	// The update only applies when the stored status is one of from;
	// otherwise ErrBadTransition is returned.
	SetCampaignStatus(ctx context.Context, workspaceID, campaignID string, from []CampaignStatus, to CampaignStatus) error

	// Contacts.
	NextPendingContacts(ctx context.Context, workspaceID, campaignID string, limit int) ([]Contact, error)

	// ClaimContact moves a contact pending -> in_progress. The compare-
	// and-swap on the stored status is what keeps two scheduler instances
	// from double-dialing the same contact: exactly one caller wins,
	// everyone else gets ErrNotClaimable.
	ClaimContact(ctx context.Context, workspaceID, contactID string) error

	// ReleaseContact reverts a claimed contact after a failed submission:
	// attempts is incremented and lastError recorded. When permanent is
	// true the contact is marked failed instead of returning to pending.
	ReleaseContact(ctx context.Context, workspaceID, contactID, lastError string, permanent bool) error

	// Calls.
	CreateCall(ctx context.Context, c calls.Call) error
	GetCall(ctx context.Context, workspaceID, callID string) (calls.Call, error)
	ListCalls(ctx context.Context, workspaceID, campaignID string) ([]calls.Call, error)

	// CountInFlight returns the number of calls in non-terminal status for
	// a campaign. The scheduler uses it to enforce maxConcurrentCalls.
	CountInFlight(ctx context.Context, workspaceID, campaignID string) (int, error)

	// ListActiveCalls returns all calls in non-terminal status, oldest
	// first. The polling adapter uses it as its poll set; terminal calls
	// drop out automatically.
	ListActiveCalls(ctx context.Context, limit int) ([]calls.Call, error)

	// ApplyStatusUpdate persists one reconciled status event atomically.
	// See ApplyUpdate / ApplyResult for the exact semantics.
	ApplyStatusUpdate(ctx context.Context, upd ApplyUpdate) (ApplyResult, error)
}

// CounterBucket names the campaign sub-counter a terminal call rolls into.
type CounterBucket string

const (
	BucketConnected CounterBucket = "connected"
	BucketVoicemail CounterBucket = "voicemail"
	BucketFailed    CounterBucket = "failed"
)

// CallFields carries the enrichment fields of a status event. Merge
// semantics: empty/zero values never overwrite stored values, so a late,
// more complete update can only add information.
type CallFields struct {
	StartedAt       *time.Time
	AnsweredAt      *time.Time
	EndedAt         *time.Time
	DurationSeconds int
	Transcript      string
	RecordingURL    string
	Summary         string
	Sentiment       string
	ExtractedData   map[string]any
}

// TerminalEffects describes what must happen the first time a call crosses
// into a terminal status: which campaign counter to bump and how to close
// out the owning contact.
type TerminalEffects struct {
	Bucket        CounterBucket
	ContactStatus ContactStatus // completed or failed
	Result        string        // outcome label recorded on the contact
}

// ApplyUpdate is the reconciler's fully-normalized instruction to the
// store. The store decides idempotency: it reads the previous stored call
// status inside the same transaction, and only when that status was
// non-terminal does it advance the status and apply TerminalEffects.
// Duplicate or late events therefore merge fields without re-counting.
type ApplyUpdate struct {
	ExternalID string

	Status  calls.CallStatus
	Outcome string

	Fields CallFields

	// Terminal is nil for non-terminal statuses.
	Terminal *TerminalEffects

	Now time.Time
}

type ApplyResult struct {
	Call calls.Call

	// FirstTerminal is true when this event moved the call from a
	// non-terminal to a terminal status (aggregates were incremented).
	FirstTerminal bool

	// CampaignCompleted is true when this update finished the last
	// outstanding contact and the campaign was marked completed.
	CampaignCompleted bool

	Campaign Campaign
}
