package numbers

import "time"

// Pool groups sending numbers that rotate under one strategy.
type Pool struct {
	PoolID      string `json:"pool_id" db:"pool_id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	Name        string `json:"name" db:"name"`

	Strategy Strategy `json:"strategy" db:"strategy"`

	// MaxCallsPerNumber is the usage ceiling before a member enters
	// cooldown. Zero means no ceiling.
	MaxCallsPerNumber int `json:"max_calls_per_number" db:"max_calls_per_number"`

	// CooldownMinutes is how long a member rests after crossing the
	// usage ceiling.
	CooldownMinutes int `json:"cooldown_minutes" db:"cooldown_minutes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategyLeastUsed  Strategy = "least_used"
	StrategyWeighted   Strategy = "weighted"
)

// PoolMember is one phone number enrolled in a rotation pool, with
// independent health and usage tracking.
//
// Selectability invariant: a member with CooldownUntil in the future, or
// IsHealthy=false, or IsActive=false is never selectable.
type PoolMember struct {
	MemberID    string `json:"member_id" db:"member_id"`
	PoolID      string `json:"pool_id" db:"pool_id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// Number is E.164 where possible.
	Number string `json:"number" db:"number"`

	CallsMade  int        `json:"calls_made" db:"calls_made"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`

	IsHealthy bool `json:"is_healthy" db:"is_healthy"`

	// SpamScore is 0-100; carrier reputation signal maintained outside
	// the core.
	SpamScore int `json:"spam_score" db:"spam_score"`

	CooldownUntil *time.Time `json:"cooldown_until,omitempty" db:"cooldown_until"`

	Weight   int  `json:"weight" db:"weight"`
	IsActive bool `json:"is_active" db:"is_active"`
}
