package numbers

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("numbers: not found")
	ErrInvalidInput = errors.New("numbers: invalid input")
)

// Store is the persistence contract for pools and their members.
//
// RecordUse is the only mutation the reconciler performs; it must be
// atomic per member so concurrent reconciliations do not lose counts.
type Store interface {
	GetPool(ctx context.Context, workspaceID, poolID string) (Pool, error)
	ListMembers(ctx context.Context, workspaceID, poolID string) ([]PoolMember, error)

	// RecordUse bumps calls_made, stamps last_used_at and, when the
	// member crosses maxCallsPerNumber, enters it into cooldown until
	// now+cooldown.
	RecordUse(ctx context.Context, workspaceID, memberID string, now time.Time, maxCallsPerNumber int, cooldown time.Duration) (PoolMember, error)

	// ResetCooldowns clears cooldown_until for every member of a pool.
	// Explicit operator action; returns the number of members touched.
	ResetCooldowns(ctx context.Context, workspaceID, poolID string) (int, error)

	// SetHealth flips a member's health flag (spam-flag feedback path).
	SetHealth(ctx context.Context, workspaceID, memberID string, healthy bool, spamScore int) error
}
