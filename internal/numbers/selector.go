package numbers

import (
	"errors"
	"math/rand"
	"sort"
	"time"
)

// ErrExhausted is returned when no pool member passes the eligibility
// filter. The scheduler treats it as an admission condition, not a
// failure: the contact stays pending.
var ErrExhausted = errors.New("numbers: pool exhausted")

// Selector picks one eligible pool member under a strategy.
//
// Selection is a pure function of its inputs plus the injected RNG and
// clock, so tests can seed rand.NewSource and pin the clock for fully
// deterministic behavior. No side effects: usage bookkeeping is the
// reconciler's job.
type Selector struct {
	RNG *rand.Rand
	Now func() time.Time
}

func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{RNG: rng, Now: time.Now}
}

func (s *Selector) Select(members []PoolMember, strategy Strategy, maxCallsPerNumber int) (PoolMember, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	eligible := make([]PoolMember, 0, len(members))
	for _, m := range members {
		if !selectable(m, maxCallsPerNumber, now) {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) == 0 {
		return PoolMember{}, ErrExhausted
	}

	switch strategy {
	case StrategyRandom:
		return eligible[s.rng().Intn(len(eligible))], nil
	case StrategyLeastUsed:
		sortByUsage(eligible)
		return eligible[0], nil
	case StrategyWeighted:
		if m, ok := s.pickWeighted(eligible); ok {
			return m, nil
		}
		return PoolMember{}, ErrExhausted
	default: // round_robin
		sortByLastUsed(eligible)
		return eligible[0], nil
	}
}

func selectable(m PoolMember, maxCallsPerNumber int, now time.Time) bool {
	if !m.IsActive || !m.IsHealthy {
		return false
	}
	if m.CooldownUntil != nil && m.CooldownUntil.After(now) {
		return false
	}
	if maxCallsPerNumber > 0 && m.CallsMade >= maxCallsPerNumber {
		return false
	}
	return true
}

// sortByLastUsed orders oldest-used first; never-used members come before
// everything else. Member id breaks ties for stability.
func sortByLastUsed(ms []PoolMember) {
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt == nil:
			return a.MemberID < b.MemberID
		case a.LastUsedAt == nil:
			return true
		case b.LastUsedAt == nil:
			return false
		case !a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.LastUsedAt.Before(*b.LastUsedAt)
		default:
			return a.MemberID < b.MemberID
		}
	})
}

func sortByUsage(ms []PoolMember) {
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.CallsMade != b.CallsMade {
			return a.CallsMade < b.CallsMade
		}
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt == nil:
			return a.MemberID < b.MemberID
		case a.LastUsedAt == nil:
			return true
		case b.LastUsedAt == nil:
			return false
		case !a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.LastUsedAt.Before(*b.LastUsedAt)
		default:
			return a.MemberID < b.MemberID
		}
	})
}

// pickWeighted chooses with probability proportional to Weight.
// Weight <= 0 excludes a member even when otherwise eligible.
func (s *Selector) pickWeighted(ms []PoolMember) (PoolMember, bool) {
	var total int
	for _, m := range ms {
		if m.Weight <= 0 {
			continue
		}
		total += m.Weight
	}
	if total <= 0 {
		return PoolMember{}, false
	}
	r := s.rng().Intn(total) // 0..total-1

	var acc int
	for _, m := range ms {
		if m.Weight <= 0 {
			continue
		}
		acc += m.Weight
		if r < acc {
			return m, true
		}
	}
	return PoolMember{}, false
}

func (s *Selector) rng() *rand.Rand {
	if s.RNG != nil {
		return s.RNG
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
