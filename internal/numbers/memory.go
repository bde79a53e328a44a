package numbers

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu sync.Mutex

	Pools   map[string]Pool       // key: pool_id
	Members map[string]PoolMember // key: member_id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Pools: map[string]Pool{}, Members: map[string]PoolMember{}}
}

func (s *MemoryStore) PutPool(p Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pools[p.PoolID] = p
}

func (s *MemoryStore) PutMember(m PoolMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Members[m.MemberID] = m
}

func (s *MemoryStore) GetPool(ctx context.Context, workspaceID, poolID string) (Pool, error) {
	if workspaceID == "" || poolID == "" {
		return Pool{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Pools[poolID]
	if !ok || p.WorkspaceID != workspaceID {
		return Pool{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, workspaceID, poolID string) ([]PoolMember, error) {
	if workspaceID == "" || poolID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PoolMember, 0)
	for _, m := range s.Members {
		if m.WorkspaceID == workspaceID && m.PoolID == poolID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *MemoryStore) RecordUse(ctx context.Context, workspaceID, memberID string, now time.Time, maxCallsPerNumber int, cooldown time.Duration) (PoolMember, error) {
	if workspaceID == "" || memberID == "" {
		return PoolMember{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Members[memberID]
	if !ok || m.WorkspaceID != workspaceID {
		return PoolMember{}, ErrNotFound
	}
	m.CallsMade++
	t := now
	m.LastUsedAt = &t
	if maxCallsPerNumber > 0 && m.CallsMade >= maxCallsPerNumber && cooldown > 0 {
		until := now.Add(cooldown)
		m.CooldownUntil = &until
	}
	s.Members[memberID] = m
	return m, nil
}

func (s *MemoryStore) ResetCooldowns(ctx context.Context, workspaceID, poolID string) (int, error) {
	if workspaceID == "" || poolID == "" {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.Members {
		if m.WorkspaceID != workspaceID || m.PoolID != poolID {
			continue
		}
		if m.CooldownUntil != nil {
			m.CooldownUntil = nil
			s.Members[id] = m
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SetHealth(ctx context.Context, workspaceID, memberID string, healthy bool, spamScore int) error {
	if workspaceID == "" || memberID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Members[memberID]
	if !ok || m.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	m.IsHealthy = healthy
	if spamScore >= 0 {
		m.SpamScore = spamScore
	}
	s.Members[memberID] = m
	return nil
}
