package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"

	"campaign-dialer/internal/calls"
)

// MemoryStore is an in-memory Store for tests and early development.
// All conditional updates run under one mutex, which gives the same
// atomicity the Postgres implementation gets from row locks.
type MemoryStore struct {
	mu sync.Mutex

	Campaigns map[string]Campaign     // key: campaign_id
	Contacts  map[string]Contact      // key: contact_id
	Calls     map[string]calls.Call   // key: call_id
	byExt     map[string]string       // external_id -> call_id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Campaigns: map[string]Campaign{},
		Contacts:  map[string]Contact{},
		Calls:     map[string]calls.Call{},
		byExt:     map[string]string{},
	}
}

// PutCampaign seeds or replaces a campaign row. Test helper.
func (s *MemoryStore) PutCampaign(c Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Campaigns[c.CampaignID] = c
}

// PutContact seeds or replaces a contact row. Test helper.
func (s *MemoryStore) PutContact(c Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Contacts[c.ContactID] = c
}

func (s *MemoryStore) GetCampaign(ctx context.Context, workspaceID, campaignID string) (Campaign, error) {
	if workspaceID == "" || campaignID == "" {
		return Campaign{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Campaigns[campaignID]
	if !ok || c.WorkspaceID != workspaceID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListCampaignsByStatus(ctx context.Context, statuses ...CampaignStatus) ([]Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range s.Campaigns {
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out, nil
}

func (s *MemoryStore) SetCampaignStatus(ctx context.Context, workspaceID, campaignID string, from []CampaignStatus, to CampaignStatus) error {
	if workspaceID == "" || campaignID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Campaigns[campaignID]
	if !ok || c.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	allowed := len(from) == 0
	for _, f := range from {
		if c.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrBadTransition
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	s.Campaigns[campaignID] = c
	return nil
}

func (s *MemoryStore) NextPendingContacts(ctx context.Context, workspaceID, campaignID string, limit int) ([]Contact, error) {
	if workspaceID == "" || campaignID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contact, 0)
	for _, c := range s.Contacts {
		if c.WorkspaceID != workspaceID || c.CampaignID != campaignID {
			continue
		}
		if c.Status != ContactStatusPending {
			continue
		}
		out = append(out, c)
	}
	// FIFO by insertion order, id as tiebreaker for stability.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ContactID < out[j].ContactID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ClaimContact(ctx context.Context, workspaceID, contactID string) error {
	if workspaceID == "" || contactID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Contacts[contactID]
	if !ok || c.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	if c.Status != ContactStatusPending {
		return ErrNotClaimable
	}
	c.Status = ContactStatusInProgress
	s.Contacts[contactID] = c
	return nil
}

func (s *MemoryStore) ReleaseContact(ctx context.Context, workspaceID, contactID, lastError string, permanent bool) error {
	if workspaceID == "" || contactID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Contacts[contactID]
	if !ok || c.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	if c.Status != ContactStatusInProgress {
		return ErrBadTransition
	}
	c.Attempts++
	c.LastError = lastError
	if permanent {
		c.Status = ContactStatusFailed
	} else {
		c.Status = ContactStatusPending
	}
	s.Contacts[contactID] = c
	return nil
}

func (s *MemoryStore) CreateCall(ctx context.Context, c calls.Call) error {
	if c.CallID == "" || c.WorkspaceID == "" || c.ExternalID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls[c.CallID] = c
	s.byExt[c.ExternalID] = c.CallID
	return nil
}

func (s *MemoryStore) GetCall(ctx context.Context, workspaceID, callID string) (calls.Call, error) {
	if workspaceID == "" || callID == "" {
		return calls.Call{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Calls[callID]
	if !ok || c.WorkspaceID != workspaceID {
		return calls.Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListCalls(ctx context.Context, workspaceID, campaignID string) ([]calls.Call, error) {
	if workspaceID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range s.Calls {
		if c.WorkspaceID != workspaceID {
			continue
		}
		if campaignID != "" && c.CampaignID != campaignID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CallID < out[j].CallID
	})
	return out, nil
}

func (s *MemoryStore) CountInFlight(ctx context.Context, workspaceID, campaignID string) (int, error) {
	if workspaceID == "" || campaignID == "" {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.WorkspaceID == workspaceID && c.CampaignID == campaignID && !c.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListActiveCalls(ctx context.Context, limit int) ([]calls.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range s.Calls {
		if !c.Status.IsTerminal() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CallID < out[j].CallID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ApplyStatusUpdate(ctx context.Context, upd ApplyUpdate) (ApplyResult, error) {
	if upd.ExternalID == "" {
		return ApplyResult{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	callID, ok := s.byExt[upd.ExternalID]
	if !ok {
		return ApplyResult{}, ErrNotFound
	}
	c := s.Calls[callID]

	now := upd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	prevTerminal := c.Status.IsTerminal()
	mergeCallFields(&c, upd.Fields)
	c.UpdatedAt = now

	res := ApplyResult{}

	if !prevTerminal {
		c.Status = upd.Status
		if upd.Outcome != "" {
			c.Outcome = upd.Outcome
		}
		if upd.Status.IsTerminal() && upd.Terminal != nil {
			res.FirstTerminal = true
			s.applyTerminalLocked(&c, *upd.Terminal, now, &res)
		}
	}

	s.Calls[callID] = c
	res.Call = c
	return res, nil
}

// applyTerminalLocked bumps campaign counters, closes out the contact and
// runs the completion check. Caller holds the mutex, which is the memory
// analogue of the single transaction the Postgres store uses.
func (s *MemoryStore) applyTerminalLocked(c *calls.Call, eff TerminalEffects, now time.Time, res *ApplyResult) {
	camp, ok := s.Campaigns[c.CampaignID]
	if ok {
		camp.CompletedCalls++
		switch eff.Bucket {
		case BucketConnected:
			camp.ConnectedCalls++
		case BucketVoicemail:
			camp.VoicemailCalls++
		default:
			camp.FailedCalls++
		}
		camp.UpdatedAt = now
	}

	if ct, found := s.Contacts[c.ContactID]; found {
		ct.Status = eff.ContactStatus
		ct.Result = eff.Result
		t := now
		ct.CompletedAt = &t
		s.Contacts[c.ContactID] = ct
	}

	if ok {
		if camp.Status == CampaignStatusRunning && !s.hasOpenContactsLocked(camp.CampaignID) {
			camp.Status = CampaignStatusCompleted
			res.CampaignCompleted = true
		}
		s.Campaigns[camp.CampaignID] = camp
		res.Campaign = camp
	}
}

func (s *MemoryStore) hasOpenContactsLocked(campaignID string) bool {
	for _, ct := range s.Contacts {
		if ct.CampaignID != campaignID {
			continue
		}
		if ct.Status == ContactStatusPending || ct.Status == ContactStatusInProgress {
			return true
		}
	}
	return false
}

// mergeCallFields applies enrichment fields without erasing stored values.
func mergeCallFields(c *calls.Call, f CallFields) {
	if f.StartedAt != nil {
		c.StartedAt = f.StartedAt
	}
	if f.AnsweredAt != nil {
		c.AnsweredAt = f.AnsweredAt
	}
	if f.EndedAt != nil {
		c.EndedAt = f.EndedAt
	}
	if f.DurationSeconds > 0 {
		c.DurationSeconds = f.DurationSeconds
	}
	if f.Transcript != "" {
		c.Transcript = f.Transcript
	}
	if f.RecordingURL != "" {
		c.RecordingURL = f.RecordingURL
	}
	if f.Summary != "" {
		c.Summary = f.Summary
	}
	if f.Sentiment != "" {
		c.Sentiment = f.Sentiment
	}
	if len(f.ExtractedData) > 0 {
		if c.ExtractedData == nil {
			c.ExtractedData = map[string]any{}
		}
		for k, v := range f.ExtractedData {
			c.ExtractedData[k] = v
		}
	}
}
