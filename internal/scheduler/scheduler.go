package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/dialer"
	"campaign-dialer/internal/notify"
	"campaign-dialer/internal/numbers"
)

const (
	defaultInterval       = time.Second
	defaultBatch          = 25
	defaultCallsPerMinute = 10
	defaultMaxConcurrent  = 5
	defaultMaxAttempts    = 3
)

// Scheduler paces outbound dialing for every running campaign. Each tick
// it admits contacts under two limits, a per-campaign token bucket
// (calls_per_minute) and a max_concurrent_calls in-flight cap, claims
// them with a compare-and-set against the store, and submits dials to
// the provider.
//
// Bucket state is per process. Running several instances over-admits at
// the rate limit only; correctness holds because the contact claim
// collapses duplicate admissions at the store.
type Scheduler struct {
	store    campaigns.Store
	numbers  numbers.Store
	provider dialer.Provider
	pub      notify.Publisher
	selector *numbers.Selector
	audit    *audit.Service
	log      *slog.Logger

	clock    func() time.Time
	interval time.Duration
	batch    int

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func New(store campaigns.Store, numberStore numbers.Store, provider dialer.Provider, pub notify.Publisher, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		store:    store,
		numbers:  numberStore,
		provider: provider,
		pub:      pub,
		selector: numbers.NewSelector(nil),
		log:      log,
		clock:    time.Now,
		interval: defaultInterval,
		batch:    defaultBatch,
		buckets:  make(map[string]*tokenBucket),
	}
	s.selector.Now = func() time.Time { return s.clock() }
	return s
}

// SetAudit attaches an audit sink for operational events. Optional;
// audit failures never block dialing.
func (s *Scheduler) SetAudit(a *audit.Service) { s.audit = a }

// SetInterval overrides the tick cadence. Zero or negative keeps the
// default.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info("scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick admits and submits dials for every running campaign.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock().UTC()
	running, err := s.store.ListCampaignsByStatus(ctx, campaigns.CampaignStatusRunning)
	if err != nil {
		s.log.Error("list running campaigns failed", "err", err)
		return
	}
	for _, c := range running {
		s.tickCampaign(ctx, c, now)
	}
}

func (s *Scheduler) tickCampaign(ctx context.Context, c campaigns.Campaign, now time.Time) {
	open, err := withinWindow(c, now)
	if err != nil {
		s.log.Warn("campaign window unusable, skipping", "campaign_id", c.CampaignID, "err", err)
		return
	}
	if !open {
		return
	}

	inFlight, err := s.store.CountInFlight(ctx, c.WorkspaceID, c.CampaignID)
	if err != nil {
		s.log.Error("count in-flight failed", "campaign_id", c.CampaignID, "err", err)
		return
	}
	maxConc := c.MaxConcurrentCalls
	if maxConc <= 0 {
		maxConc = defaultMaxConcurrent
	}
	slots := maxConc - inFlight
	if slots <= 0 {
		return
	}

	bucket := s.bucket(c, now)
	permits := bucket.available(now)
	if permits <= 0 {
		return
	}

	n := slots
	if permits < n {
		n = permits
	}
	if s.batch < n {
		n = s.batch
	}
	contacts, err := s.store.NextPendingContacts(ctx, c.WorkspaceID, c.CampaignID, n)
	if err != nil {
		s.log.Error("list pending contacts failed", "campaign_id", c.CampaignID, "err", err)
		return
	}

	for _, ct := range contacts {
		if !bucket.take(now) {
			return
		}
		err := s.dial(ctx, c, ct, now)
		if errors.Is(err, numbers.ErrExhausted) {
			// No eligible sending number. The contact stays pending and
			// the token goes back; a later tick retries once a cooldown
			// expires or the operator resets the pool.
			bucket.refund()
			s.log.Warn("number pool exhausted",
				"campaign_id", c.CampaignID, "pool_id", c.PoolID)
			s.pub.Publish(ctx, c.WorkspaceID, notify.TopicPoolExhausted, map[string]any{
				"campaign_id": c.CampaignID,
				"pool_id":     c.PoolID,
			})
			s.auditEvent(ctx, audit.Event{
				WorkspaceID: c.WorkspaceID,
				Type:        audit.EventTypePoolMaintenance,
				CampaignID:  c.CampaignID,
				PoolID:      c.PoolID,
				Message:     "number pool exhausted",
			})
			return
		}
		if err != nil {
			s.log.Error("dial submission failed",
				"campaign_id", c.CampaignID, "contact_id", ct.ContactID, "err", err)
		}
	}
}

// dial claims one contact and submits it to the provider. A submission
// failure releases the claim; the contact returns to pending unless its
// attempt count has reached the campaign's cap, in which case it is
// closed out as failed.
func (s *Scheduler) dial(ctx context.Context, c campaigns.Campaign, ct campaigns.Contact, now time.Time) error {
	from, memberID, err := s.pickNumber(ctx, c)
	if err != nil {
		return err
	}

	if err := s.store.ClaimContact(ctx, ct.WorkspaceID, ct.ContactID); err != nil {
		if errors.Is(err, campaigns.ErrNotClaimable) {
			// Another instance won the claim. Nothing to undo.
			return nil
		}
		return fmt.Errorf("claim contact: %w", err)
	}

	extID, err := s.provider.Submit(ctx, dialer.SubmitRequest{
		WorkspaceID: c.WorkspaceID,
		CampaignID:  c.CampaignID,
		AgentID:     c.AgentID,
		FromNumber:  from,
		ToNumber:    ct.PhoneNumber,
		Metadata:    map[string]string{"contact_id": ct.ContactID},
	})
	if err != nil {
		permanent := ct.Attempts+1 >= s.maxAttempts(c)
		if rerr := s.store.ReleaseContact(ctx, ct.WorkspaceID, ct.ContactID, err.Error(), permanent); rerr != nil {
			s.log.Error("release after submit failure failed",
				"contact_id", ct.ContactID, "err", rerr)
		}
		if permanent {
			s.log.Warn("contact failed permanently",
				"campaign_id", c.CampaignID, "contact_id", ct.ContactID,
				"attempts", ct.Attempts+1, "err", err)
			s.auditEvent(ctx, audit.Event{
				WorkspaceID: c.WorkspaceID,
				Type:        audit.EventTypeCampaignLifecycle,
				CampaignID:  c.CampaignID,
				ContactID:   ct.ContactID,
				Message:     "contact failed permanently: " + err.Error(),
			})
		}
		return fmt.Errorf("submit dial: %w", err)
	}

	call := calls.Call{
		CallID:       uuid.NewString(),
		WorkspaceID:  c.WorkspaceID,
		CampaignID:   c.CampaignID,
		ContactID:    ct.ContactID,
		ExternalID:   extID,
		From:         from,
		To:           ct.PhoneNumber,
		PoolMemberID: memberID,
		Status:       calls.CallStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateCall(ctx, call); err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	s.log.Info("dial submitted",
		"campaign_id", c.CampaignID, "contact_id", ct.ContactID,
		"call_id", call.CallID, "external_id", extID, "from", from)
	return nil
}

// pickNumber resolves the sending number for one dial. Campaigns with a
// pool rotate over it; the fallback number covers pool-less campaigns
// and an exhausted pool when one is configured.
func (s *Scheduler) pickNumber(ctx context.Context, c campaigns.Campaign) (number, memberID string, err error) {
	if c.PoolID == "" {
		if c.FallbackNumber == "" {
			return "", "", numbers.ErrExhausted
		}
		return c.FallbackNumber, "", nil
	}
	pool, err := s.numbers.GetPool(ctx, c.WorkspaceID, c.PoolID)
	if err != nil {
		return "", "", fmt.Errorf("load pool: %w", err)
	}
	members, err := s.numbers.ListMembers(ctx, c.WorkspaceID, c.PoolID)
	if err != nil {
		return "", "", fmt.Errorf("list pool members: %w", err)
	}
	m, err := s.selector.Select(members, pool.Strategy, pool.MaxCallsPerNumber)
	if err != nil {
		if errors.Is(err, numbers.ErrExhausted) && c.FallbackNumber != "" {
			return c.FallbackNumber, "", nil
		}
		return "", "", err
	}
	return m.Number, m.MemberID, nil
}

func (s *Scheduler) bucket(c campaigns.Campaign, now time.Time) *tokenBucket {
	rate := c.CallsPerMinute
	if rate <= 0 {
		rate = defaultCallsPerMinute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[c.CampaignID]
	if !ok {
		b = newTokenBucket(rate, now)
		s.buckets[c.CampaignID] = b
		return b
	}
	b.resize(rate)
	return b
}

func (s *Scheduler) maxAttempts(c campaigns.Campaign) int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return defaultMaxAttempts
}

func (s *Scheduler) auditEvent(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "type", string(e.Type), "err", err)
	}
}
