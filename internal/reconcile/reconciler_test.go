package reconcile

import (
	"context"
	"testing"
	"time"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/dialer"
	"campaign-dialer/internal/notify"
	"campaign-dialer/internal/numbers"
	"campaign-dialer/internal/outcome"
)

type fixture struct {
	store   *campaigns.MemoryStore
	numbers *numbers.MemoryStore
	pub     *notify.MemoryPublisher
	trail   *audit.MemoryRepo
	rec     *Reconciler
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   campaigns.NewMemoryStore(),
		numbers: numbers.NewMemoryStore(),
		pub:     notify.NewMemoryPublisher(),
		trail:   audit.NewMemoryRepo(),
		now:     time.Unix(1700000000, 0).UTC(),
	}
	f.rec = NewReconciler(f.store, f.numbers, f.pub, nil)
	f.rec.SetAudit(audit.NewService(f.trail))
	f.rec.clock = func() time.Time { return f.now }

	f.store.PutCampaign(campaigns.Campaign{
		CampaignID: "camp", WorkspaceID: "w", Status: campaigns.CampaignStatusRunning,
		PoolID: "p", CreatedAt: f.now,
	})
	f.store.PutContact(campaigns.Contact{
		ContactID: "ct1", CampaignID: "camp", WorkspaceID: "w",
		PhoneNumber: "+15550001", Status: campaigns.ContactStatusInProgress, CreatedAt: f.now,
	})
	f.numbers.PutPool(numbers.Pool{PoolID: "p", WorkspaceID: "w", Strategy: numbers.StrategyRoundRobin, MaxCallsPerNumber: 100, CooldownMinutes: 60})
	f.numbers.PutMember(numbers.PoolMember{MemberID: "m1", PoolID: "p", WorkspaceID: "w", Number: "+15559999", CallsMade: 99, IsActive: true, IsHealthy: true})

	if err := f.store.CreateCall(context.Background(), calls.Call{
		CallID: "c1", WorkspaceID: "w", CampaignID: "camp", ContactID: "ct1",
		ExternalID: "ext-1", PoolMemberID: "m1",
		From: "+15559999", To: "+15550001",
		Status: calls.CallStatusQueued, CreatedAt: f.now,
	}); err != nil {
		t.Fatalf("seed call failed: %v", err)
	}
	return f
}

func TestApply_TerminalOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := dialer.StatusEvent{
		ExternalID:      "ext-1",
		ProviderStatus:  "completed",
		DurationSeconds: 120,
		Sentiment:       "positive",
	}
	if err := f.rec.Apply(ctx, ev); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if err := f.rec.Apply(ctx, ev); err != nil {
		t.Fatalf("second apply failed: %v", err)
	}

	camp := f.store.Campaigns["camp"]
	if camp.CompletedCalls != 1 || camp.ConnectedCalls != 1 {
		t.Fatalf("terminal event must count once, got %+v", camp)
	}
	if camp.CompletedCalls != camp.ConnectedCalls+camp.VoicemailCalls+camp.FailedCalls {
		t.Fatalf("counter invariant broken: %+v", camp)
	}
}

func TestApply_WebhookAndPollInterleave(t *testing.T) {
	// Two deliveries of the same completion, the later one carrying the
	// recording URL the first one lacked. Aggregates count once, the
	// final record has the URL.
	f := newFixture(t)
	ctx := context.Background()

	first := dialer.StatusEvent{ExternalID: "ext-1", ProviderStatus: "completed", DurationSeconds: 45}
	second := first
	second.RecordingURL = "https://rec/ext-1.mp3"

	if err := f.rec.Apply(ctx, first); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := f.rec.Apply(ctx, second); err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	c, err := f.store.GetCall(ctx, "w", "c1")
	if err != nil {
		t.Fatalf("get call failed: %v", err)
	}
	if c.RecordingURL != "https://rec/ext-1.mp3" {
		t.Fatalf("late recording URL must merge, got %q", c.RecordingURL)
	}
	if f.store.Campaigns["camp"].CompletedCalls != 1 {
		t.Fatalf("aggregates must count once")
	}
}

func TestApply_UnknownExternalIDAcknowledged(t *testing.T) {
	f := newFixture(t)
	err := f.rec.Apply(context.Background(), dialer.StatusEvent{ExternalID: "never-submitted", ProviderStatus: "completed"})
	if err != nil {
		t.Fatalf("unknown dial must be acknowledged, got %v", err)
	}
}

func TestApply_ExplicitVoicemailSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := dialer.StatusEvent{
		ExternalID:       "ext-1",
		ProviderStatus:   "completed",
		SystemResultType: "voicemail_detected",
		Transcript:       "hello? yes I'm very interested, tell me more",
	}
	if err := f.rec.Apply(ctx, ev); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	c, _ := f.store.GetCall(ctx, "w", "c1")
	if c.Status != calls.CallStatusVoicemail {
		t.Fatalf("explicit signal must force voicemail, got %s", c.Status)
	}
	if c.Outcome != outcome.LabelVoicemail {
		t.Fatalf("voicemail outcome label fixed, got %q", c.Outcome)
	}
	if f.store.Campaigns["camp"].VoicemailCalls != 1 {
		t.Fatalf("voicemail bucket should count")
	}
}

func TestApply_TranscriptVoicemailHeuristic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := dialer.StatusEvent{
		ExternalID:     "ext-1",
		ProviderStatus: "completed",
		Transcript:     "You've reached Sam. Please leave a message after the beep.",
	}
	if err := f.rec.Apply(ctx, ev); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	c, _ := f.store.GetCall(ctx, "w", "c1")
	if c.Status != calls.CallStatusVoicemail {
		t.Fatalf("heuristic should force voicemail, got %s", c.Status)
	}
}

func TestApply_HeuristicDoesNotOverrideStrongerSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An explicit non-voicemail result type suppresses the transcript
	// heuristic.
	ev := dialer.StatusEvent{
		ExternalID:       "ext-1",
		ProviderStatus:   "completed",
		SystemResultType: "call_transfer",
		Transcript:       "let me transfer you. if unavailable leave a message after the tone",
	}
	if err := f.rec.Apply(ctx, ev); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	c, _ := f.store.GetCall(ctx, "w", "c1")
	if c.Status != calls.CallStatusCompleted {
		t.Fatalf("explicit non-voicemail signal must win, got %s", c.Status)
	}
}

func TestApply_FailureBucketsRollUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, dialer.StatusEvent{ExternalID: "ext-1", ProviderStatus: "busy"}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	camp := f.store.Campaigns["camp"]
	if camp.FailedCalls != 1 || camp.CompletedCalls != 1 {
		t.Fatalf("busy must roll into failed bucket: %+v", camp)
	}
	ct := f.store.Contacts["ct1"]
	if ct.Status != campaigns.ContactStatusFailed || ct.Result != outcome.LabelBusy {
		t.Fatalf("unexpected contact close-out: %+v", ct)
	}
}

func TestApply_NonTerminalDoesNotCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, dialer.StatusEvent{ExternalID: "ext-1", ProviderStatus: "ringing"}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	camp := f.store.Campaigns["camp"]
	if camp.CompletedCalls != 0 {
		t.Fatalf("non-terminal event must not count: %+v", camp)
	}
	c, _ := f.store.GetCall(ctx, "w", "c1")
	if c.Status != calls.CallStatusRinging {
		t.Fatalf("expected ringing, got %s", c.Status)
	}
}

func TestApply_UnrecognizedProviderStatusIsSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, dialer.StatusEvent{ExternalID: "ext-1", ProviderStatus: "quantum-flux"}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	c, _ := f.store.GetCall(ctx, "w", "c1")
	if c.Status.IsTerminal() {
		t.Fatalf("unknown status must map to a non-terminal status, got %s", c.Status)
	}
}

func TestApply_NumberUsageAndCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, dialer.StatusEvent{ExternalID: "ext-1", ProviderStatus: "completed", DurationSeconds: 30}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	m := f.numbers.Members["m1"]
	if m.CallsMade != 100 {
		t.Fatalf("expected calls_made bumped to 100, got %d", m.CallsMade)
	}
	if m.CooldownUntil == nil || !m.CooldownUntil.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("member should enter cooldown at the ceiling, got %v", m.CooldownUntil)
	}
	if m.LastUsedAt == nil || !m.LastUsedAt.Equal(f.now) {
		t.Fatalf("last_used_at should be stamped, got %v", m.LastUsedAt)
	}
}

func TestApply_CampaignCompletedNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.rec.Apply(ctx, dialer.StatusEvent{ExternalID: "ext-1", ProviderStatus: "completed", DurationSeconds: 90}); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if got := len(f.pub.ByTopic(notify.TopicCampaignCompleted)); got != 1 {
		t.Fatalf("expected exactly one completion notification, got %d", got)
	}
	if got := len(f.pub.ByTopic(notify.TopicCallUpdated)); got != 1 {
		t.Fatalf("expected a call.updated notification, got %d", got)
	}
	if f.store.Campaigns["camp"].Status != campaigns.CampaignStatusCompleted {
		t.Fatalf("campaign should complete when the last contact closes")
	}
	events := f.trail.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeCampaignLifecycle || events[0].CampaignID != "camp" {
		t.Fatalf("expected one campaign lifecycle audit record, got %+v", events)
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]calls.CallStatus{
		"queued":      calls.CallStatusQueued,
		"Ringing":     calls.CallStatusRinging,
		"in-progress": calls.CallStatusInProgress,
		"ended":       calls.CallStatusCompleted,
		"no-answer":   calls.CallStatusNoAnswer,
		"machine":     calls.CallStatusVoicemail,
		"garbage":     calls.CallStatusRinging,
	}
	for raw, want := range cases {
		if got := MapProviderStatus(raw); got != want {
			t.Fatalf("%q: expected %s, got %s", raw, want, got)
		}
	}
}
