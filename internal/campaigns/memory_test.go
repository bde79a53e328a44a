package campaigns

import (
	"context"
	"testing"
	"time"

	"campaign-dialer/internal/calls"
)

func seedStore(t *testing.T) (*MemoryStore, time.Time) {
	t.Helper()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	s.PutCampaign(Campaign{
		CampaignID:  "camp",
		WorkspaceID: "w",
		Status:      CampaignStatusRunning,
		CreatedAt:   now,
	})
	s.PutContact(Contact{ContactID: "ct1", CampaignID: "camp", WorkspaceID: "w", PhoneNumber: "+15550001", Status: ContactStatusPending, CreatedAt: now})
	return s, now
}

func TestClaimContact_CASWinsOnce(t *testing.T) {
	s, _ := seedStore(t)
	ctx := context.Background()

	if err := s.ClaimContact(ctx, "w", "ct1"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if err := s.ClaimContact(ctx, "w", "ct1"); err != ErrNotClaimable {
		t.Fatalf("second claim should lose the CAS, got %v", err)
	}
}

func TestReleaseContact_RevertsAndCounts(t *testing.T) {
	s, _ := seedStore(t)
	ctx := context.Background()

	if err := s.ClaimContact(ctx, "w", "ct1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := s.ReleaseContact(ctx, "w", "ct1", "dial timeout", false); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	ct := s.Contacts["ct1"]
	if ct.Status != ContactStatusPending || ct.Attempts != 1 || ct.LastError != "dial timeout" {
		t.Fatalf("unexpected contact after release: %+v", ct)
	}

	if err := s.ClaimContact(ctx, "w", "ct1"); err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if err := s.ReleaseContact(ctx, "w", "ct1", "rejected", true); err != nil {
		t.Fatalf("permanent release failed: %v", err)
	}
	ct = s.Contacts["ct1"]
	if ct.Status != ContactStatusFailed || ct.Attempts != 2 {
		t.Fatalf("expected permanently failed contact, got %+v", ct)
	}
}

func TestApplyStatusUpdate_IdempotentTerminal(t *testing.T) {
	s, now := seedStore(t)
	ctx := context.Background()

	call := calls.Call{
		CallID: "c1", WorkspaceID: "w", CampaignID: "camp", ContactID: "ct1",
		ExternalID: "ext-1", Status: calls.CallStatusQueued, CreatedAt: now,
	}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("create call failed: %v", err)
	}

	upd := ApplyUpdate{
		ExternalID: "ext-1",
		Status:     calls.CallStatusCompleted,
		Outcome:    "Interested",
		Fields:     CallFields{DurationSeconds: 120},
		Terminal: &TerminalEffects{
			Bucket:        BucketConnected,
			ContactStatus: ContactStatusCompleted,
			Result:        "Interested",
		},
		Now: now.Add(2 * time.Minute),
	}

	res, err := s.ApplyStatusUpdate(ctx, upd)
	if err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if !res.FirstTerminal {
		t.Fatalf("expected first apply to cross the terminal boundary")
	}

	// Same terminal event again: fields merge, no re-count.
	upd.Fields.RecordingURL = "https://rec/1.mp3"
	res2, err := s.ApplyStatusUpdate(ctx, upd)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if res2.FirstTerminal {
		t.Fatalf("duplicate terminal event must not count again")
	}
	if res2.Call.RecordingURL != "https://rec/1.mp3" {
		t.Fatalf("late recording URL should merge in, got %q", res2.Call.RecordingURL)
	}

	camp := s.Campaigns["camp"]
	if camp.CompletedCalls != 1 || camp.ConnectedCalls != 1 {
		t.Fatalf("aggregates incremented more than once: %+v", camp)
	}
	if camp.CompletedCalls != camp.ConnectedCalls+camp.VoicemailCalls+camp.FailedCalls {
		t.Fatalf("counter invariant broken: %+v", camp)
	}
}

func TestApplyStatusUpdate_CampaignCompletion(t *testing.T) {
	s, now := seedStore(t)
	ctx := context.Background()

	s.PutContact(Contact{ContactID: "ct2", CampaignID: "camp", WorkspaceID: "w", PhoneNumber: "+15550002", Status: ContactStatusPending, CreatedAt: now})
	s.PutContact(Contact{ContactID: "ct3", CampaignID: "camp", WorkspaceID: "w", PhoneNumber: "+15550003", Status: ContactStatusPending, CreatedAt: now})

	completions := 0
	for i, ct := range []string{"ct1", "ct2", "ct3"} {
		ext := "ext-" + ct
		if err := s.ClaimContact(ctx, "w", ct); err != nil {
			t.Fatalf("claim %s failed: %v", ct, err)
		}
		err := s.CreateCall(ctx, calls.Call{
			CallID: "c" + ct, WorkspaceID: "w", CampaignID: "camp", ContactID: ct,
			ExternalID: ext, Status: calls.CallStatusQueued, CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create call failed: %v", err)
		}
		res, err := s.ApplyStatusUpdate(ctx, ApplyUpdate{
			ExternalID: ext,
			Status:     calls.CallStatusNoAnswer,
			Terminal: &TerminalEffects{
				Bucket:        BucketFailed,
				ContactStatus: ContactStatusFailed,
				Result:        "No Answer",
			},
			Now: now.Add(time.Minute),
		})
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if res.CampaignCompleted {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("campaign must complete exactly once, completed %d times", completions)
	}
	if s.Campaigns["camp"].Status != CampaignStatusCompleted {
		t.Fatalf("expected campaign completed, got %s", s.Campaigns["camp"].Status)
	}
}

func TestApplyStatusUpdate_UnknownExternalID(t *testing.T) {
	s, _ := seedStore(t)
	_, err := s.ApplyStatusUpdate(context.Background(), ApplyUpdate{ExternalID: "nope", Status: calls.CallStatusCompleted})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNextPendingContacts_FIFO(t *testing.T) {
	s, now := seedStore(t)
	s.PutContact(Contact{ContactID: "a-late", CampaignID: "camp", WorkspaceID: "w", Status: ContactStatusPending, CreatedAt: now.Add(time.Hour)})
	s.PutContact(Contact{ContactID: "b-early", CampaignID: "camp", WorkspaceID: "w", Status: ContactStatusPending, CreatedAt: now.Add(-time.Hour)})

	out, err := s.NextPendingContacts(context.Background(), "w", "camp", 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(out))
	}
	if out[0].ContactID != "b-early" || out[2].ContactID != "a-late" {
		t.Fatalf("expected FIFO order, got %v, %v, %v", out[0].ContactID, out[1].ContactID, out[2].ContactID)
	}
}

func TestSetCampaignStatus_Conditional(t *testing.T) {
	s, _ := seedStore(t)
	ctx := context.Background()

	err := s.SetCampaignStatus(ctx, "w", "camp", []CampaignStatus{CampaignStatusRunning}, CampaignStatusPaused)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	err = s.SetCampaignStatus(ctx, "w", "camp", []CampaignStatus{CampaignStatusRunning}, CampaignStatusPaused)
	if err != ErrBadTransition {
		t.Fatalf("expected ErrBadTransition, got %v", err)
	}
}
