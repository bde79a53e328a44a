package reporting

import (
	"context"
	"testing"
	"time"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/outcome"
)

func TestReporting_WorkspaceIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", WorkspaceID: "w1", CampaignID: "camp", Status: calls.CallStatusCompleted, DurationSeconds: 30, CreatedAt: now},
		{CallID: "c2", WorkspaceID: "w2", CampaignID: "camp", Status: calls.CallStatusCompleted, DurationSeconds: 50, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{WorkspaceID: "w1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
}

func TestReporting_CallsSummaryBuckets(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusCompleted, DurationSeconds: 60, RecordingURL: "https://rec/1.mp3", CreatedAt: now},
		{CallID: "c2", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusVoicemail, DurationSeconds: 20, CreatedAt: now},
		{CallID: "c3", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusBusy, CreatedAt: now},
		{CallID: "c4", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusInProgress, DurationSeconds: 0, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{WorkspaceID: "w", CampaignID: "camp", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.CompletedCalls != 1 || out.VoicemailCalls != 1 || out.BusyCalls != 1 || out.InProgressCalls != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.AverageDurationSeconds != 20 {
		t.Fatalf("expected average 20s, got %d", out.AverageDurationSeconds)
	}
	if out.RecordedCalls != 1 {
		t.Fatalf("expected 1 recorded call, got %d", out.RecordedCalls)
	}
}

func TestReporting_OutcomeSummary(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusCompleted, Outcome: outcome.LabelInterested, CreatedAt: now},
		{CallID: "c2", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusCompleted, Outcome: outcome.LabelInterested, CreatedAt: now},
		{CallID: "c3", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusVoicemail, Outcome: outcome.LabelVoicemail, CreatedAt: now},
		{CallID: "c4", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusFailed, Outcome: outcome.LabelFailed, CreatedAt: now},
		// Non-terminal rows carry no outcome yet and are excluded.
		{CallID: "c5", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusRinging, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.OutcomeSummary(context.Background(), OutcomeSummaryRequest{WorkspaceID: "w", CampaignID: "camp", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalClassified != 4 {
		t.Fatalf("expected 4 classified, got %d", out.TotalClassified)
	}
	if out.ByLabel[outcome.LabelInterested] != 2 {
		t.Fatalf("unexpected label counts: %+v", out.ByLabel)
	}
	if out.ByCategory["positive"] != 2 || out.ByCategory["neutral"] != 1 || out.ByCategory["negative"] != 1 {
		t.Fatalf("unexpected category counts: %+v", out.ByCategory)
	}
}

func TestReporting_ConversionMetrics(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{CallID: "c1", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusCompleted, Outcome: outcome.LabelAppointment, CreatedAt: now},
		{CallID: "c2", WorkspaceID: "w", CampaignID: "camp", Status: calls.CallStatusFailed, Outcome: outcome.LabelFailed, CreatedAt: now},
	}

	svc := NewService(repo)
	m, err := svc.ConversionMetrics(context.Background(), ConversionMetricsRequest{WorkspaceID: "w", CampaignID: "camp", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if m.CallsAttempted != 2 || m.CallsConnected != 1 || m.Conversions != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.ConnectionRate == 0 || m.ConversionRate == 0 {
		t.Fatalf("expected non-zero rates")
	}
}
