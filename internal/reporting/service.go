package reporting

import (
	"context"
	"errors"
	"time"

	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/outcome"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce workspace filtering.
// - Implementations should query immutable sources (call records).
type Repository interface {
	ListCalls(ctx context.Context, workspaceID string, from, to time.Time, campaignID string) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.WorkspaceID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.WorkspaceID, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{WorkspaceID: req.WorkspaceID, CampaignID: req.CampaignID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusVoicemail:
			out.VoicemailCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusRinging, calls.CallStatusQueued:
			// not counted separately
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) OutcomeSummary(ctx context.Context, req OutcomeSummaryRequest) (OutcomeSummary, error) {
	if req.WorkspaceID == "" || req.CampaignID == "" {
		return OutcomeSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return OutcomeSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return OutcomeSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.WorkspaceID, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return OutcomeSummary{}, err
	}

	out := OutcomeSummary{
		WorkspaceID: req.WorkspaceID,
		CampaignID:  req.CampaignID,
		ByLabel:     map[string]int{},
		ByCategory:  map[string]int{},
	}
	for _, c := range rows {
		if !c.Status.IsTerminal() || c.Outcome == "" {
			continue
		}
		out.TotalClassified++
		out.ByLabel[c.Outcome]++
		out.ByCategory[string(outcome.CategoryOf(c.Outcome))]++
	}
	return out, nil
}

func (s *Service) ConversionMetrics(ctx context.Context, req ConversionMetricsRequest) (ConversionMetrics, error) {
	if req.WorkspaceID == "" || req.CampaignID == "" {
		return ConversionMetrics{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ConversionMetrics{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ConversionMetrics{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.WorkspaceID, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return ConversionMetrics{}, err
	}

	out := ConversionMetrics{WorkspaceID: req.WorkspaceID, CampaignID: req.CampaignID}
	out.CallsAttempted = len(rows)
	for _, c := range rows {
		if c.Status == calls.CallStatusCompleted {
			out.CallsConnected++
		}
		if c.Status.IsTerminal() && outcome.CategoryOf(c.Outcome) == outcome.CategoryPositive {
			out.Conversions++
		}
	}

	if out.CallsAttempted > 0 {
		out.ConnectionRate = float64(out.CallsConnected) / float64(out.CallsAttempted)
		out.ConversionRate = float64(out.Conversions) / float64(out.CallsAttempted)
	}
	return out, nil
}
