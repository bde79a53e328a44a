package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/dialer"
	"campaign-dialer/internal/notify"
	"campaign-dialer/internal/numbers"
	"campaign-dialer/internal/outcome"
)

// Reconciler is the single normalization point for dial status updates.
// Webhook deliveries and poll discoveries both call Apply, so there is
// exactly one code path from provider event to stored state.
//
// Idempotency lives in the store: the terminal boundary is decided there,
// inside the same transaction as the counter updates. The reconciler can
// therefore be called with the same event any number of times, in any
// interleaving with other sources, without double-counting.
type Reconciler struct {
	store   campaigns.Store
	numbers numbers.Store
	pub     notify.Publisher
	audit   *audit.Service
	log     *slog.Logger
	clock   func() time.Time
}

func NewReconciler(store campaigns.Store, numberStore numbers.Store, pub notify.Publisher, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:   store,
		numbers: numberStore,
		pub:     pub,
		log:     log,
		clock:   time.Now,
	}
}

// SetAudit attaches an audit sink for campaign completion records.
// Optional; audit failures never fail reconciliation.
func (r *Reconciler) SetAudit(a *audit.Service) { r.audit = a }

// Apply reconciles one normalized status event.
//
// Unknown external ids are acknowledged and dropped (nil error): the
// provider retries webhooks on error responses, and retry storms over
// calls we never created help nobody. A non-nil return means the event
// genuinely could not be persisted and the source should redeliver.
func (r *Reconciler) Apply(ctx context.Context, ev dialer.StatusEvent) error {
	if ev.ExternalID == "" {
		r.log.Debug("status event without external id dropped")
		return nil
	}
	now := r.clock().UTC()

	status := MapProviderStatus(ev.ProviderStatus)

	// Voicemail detection, two layers. The explicit provider signal
	// always wins. The transcript heuristic only fires in its absence,
	// and never downgrades a stronger terminal status like failed or
	// busy.
	voicemail := false
	switch {
	case IsVoicemailSignal(ev.SystemResultType):
		voicemail = true
	case ev.SystemResultType == "" && outcome.LooksLikeVoicemail(ev.Transcript):
		if status == calls.CallStatusCompleted || !status.IsTerminal() {
			voicemail = true
		}
	}
	if voicemail {
		status = calls.CallStatusVoicemail
	}

	var label string
	if voicemail {
		label = outcome.LabelVoicemail
	} else if status.IsTerminal() {
		label = outcome.Classify(outcome.Evidence{
			Status:          status,
			ExtractedData:   ev.ExtractedData,
			Transcript:      ev.Transcript,
			Summary:         ev.Summary,
			Sentiment:       ev.Sentiment,
			DurationSeconds: ev.DurationSeconds,
		})
	}

	upd := campaigns.ApplyUpdate{
		ExternalID: ev.ExternalID,
		Status:     status,
		Outcome:    label,
		Fields: campaigns.CallFields{
			StartedAt:       ev.StartedAt,
			AnsweredAt:      ev.AnsweredAt,
			EndedAt:         ev.EndedAt,
			DurationSeconds: ev.DurationSeconds,
			Transcript:      ev.Transcript,
			RecordingURL:    ev.RecordingURL,
			Summary:         ev.Summary,
			Sentiment:       ev.Sentiment,
			ExtractedData:   ev.ExtractedData,
		},
		Now: now,
	}
	if status.IsTerminal() {
		upd.Terminal = &campaigns.TerminalEffects{
			Bucket:        bucketFor(status),
			ContactStatus: contactStatusFor(status),
			Result:        label,
		}
	}

	res, err := r.store.ApplyStatusUpdate(ctx, upd)
	if err != nil {
		if errors.Is(err, campaigns.ErrNotFound) {
			r.log.Debug("status event for unknown dial dropped", "external_id", ev.ExternalID)
			return nil
		}
		return err
	}

	if res.FirstTerminal {
		r.recordNumberUse(ctx, res.Call, now)
	}

	r.notify(ctx, res)
	r.auditCompleted(ctx, res)
	return nil
}

func bucketFor(status calls.CallStatus) campaigns.CounterBucket {
	switch status {
	case calls.CallStatusCompleted:
		return campaigns.BucketConnected
	case calls.CallStatusVoicemail:
		return campaigns.BucketVoicemail
	default: // failed, busy, no_answer
		return campaigns.BucketFailed
	}
}

func contactStatusFor(status calls.CallStatus) campaigns.ContactStatus {
	switch status {
	case calls.CallStatusCompleted, calls.CallStatusVoicemail:
		return campaigns.ContactStatusCompleted
	default:
		return campaigns.ContactStatusFailed
	}
}

// recordNumberUse bumps the sending number's usage and enters cooldown at
// the pool's ceiling. Best-effort relative to the committed
// reconciliation: a store error here is logged, the poll cycle does not
// redeliver just for it.
func (r *Reconciler) recordNumberUse(ctx context.Context, c calls.Call, now time.Time) {
	if r.numbers == nil || c.PoolMemberID == "" {
		return
	}
	camp, err := r.store.GetCampaign(ctx, c.WorkspaceID, c.CampaignID)
	if err != nil {
		r.log.Warn("number use: campaign lookup failed", "campaign_id", c.CampaignID, "err", err)
		return
	}
	if camp.PoolID == "" {
		return
	}
	pool, err := r.numbers.GetPool(ctx, c.WorkspaceID, camp.PoolID)
	if err != nil {
		r.log.Warn("number use: pool lookup failed", "pool_id", camp.PoolID, "err", err)
		return
	}
	cooldown := time.Duration(pool.CooldownMinutes) * time.Minute
	if _, err := r.numbers.RecordUse(ctx, c.WorkspaceID, c.PoolMemberID, now, pool.MaxCallsPerNumber, cooldown); err != nil {
		r.log.Warn("number use update failed", "member_id", c.PoolMemberID, "err", err)
	}
}

func (r *Reconciler) notify(ctx context.Context, res campaigns.ApplyResult) {
	if r.pub == nil {
		return
	}
	ws := res.Call.WorkspaceID
	r.pub.Publish(ctx, ws, notify.TopicCallUpdated, res.Call)
	if res.FirstTerminal {
		r.pub.Publish(ctx, ws, notify.TopicCampaignStats, res.Campaign)
	}
	if res.CampaignCompleted {
		r.pub.Publish(ctx, ws, notify.TopicCampaignCompleted, res.Campaign)
	}
}

func (r *Reconciler) auditCompleted(ctx context.Context, res campaigns.ApplyResult) {
	if r.audit == nil || !res.CampaignCompleted {
		return
	}
	err := r.audit.Append(ctx, audit.Event{
		WorkspaceID: res.Campaign.WorkspaceID,
		Type:        audit.EventTypeCampaignLifecycle,
		CampaignID:  res.Campaign.CampaignID,
		Message:     "campaign completed",
	})
	if err != nil {
		r.log.Warn("audit append failed", "campaign_id", res.Campaign.CampaignID, "err", err)
	}
}
