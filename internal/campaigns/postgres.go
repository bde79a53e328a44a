package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"campaign-dialer/internal/calls"
	"campaign-dialer/pkg/utils"
)

// PostgresStore implements Store on database/sql (pgx stdlib driver).
//
// Assumed tables: campaigns, campaign_contacts, calls.
// Assumed constraints:
// - UNIQUE (external_id) on calls
// - campaign_contacts.status CHECK in (pending,in_progress,completed,failed)
//
// All multi-row writes run inside a single transaction via utils.WithTx,
// with the call row locked FOR UPDATE so that webhook and poll deliveries
// for the same call serialize at the database.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

func (s *PostgresStore) GetCampaign(ctx context.Context, workspaceID, campaignID string) (Campaign, error) {
	if workspaceID == "" || campaignID == "" {
		return Campaign{}, ErrInvalidInput
	}
	return getCampaign(ctx, s.db, workspaceID, campaignID)
}

func (s *PostgresStore) ListCampaignsByStatus(ctx context.Context, statuses ...CampaignStatus) ([]Campaign, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	vals := make([]string, 0, len(statuses))
	for _, st := range statuses {
		vals = append(vals, string(st))
	}
	raw, _ := json.Marshal(vals)
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE status = ANY(SELECT json_array_elements_text($1::json))
ORDER BY campaign_id
`
	rows, err := s.db.QueryContext(ctx, q, string(raw))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetCampaignStatus(ctx context.Context, workspaceID, campaignID string, from []CampaignStatus, to CampaignStatus) error {
	if workspaceID == "" || campaignID == "" {
		return ErrInvalidInput
	}
	fromVals := make([]string, 0, len(from))
	for _, f := range from {
		fromVals = append(fromVals, string(f))
	}
	raw, _ := json.Marshal(fromVals)
	const q = `
UPDATE campaigns
SET status = $4, updated_at = $5
WHERE workspace_id = $1 AND campaign_id = $2
  AND ($3::json IS NULL OR json_array_length($3::json) = 0
       OR status = ANY(SELECT json_array_elements_text($3::json)))
`
	res, err := s.db.ExecContext(ctx, q, workspaceID, campaignID, string(raw), string(to), s.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing row from a failed precondition.
		if _, err := getCampaign(ctx, s.db, workspaceID, campaignID); err != nil {
			return err
		}
		return ErrBadTransition
	}
	return nil
}

func (s *PostgresStore) NextPendingContacts(ctx context.Context, workspaceID, campaignID string, limit int) ([]Contact, error) {
	if workspaceID == "" || campaignID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT contact_id, campaign_id, workspace_id, name, phone_number, status,
       attempts, last_error, result, completed_at, created_at
FROM campaign_contacts
WHERE workspace_id = $1 AND campaign_id = $2 AND status = 'pending'
ORDER BY created_at, contact_id
LIMIT $3
`
	rows, err := s.db.QueryContext(ctx, q, workspaceID, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		var lastError, result sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(
			&c.ContactID,
			&c.CampaignID,
			&c.WorkspaceID,
			&c.Name,
			&c.PhoneNumber,
			&c.Status,
			&c.Attempts,
			&lastError,
			&result,
			&completedAt,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		c.LastError = lastError.String
		c.Result = result.String
		if completedAt.Valid {
			t := completedAt.Time
			c.CompletedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClaimContact(ctx context.Context, workspaceID, contactID string) error {
	if workspaceID == "" || contactID == "" {
		return ErrInvalidInput
	}
	// Conditional update on status = pending is the CAS that prevents two
	// scheduler instances from double-dialing the same contact.
	const q = `
UPDATE campaign_contacts
SET status = 'in_progress'
WHERE workspace_id = $1 AND contact_id = $2 AND status = 'pending'
`
	res, err := s.db.ExecContext(ctx, q, workspaceID, contactID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotClaimable
	}
	return nil
}

func (s *PostgresStore) ReleaseContact(ctx context.Context, workspaceID, contactID, lastError string, permanent bool) error {
	if workspaceID == "" || contactID == "" {
		return ErrInvalidInput
	}
	next := string(ContactStatusPending)
	if permanent {
		next = string(ContactStatusFailed)
	}
	const q = `
UPDATE campaign_contacts
SET status = $3, attempts = attempts + 1, last_error = $4
WHERE workspace_id = $1 AND contact_id = $2 AND status = 'in_progress'
`
	res, err := s.db.ExecContext(ctx, q, workspaceID, contactID, next, lastError)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBadTransition
	}
	return nil
}

func (s *PostgresStore) CreateCall(ctx context.Context, c calls.Call) error {
	if c.CallID == "" || c.WorkspaceID == "" || c.ExternalID == "" {
		return ErrInvalidInput
	}
	extracted, err := marshalExtracted(c.ExtractedData)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO calls (
  call_id, workspace_id, campaign_id, contact_id, external_id,
  from_number, to_number, pool_member_id, status, started_at, answered_at,
  ended_at, duration, transcript, recording_url, summary, sentiment,
  outcome, extracted_data, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)
`
	_, err = s.db.ExecContext(ctx, q,
		c.CallID,
		c.WorkspaceID,
		c.CampaignID,
		c.ContactID,
		c.ExternalID,
		c.From,
		c.To,
		c.PoolMemberID,
		string(c.Status),
		c.StartedAt,
		c.AnsweredAt,
		c.EndedAt,
		c.DurationSeconds,
		c.Transcript,
		c.RecordingURL,
		c.Summary,
		c.Sentiment,
		c.Outcome,
		extracted,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetCall(ctx context.Context, workspaceID, callID string) (calls.Call, error) {
	if workspaceID == "" || callID == "" {
		return calls.Call{}, ErrInvalidInput
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE workspace_id = $1 AND call_id = $2
`
	row := s.db.QueryRowContext(ctx, q, workspaceID, callID)
	c, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.Call{}, ErrNotFound
		}
		return calls.Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListCalls(ctx context.Context, workspaceID, campaignID string) ([]calls.Call, error) {
	if workspaceID == "" {
		return nil, ErrInvalidInput
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE workspace_id = $1 AND ($2 = '' OR campaign_id = $2)
ORDER BY created_at, call_id
`
	rows, err := s.db.QueryContext(ctx, q, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountInFlight(ctx context.Context, workspaceID, campaignID string) (int, error) {
	if workspaceID == "" || campaignID == "" {
		return 0, ErrInvalidInput
	}
	const q = `
SELECT COUNT(*)
FROM calls
WHERE workspace_id = $1 AND campaign_id = $2
  AND status IN ('queued','ringing','in_progress')
`
	var n int
	if err := s.db.QueryRowContext(ctx, q, workspaceID, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) ListActiveCalls(ctx context.Context, limit int) ([]calls.Call, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE status IN ('queued','ringing','in_progress')
ORDER BY created_at, call_id
LIMIT $1
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ApplyStatusUpdate(ctx context.Context, upd ApplyUpdate) (ApplyResult, error) {
	if upd.ExternalID == "" {
		return ApplyResult{}, ErrInvalidInput
	}
	now := upd.Now
	if now.IsZero() {
		now = s.clock().UTC()
	}

	var out ApplyResult
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockCallByExternalID(ctx, tx, upd.ExternalID)
		if err != nil {
			return err
		}

		prevTerminal := c.Status.IsTerminal()
		mergeCallFields(&c, upd.Fields)
		c.UpdatedAt = now

		if !prevTerminal {
			c.Status = upd.Status
			if upd.Outcome != "" {
				c.Outcome = upd.Outcome
			}
		}

		if err := updateCall(ctx, tx, c); err != nil {
			return err
		}
		out.Call = c

		if prevTerminal || !upd.Status.IsTerminal() || upd.Terminal == nil {
			return nil
		}
		out.FirstTerminal = true

		eff := *upd.Terminal
		if err := closeContact(ctx, tx, c.WorkspaceID, c.ContactID, eff, now); err != nil {
			return err
		}

		camp, err := bumpCampaignCounters(ctx, tx, c.WorkspaceID, c.CampaignID, eff.Bucket, now)
		if err != nil {
			return err
		}

		// Completion check must see the contact update above, which it
		// does because both run in this transaction.
		if camp.Status == CampaignStatusRunning {
			open, err := countOpenContacts(ctx, tx, c.WorkspaceID, c.CampaignID)
			if err != nil {
				return err
			}
			if open == 0 {
				if err := markCampaignCompleted(ctx, tx, c.WorkspaceID, c.CampaignID, now); err != nil {
					return err
				}
				camp.Status = CampaignStatusCompleted
				out.CampaignCompleted = true
			}
		}
		out.Campaign = camp
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return out, nil
}

/* ===================== row helpers ===================== */

const campaignColumns = `
campaign_id, workspace_id, name, agent_id, status,
calls_per_minute, max_concurrent_calls, max_attempts,
schedule_type, time_window_start, time_window_end, timezone, recurring_days,
pool_id, fallback_number,
completed_calls, connected_calls, voicemail_calls, failed_calls,
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(r rowScanner) (Campaign, error) {
	var c Campaign
	var days sql.NullString
	var windowStart, windowEnd, tz, poolID, fallback sql.NullString
	if err := r.Scan(
		&c.CampaignID,
		&c.WorkspaceID,
		&c.Name,
		&c.AgentID,
		&c.Status,
		&c.CallsPerMinute,
		&c.MaxConcurrentCalls,
		&c.MaxAttempts,
		&c.ScheduleType,
		&windowStart,
		&windowEnd,
		&tz,
		&days,
		&poolID,
		&fallback,
		&c.CompletedCalls,
		&c.ConnectedCalls,
		&c.VoicemailCalls,
		&c.FailedCalls,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Campaign{}, err
	}
	c.TimeWindowStart = windowStart.String
	c.TimeWindowEnd = windowEnd.String
	c.Timezone = tz.String
	c.PoolID = poolID.String
	c.FallbackNumber = fallback.String
	if days.Valid && days.String != "" {
		var ds []time.Weekday
		if err := json.Unmarshal([]byte(days.String), &ds); err == nil {
			c.RecurringDays = ds
		}
	}
	return c, nil
}

func getCampaign(ctx context.Context, db *sql.DB, workspaceID, campaignID string) (Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE workspace_id = $1 AND campaign_id = $2
`
	c, err := scanCampaign(db.QueryRowContext(ctx, q, workspaceID, campaignID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

const callColumns = `
call_id, workspace_id, campaign_id, contact_id, external_id,
from_number, to_number, pool_member_id, status, started_at, answered_at,
ended_at, duration, transcript, recording_url, summary, sentiment,
outcome, extracted_data, created_at, updated_at`

func scanCall(r rowScanner) (calls.Call, error) {
	var c calls.Call
	var startedAt, answeredAt, endedAt sql.NullTime
	var poolMemberID sql.NullString
	var transcript, recordingURL, summary, sentiment, outcome, extracted sql.NullString
	if err := r.Scan(
		&c.CallID,
		&c.WorkspaceID,
		&c.CampaignID,
		&c.ContactID,
		&c.ExternalID,
		&c.From,
		&c.To,
		&poolMemberID,
		&c.Status,
		&startedAt,
		&answeredAt,
		&endedAt,
		&c.DurationSeconds,
		&transcript,
		&recordingURL,
		&summary,
		&sentiment,
		&outcome,
		&extracted,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return calls.Call{}, err
	}
	c.PoolMemberID = poolMemberID.String
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if answeredAt.Valid {
		t := answeredAt.Time
		c.AnsweredAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	c.Transcript = transcript.String
	c.RecordingURL = recordingURL.String
	c.Summary = summary.String
	c.Sentiment = sentiment.String
	c.Outcome = outcome.String
	if extracted.Valid && extracted.String != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(extracted.String), &m); err == nil {
			c.ExtractedData = m
		}
	}
	return c, nil
}

func lockCallByExternalID(ctx context.Context, tx *sql.Tx, externalID string) (calls.Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE external_id = $1
FOR UPDATE
`
	c, err := scanCall(tx.QueryRowContext(ctx, q, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.Call{}, ErrNotFound
		}
		return calls.Call{}, err
	}
	return c, nil
}

func updateCall(ctx context.Context, tx *sql.Tx, c calls.Call) error {
	extracted, err := marshalExtracted(c.ExtractedData)
	if err != nil {
		return err
	}
	const q = `
UPDATE calls
SET status = $2, started_at = $3, answered_at = $4, ended_at = $5,
    duration = $6, transcript = $7, recording_url = $8, summary = $9,
    sentiment = $10, outcome = $11, extracted_data = $12, updated_at = $13
WHERE call_id = $1
`
	_, err = tx.ExecContext(ctx, q,
		c.CallID,
		string(c.Status),
		c.StartedAt,
		c.AnsweredAt,
		c.EndedAt,
		c.DurationSeconds,
		c.Transcript,
		c.RecordingURL,
		c.Summary,
		c.Sentiment,
		c.Outcome,
		extracted,
		c.UpdatedAt,
	)
	return err
}

func closeContact(ctx context.Context, tx *sql.Tx, workspaceID, contactID string, eff TerminalEffects, now time.Time) error {
	if contactID == "" {
		return nil
	}
	const q = `
UPDATE campaign_contacts
SET status = $3, result = $4, completed_at = $5
WHERE workspace_id = $1 AND contact_id = $2
`
	_, err := tx.ExecContext(ctx, q, workspaceID, contactID, string(eff.ContactStatus), eff.Result, now)
	return err
}

func bumpCampaignCounters(ctx context.Context, tx *sql.Tx, workspaceID, campaignID string, bucket CounterBucket, now time.Time) (Campaign, error) {
	col := "failed_calls"
	switch bucket {
	case BucketConnected:
		col = "connected_calls"
	case BucketVoicemail:
		col = "voicemail_calls"
	}
	q := `
UPDATE campaigns
SET completed_calls = completed_calls + 1,
    ` + col + ` = ` + col + ` + 1,
    updated_at = $3
WHERE workspace_id = $1 AND campaign_id = $2
RETURNING ` + campaignColumns + `
`
	c, err := scanCampaign(tx.QueryRowContext(ctx, q, workspaceID, campaignID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	return c, nil
}

func countOpenContacts(ctx context.Context, tx *sql.Tx, workspaceID, campaignID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM campaign_contacts
WHERE workspace_id = $1 AND campaign_id = $2
  AND status IN ('pending','in_progress')
`
	var n int
	if err := tx.QueryRowContext(ctx, q, workspaceID, campaignID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func markCampaignCompleted(ctx context.Context, tx *sql.Tx, workspaceID, campaignID string, now time.Time) error {
	const q = `
UPDATE campaigns
SET status = 'completed', updated_at = $3
WHERE workspace_id = $1 AND campaign_id = $2 AND status = 'running'
`
	_, err := tx.ExecContext(ctx, q, workspaceID, campaignID, now)
	return err
}

func marshalExtracted(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
