package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campaign-dialer/internal/calls"
)

// PostgresRepo reads call records for reporting. Queries are read-only
// and scoped by workspace_id in SQL, never in application code.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// ListCalls returns the columns reporting aggregates over; transcript
// and extracted data stay out of the result set on purpose.
func (r *PostgresRepo) ListCalls(ctx context.Context, workspaceID string, from, to time.Time, campaignID string) ([]calls.Call, error) {
	if workspaceID == "" {
		return nil, ErrInvalidRequest
	}
	const q = `
SELECT call_id, workspace_id, campaign_id, status, duration,
       recording_url, outcome, created_at
FROM calls
WHERE workspace_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR campaign_id = $4)
ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, workspaceID, from, to, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list calls for reporting: %w", err)
	}
	defer rows.Close()

	out := make([]calls.Call, 0)
	for rows.Next() {
		var c calls.Call
		var recordingURL, outcome sql.NullString
		if err := rows.Scan(
			&c.CallID,
			&c.WorkspaceID,
			&c.CampaignID,
			&c.Status,
			&c.DurationSeconds,
			&recordingURL,
			&outcome,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		c.RecordingURL = recordingURL.String
		c.Outcome = outcome.String
		out = append(out, c)
	}
	return out, rows.Err()
}
