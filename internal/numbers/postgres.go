package numbers

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore implements Store on database/sql (pgx stdlib driver).
//
// Assumed tables: number_pools, pool_members.
// RecordUse is a single UPDATE ... RETURNING so the usage bump and the
// cooldown decision are atomic per member row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetPool(ctx context.Context, workspaceID, poolID string) (Pool, error) {
	if workspaceID == "" || poolID == "" {
		return Pool{}, ErrInvalidInput
	}
	const q = `
SELECT pool_id, workspace_id, name, strategy, max_calls_per_number, cooldown_minutes, created_at
FROM number_pools
WHERE workspace_id = $1 AND pool_id = $2
`
	var p Pool
	if err := s.db.QueryRowContext(ctx, q, workspaceID, poolID).Scan(
		&p.PoolID,
		&p.WorkspaceID,
		&p.Name,
		&p.Strategy,
		&p.MaxCallsPerNumber,
		&p.CooldownMinutes,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pool{}, ErrNotFound
		}
		return Pool{}, err
	}
	return p, nil
}

const memberColumns = `
member_id, pool_id, workspace_id, number, calls_made, last_used_at,
is_healthy, spam_score, cooldown_until, weight, is_active`

func scanMember(r interface{ Scan(...any) error }) (PoolMember, error) {
	var m PoolMember
	var lastUsed, cooldown sql.NullTime
	if err := r.Scan(
		&m.MemberID,
		&m.PoolID,
		&m.WorkspaceID,
		&m.Number,
		&m.CallsMade,
		&lastUsed,
		&m.IsHealthy,
		&m.SpamScore,
		&cooldown,
		&m.Weight,
		&m.IsActive,
	); err != nil {
		return PoolMember{}, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		m.LastUsedAt = &t
	}
	if cooldown.Valid {
		t := cooldown.Time
		m.CooldownUntil = &t
	}
	return m, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, workspaceID, poolID string) ([]PoolMember, error) {
	if workspaceID == "" || poolID == "" {
		return nil, ErrInvalidInput
	}
	const q = `
SELECT ` + memberColumns + `
FROM pool_members
WHERE workspace_id = $1 AND pool_id = $2
ORDER BY member_id
`
	rows, err := s.db.QueryContext(ctx, q, workspaceID, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PoolMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordUse(ctx context.Context, workspaceID, memberID string, now time.Time, maxCallsPerNumber int, cooldown time.Duration) (PoolMember, error) {
	if workspaceID == "" || memberID == "" {
		return PoolMember{}, ErrInvalidInput
	}
	const q = `
UPDATE pool_members
SET calls_made = calls_made + 1,
    last_used_at = $3,
    cooldown_until = CASE
      WHEN $4 > 0 AND calls_made + 1 >= $4 AND $5 > 0 THEN $6
      ELSE cooldown_until
    END
WHERE workspace_id = $1 AND member_id = $2
RETURNING ` + memberColumns + `
`
	m, err := scanMember(s.db.QueryRowContext(ctx, q,
		workspaceID, memberID, now, maxCallsPerNumber, int64(cooldown), now.Add(cooldown)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PoolMember{}, ErrNotFound
		}
		return PoolMember{}, err
	}
	return m, nil
}

func (s *PostgresStore) ResetCooldowns(ctx context.Context, workspaceID, poolID string) (int, error) {
	if workspaceID == "" || poolID == "" {
		return 0, ErrInvalidInput
	}
	const q = `
UPDATE pool_members
SET cooldown_until = NULL
WHERE workspace_id = $1 AND pool_id = $2 AND cooldown_until IS NOT NULL
`
	res, err := s.db.ExecContext(ctx, q, workspaceID, poolID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) SetHealth(ctx context.Context, workspaceID, memberID string, healthy bool, spamScore int) error {
	if workspaceID == "" || memberID == "" {
		return ErrInvalidInput
	}
	const q = `
UPDATE pool_members
SET is_healthy = $3,
    spam_score = CASE WHEN $4 >= 0 THEN $4 ELSE spam_score END
WHERE workspace_id = $1 AND member_id = $2
`
	res, err := s.db.ExecContext(ctx, q, workspaceID, memberID, healthy, spamScore)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
