package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists and queries audit_logs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert appends one entry.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: store not configured")
	}
	if e.Actor == "" || e.Action == "" || e.Target == "" || e.Outcome == "" {
		return errors.New("audit: entry requires actor/action/target/outcome")
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO audit_logs (actor, action, target, outcome, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, e.Actor, e.Action, e.Target, e.Outcome, metaJSON, toPgTime(e.At))
	return err
}

// TimelineQuery filters and pages the audit trail.
type TimelineQuery struct {
	From    time.Time
	To      time.Time
	Actor   string
	Action  string
	Outcome string
	Offset  int
	Limit   int
}

// TimelineWindow returns entries newest first for the given window.
func (s *Store) TimelineWindow(ctx context.Context, q TimelineQuery) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("audit: store not configured")
	}
	rows, err := s.pool.Query(ctx, `SELECT id, actor, action, target, outcome, meta, occurred_at
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at <= $2)
  AND ($3::text IS NULL OR actor = $3)
  AND ($4::text IS NULL OR action = $4)
  AND ($5::text IS NULL OR outcome = $5)
ORDER BY occurred_at DESC, id DESC
OFFSET $6 LIMIT $7`,
		toPgTime(q.From), toPgTime(q.To), optionalText(q.Actor), optionalText(q.Action), optionalText(q.Outcome),
		q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Target, &e.Outcome, &metaJSON, &e.At); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
