// Package syncx appends attempt lifecycle events to an append-only log so a
// finished attempt's history can be audited or shipped elsewhere later.
package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Attempt lifecycle event types.
const (
	EventAttemptStarted    = "attempt_started"
	EventSectionAdvanced   = "section_advanced"
	EventViolationReported = "violation_reported"
	EventAttemptSubmitted  = "attempt_submitted"
	EventAttemptAborted    = "attempt_aborted"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string // natural key: attempt id
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// List returns events for one attempt in append order.
func (r *EventRepo) List(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
