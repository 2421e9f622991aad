package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

const (
	TypeAnswerSubmitted = "AnswerSubmitted"
	TypeQuizCompleted   = "QuizCompleted"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// EventRepo appends to the event_log table. Pass a *sql.Tx as the Execer to
// make the event part of the caller's unit of work.
type EventRepo struct {
	siteID string
}

func NewEventRepo(siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, x db.Execer, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventlog: marshal %s: %w", typ, err)
	}
	_, err = x.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("eventlog: append %s: %w", typ, err)
	}
	return nil
}

// Since returns up to limit events of this site with seq greater than after,
// oldest first.
func (r *EventRepo) Since(ctx context.Context, x db.Execer, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := x.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE site_id = $1 AND seq > $2 ORDER BY seq ASC LIMIT $3`, r.siteID, after, limit)
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
