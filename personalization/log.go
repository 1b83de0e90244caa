// Package personalization keeps an append-only SQLite log of interactions
// used for per-user statistics.
package personalization

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/patra-app/matchrank/model"
)

// Log is the SQLite-backed event log
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Stats summarizes one user's activity over a window
type Stats struct {
	UserID             string `json:"user_id"`
	Days               int    `json:"days"`
	TotalInteractions  int    `json:"total_interactions"`
	LikesGiven         int    `json:"likes_given"`
	SuperlikesGiven    int    `json:"superlikes_given"`
	DislikesGiven      int    `json:"dislikes_given"`
	LikesReceived      int    `json:"likes_received"`
	SuperlikesReceived int    `json:"superlikes_received"`
}

// Open opens (or creates) the log at path. ":memory:" is accepted for tests.
func Open(path string) (*Log, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open personalization log: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	l := &Log{db: d, now: time.Now}
	if err := l.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) Close() error { return l.db.Close() }

func (l *Log) migrate() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS events (
	  id TEXT PRIMARY KEY,
	  ts INTEGER NOT NULL,
	  user_id TEXT NOT NULL,
	  target_id TEXT NOT NULL,
	  action TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_ts ON events(user_id, ts);
	CREATE INDEX IF NOT EXISTS idx_events_target_ts ON events(target_id, ts);
	`)
	if err != nil {
		return fmt.Errorf("migrate personalization log: %w", err)
	}
	return nil
}

// Append records an interaction. Re-appending the same id is a no-op.
func (l *Log) Append(ctx context.Context, in model.Interaction) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events(id, ts, user_id, target_id, action) VALUES(?,?,?,?,?)`,
		in.ID, in.CreatedAt.UnixMilli(), in.ActorID, in.TargetID, string(in.Action))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Stats counts the user's given and received actions over the last days days.
// days <= 0 covers the whole log.
func (l *Log) Stats(ctx context.Context, userID string, days int) (Stats, error) {
	st := Stats{UserID: userID, Days: days}
	var since int64
	if days > 0 {
		since = l.now().AddDate(0, 0, -days).UnixMilli()
	}

	given, err := l.count(ctx, `SELECT action, COUNT(*) FROM events WHERE user_id=? AND ts>=? GROUP BY action`, userID, since)
	if err != nil {
		return st, err
	}
	received, err := l.count(ctx, `SELECT action, COUNT(*) FROM events WHERE target_id=? AND ts>=? GROUP BY action`, userID, since)
	if err != nil {
		return st, err
	}

	st.LikesGiven = given[model.ActionLike]
	st.SuperlikesGiven = given[model.ActionSuperlike]
	st.DislikesGiven = given[model.ActionDislike]
	st.TotalInteractions = st.LikesGiven + st.SuperlikesGiven + st.DislikesGiven
	st.LikesReceived = received[model.ActionLike]
	st.SuperlikesReceived = received[model.ActionSuperlike]
	return st, nil
}

func (l *Log) count(ctx context.Context, query string, args ...any) (map[model.Action]int, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	out := map[model.Action]int{}
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[model.Action(action)] = n
	}
	return out, rows.Err()
}

// FromInteractions computes the given-side counts from an interaction list,
// for deployments without a log.
func FromInteractions(userID string, days int, log []model.Interaction) Stats {
	st := Stats{UserID: userID, Days: days}
	for _, in := range log {
		if in.ActorID != userID {
			continue
		}
		switch in.Action {
		case model.ActionLike:
			st.LikesGiven++
		case model.ActionSuperlike:
			st.SuperlikesGiven++
		case model.ActionDislike:
			st.DislikesGiven++
		}
	}
	st.TotalInteractions = st.LikesGiven + st.SuperlikesGiven + st.DislikesGiven
	return st
}
