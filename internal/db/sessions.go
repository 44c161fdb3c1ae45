package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
	"github.com/kanoo-op/PostureAI-sub004/internal/session"
)

var _ session.Store = (*DB)(nil)

// SaveSession inserts or replaces a session record.
func (db *DB) SaveSession(ctx context.Context, rec *session.Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("session record without id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", rec.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, exercise, started_unix_ms, ended_unix_ms, rep_count, average_score, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			exercise = excluded.exercise,
			started_unix_ms = excluded.started_unix_ms,
			ended_unix_ms = excluded.ended_unix_ms,
			rep_count = excluded.rep_count,
			average_score = excluded.average_score,
			payload = excluded.payload`,
		rec.ID, string(rec.Exercise), rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(),
		rec.RepCount, rec.AverageScore, string(payload),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSession loads one session record. It returns ErrNotFound for an unknown id.
func (db *DB) GetSession(ctx context.Context, id string) (*session.Record, error) {
	var payload string
	err := db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE session_id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	var rec session.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &rec, nil
}

// ListSessions returns the most recent sessions first. limit <= 0 means no limit.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]session.Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, exercise, started_unix_ms, ended_unix_ms, rep_count, average_score
		FROM sessions
		ORDER BY started_unix_ms DESC, session_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Summary
	for rows.Next() {
		var (
			s              session.Summary
			ex             string
			started, ended int64
		)
		if err := rows.Scan(&s.ID, &ex, &started, &ended, &s.RepCount, &s.AverageScore); err != nil {
			return nil, err
		}
		s.Exercise = exercise.Type(ex)
		s.StartedAt = time.UnixMilli(started).UTC()
		s.EndedAt = time.UnixMilli(ended).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes a session. It returns ErrNotFound for an unknown id.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
