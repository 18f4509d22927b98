package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/log"
)

// HistoryRepo persists sessions and their completed turns.
type HistoryRepo struct {
	db  *sql.DB
	now core.Clock
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db, now: time.Now}
}

func (r *HistoryRepo) WithClock(clock core.Clock) *HistoryRepo {
	r.now = clock
	return r
}

func (r *HistoryRepo) CreateSession(ctx context.Context, id, title string) (core.Session, error) {
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, title, now, now,
	)
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to insert session: %w", err)
	}
	return core.Session{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

const sessionColumns = `
	SELECT s.id, s.title, s.created_at, s.updated_at, COUNT(t.id)
	FROM sessions s
	LEFT JOIN turns t ON t.session_id = s.id`

func (r *HistoryRepo) GetSession(ctx context.Context, id string) (core.Session, error) {
	row := r.db.QueryRowContext(ctx, sessionColumns+` WHERE s.id = ? GROUP BY s.id`, id)

	var s core.Session
	err := row.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.Turns)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session %q: %w", id, core.ErrSessionNotFound)
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions with the most recently active first.
func (r *HistoryRepo) ListSessions(ctx context.Context) ([]core.Session, error) {
	rows, err := r.db.QueryContext(ctx, sessionColumns+` GROUP BY s.id ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []core.Session
	for rows.Next() {
		var s core.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.Turns); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *HistoryRepo) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	return expectRow(res, id)
}

// DeleteSession removes the session together with its turns.
func (r *HistoryRepo) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRow(res, id)
}

func (r *HistoryRepo) SaveTurn(ctx context.Context, sessionID string, turn core.TurnRecord) (core.TurnRecord, error) {
	blob, err := serializeVector(turn.Embedding)
	if err != nil {
		return core.TurnRecord{}, err
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = r.now()
	}
	turn.CreatedAt = turn.CreatedAt.UTC()
	turn.SessionID = sessionID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.TurnRecord{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, turn.CreatedAt, sessionID)
	if err != nil {
		return core.TurnRecord{}, fmt.Errorf("failed to touch session: %w", err)
	}
	if err := expectRow(res, sessionID); err != nil {
		return core.TurnRecord{}, err
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, turn_index, user_message, display_content, memory_content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, turn.Index, turn.UserMessage, turn.DisplayContent, turn.MemoryContent, blob, turn.CreatedAt,
	)
	if err != nil {
		return core.TurnRecord{}, fmt.Errorf("failed to insert turn: %w", err)
	}

	turn.ID, err = res.LastInsertId()
	if err != nil {
		return core.TurnRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.TurnRecord{}, err
	}
	return turn, nil
}

// LoadSession returns the turns of a session in conversation order.
func (r *HistoryRepo) LoadSession(ctx context.Context, sessionID string) ([]core.TurnRecord, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, turn_index, user_message, display_content, memory_content, embedding, created_at
		 FROM turns WHERE session_id = ? ORDER BY turn_index`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []core.TurnRecord
	for rows.Next() {
		t := core.TurnRecord{SessionID: sessionID}
		var blob []byte
		if err := rows.Scan(&t.ID, &t.Index, &t.UserMessage, &t.DisplayContent, &t.MemoryContent, &blob, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if t.Embedding, err = deserializeVector(blob); err != nil {
			// the memory re-embeds turns without a vector
			log.FromCtx(ctx).Warn().Err(err).Int64("turn_id", t.ID).Msg("dropping corrupt embedding")
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().Str("session_id", sessionID).Int("count", len(turns)).Msg("loaded session turns")
	return turns, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", id, core.ErrSessionNotFound)
	}
	return nil
}
