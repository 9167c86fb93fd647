package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Turn struct {
	ID        string
	SessionID string
	Utterance string
	Reply     string
	Intent    string
	CreatedAt time.Time
}

type AppendTurnInput struct {
	SessionID string
	UserID    string
	Utterance string
	Reply     string
	Intent    string
}

// AppendTurn records one utterance/reply pair. The session is created lazily,
// its activity timestamp is touched and a title is derived from the first
// utterance. Turns are immutable once written.
func (s *Store) AppendTurn(ctx context.Context, input AppendTurnInput) (Turn, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return Turn{}, fmt.Errorf("session id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Turn{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := ensureSessionTx(ctx, tx, sessionID, strings.TrimSpace(input.UserID))
	if err != nil {
		return Turn{}, err
	}

	var nextSeq int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`,
		sessionID,
	).Scan(&nextSeq); err != nil {
		return Turn{}, fmt.Errorf("next turn seq: %w", err)
	}

	turn := Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Utterance: input.Utterance,
		Reply:     input.Reply,
		Intent:    strings.TrimSpace(input.Intent),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO turns (id, session_id, utterance, reply, intent, created_at_unix, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID,
		turn.SessionID,
		turn.Utterance,
		turn.Reply,
		turn.Intent,
		turn.CreatedAt.Unix(),
		nextSeq,
	); err != nil {
		return Turn{}, fmt.Errorf("insert turn: %w", err)
	}

	title := session.Title
	if title == "" {
		title = deriveSessionTitle(input.Utterance)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET last_activity_unix = ?, title = ? WHERE id = ?`,
		turn.CreatedAt.Unix(),
		title,
		sessionID,
	); err != nil {
		return Turn{}, fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Turn{}, fmt.Errorf("commit turn append: %w", err)
	}
	return turn, nil
}

// RecentTurns returns up to limit turns for the session, most recent first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit < 1 {
		limit = 5
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, utterance, reply, intent, created_at_unix
		 FROM turns
		 WHERE session_id = ?
		 ORDER BY seq DESC
		 LIMIT ?`,
		strings.TrimSpace(sessionID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var turn Turn
		var createdAtUnix int64
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Utterance, &turn.Reply, &turn.Intent, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
