package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID           string
	UserID       string
	Title        string
	LastActivity time.Time
}

// EnsureSession creates the session row lazily on first use. The caller owns
// the id (typically a browser or CLI session identifier).
func (s *Store) EnsureSession(ctx context.Context, sessionID, userID string) (Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, fmt.Errorf("session id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := ensureSessionTx(ctx, tx, sessionID, strings.TrimSpace(userID))
	if err != nil {
		return Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit session ensure: %w", err)
	}
	return session, nil
}

func (s *Store) LookupSession(ctx context.Context, sessionID string) (Session, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, COALESCE(user_id, ''), title, last_activity_unix FROM sessions WHERE id = ?`,
		strings.TrimSpace(sessionID),
	)
	return scanSession(row)
}

func ensureSessionTx(ctx context.Context, tx *sql.Tx, sessionID, userID string) (Session, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT id, COALESCE(user_id, ''), title, last_activity_unix FROM sessions WHERE id = ?`,
		sessionID,
	)
	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (id, user_id, last_activity_unix) VALUES (?, ?, ?)`,
		sessionID,
		nullIfEmpty(userID),
		now.Unix(),
	); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return Session{ID: sessionID, UserID: userID, LastActivity: now}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var session Session
	var lastActivityUnix int64
	if err := row.Scan(&session.ID, &session.UserID, &session.Title, &lastActivityUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.LastActivity = time.Unix(lastActivityUnix, 0).UTC()
	return session, nil
}

// deriveSessionTitle compacts the first utterance into a short rolling title.
func deriveSessionTitle(utterance string) string {
	title := strings.Join(strings.Fields(strings.TrimSpace(utterance)), " ")
	if len(title) > 64 {
		title = strings.TrimSpace(title[:64])
	}
	return title
}
