package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/pkg/errors"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new active session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
        INSERT INTO sessions (user_id, session_token, ip_address, user_agent, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		session.UserID,
		session.Token,
		session.IPAddress,
		session.UserAgent,
		now,
		session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get session ID: %w", err)
	}

	session.ID = int(id)
	session.CreatedAt = now
	session.IsActive = true
	return nil
}

// GetActive returns the active session for token. Expiry is checked by
// the caller so it can be reported separately.
func (r *SessionRepository) GetActive(ctx context.Context, token string) (*models.Session, error) {
	query := `
        SELECT id, user_id, session_token, COALESCE(ip_address, ''), COALESCE(user_agent, ''),
               created_at, expires_at, is_active
        FROM sessions
        WHERE session_token = ? AND is_active = 1
    `

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// LatestTokenForUser returns the newest unexpired active token of a user,
// or "" when there is none.
func (r *SessionRepository) LatestTokenForUser(ctx context.Context, userID int) (string, error) {
	query := `
        SELECT session_token
        FROM sessions
        WHERE user_id = ? AND is_active = 1 AND expires_at > ?
        ORDER BY id DESC
        LIMIT 1
    `

	var token string
	err := r.db.QueryRowContext(ctx, query, userID, time.Now().UTC()).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest session: %w", err)
	}
	return token, nil
}

// Revoke deactivates a single session. Unknown tokens are not an error.
func (r *SessionRepository) Revoke(ctx context.Context, token string) error {
	query := `UPDATE sessions SET is_active = 0 WHERE session_token = ?`

	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeOthers deactivates every session of userID except keepToken
func (r *SessionRepository) RevokeOthers(ctx context.Context, userID int, keepToken string) (int64, error) {
	query := `UPDATE sessions SET is_active = 0 WHERE user_id = ? AND session_token != ? AND is_active = 1`

	result, err := r.db.ExecContext(ctx, query, userID, keepToken)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes sessions that can no longer be used
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= ? OR is_active = 0`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
