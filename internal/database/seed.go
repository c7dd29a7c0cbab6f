package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/security"
)

type demoUser struct {
	username string
	email    string
	password string
	role     models.Role
}

// The lab depends on these exact accounts: the admin exists with a live
// session whose token the profile lookup will disclose.
var demoUsers = []demoUser{
	{"admin", "admin@example.com", "admin123", models.RoleAdmin},
	{"user1", "user1@example.com", "password123", models.RoleUser},
}

// Seed inserts the demo accounts, each with a live session, unless the admin
// account already exists. It reports whether anything was inserted.
func Seed(ctx context.Context, db *sql.DB, hasher *security.PasswordHasher, sessionTTL time.Duration) (bool, error) {
	seeded := false

	err := NewTransactionManager(db).Execute(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, demoUsers[0].username).Scan(&count); err != nil {
			return fmt.Errorf("failed to check demo users: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, u := range demoUsers {
			hash, err := hasher.Hash(u.password)
			if err != nil {
				return fmt.Errorf("failed to hash demo password: %w", err)
			}

			result, err := tx.ExecContext(ctx, `
        INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, u.username, u.email, hash, string(u.role), now, now)
			if err != nil {
				return fmt.Errorf("failed to insert demo user %s: %w", u.username, err)
			}

			userID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get demo user ID: %w", err)
			}

			token, err := security.NewSessionToken()
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `
        INSERT INTO sessions (user_id, session_token, user_agent, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?)
    `, userID, token, "seed", now, now.Add(sessionTTL)); err != nil {
				return fmt.Errorf("failed to insert demo session: %w", err)
			}
		}

		seeded = true
		return nil
	})

	return seeded, err
}
