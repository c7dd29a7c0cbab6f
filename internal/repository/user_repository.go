package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/pkg/errors"
)

const userColumns = `id, username, email, role, password_hash, created_at, updated_at, last_login, is_active`

type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and fills in its ID and timestamps
func (r *UserRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
        INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	if account.Role == "" {
		account.Role = models.RoleUser
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		account.Username,
		account.Email,
		account.PasswordHash,
		string(account.Role),
		now,
		now,
	)
	if err != nil {
		return mapConstraintError(fmt.Errorf("failed to create user: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}

	account.ID = int(id)
	account.CreatedAt = now
	account.UpdatedAt = now
	account.IsActive = true

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// ExistsByEmail reports whether another user already owns email
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, email, excludeID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// UpdateProfile writes username, email and password hash
func (r *UserRepository) UpdateProfile(ctx context.Context, account *models.Account) error {
	query := `
        UPDATE users
        SET username = ?, email = ?, password_hash = ?, updated_at = ?
        WHERE id = ?
    `

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		account.Username,
		account.Email,
		account.PasswordHash,
		now,
		account.ID,
	)
	if err != nil {
		return mapConstraintError(fmt.Errorf("failed to update user: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errors.ErrUserNotFound
	}

	account.UpdatedAt = now
	return nil
}

// UpdateLastLogin updates user's last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int) error {
	query := `UPDATE users SET last_login = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// List returns every user ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return accounts, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return account, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	account := &models.Account{}
	var role string
	var lastLogin sql.NullTime

	err := s.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&role,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
		&lastLogin,
		&account.IsActive,
	)
	if err != nil {
		return nil, err
	}

	account.Role = models.Role(role)
	if lastLogin.Valid {
		account.LastLogin = &lastLogin.Time
	}
	return account, nil
}

// mapConstraintError turns UNIQUE violations into the matching sentinel.
// The driver text is dropped since it is shown to API callers.
func mapConstraintError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: users.username"):
		return errors.ErrUserAlreadyExists
	case strings.Contains(msg, "UNIQUE constraint failed: users.email"):
		return errors.ErrEmailAlreadyExists
	default:
		return err
	}
}
