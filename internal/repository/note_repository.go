package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/pkg/errors"
)

type NoteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create creates a new note
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	query := `
        INSERT INTO notes (user_id, title, content_encrypted, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		note.UserID,
		note.Title,
		note.ContentEncrypted,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get note ID: %w", err)
	}

	note.ID = int(id)
	note.CreatedAt = now
	note.UpdatedAt = now

	return nil
}

// GetByID retrieves a note by ID, scoped to its owner
func (r *NoteRepository) GetByID(ctx context.Context, id int, userID int) (*models.Note, error) {
	query := `
        SELECT id, user_id, title, content_encrypted, created_at, updated_at
        FROM notes
        WHERE id = ? AND user_id = ?
    `

	note, err := scanNote(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return note, nil
}

// List retrieves a user's notes, oldest first
func (r *NoteRepository) List(ctx context.Context, userID int) ([]*models.Note, error) {
	query := `
        SELECT id, user_id, title, content_encrypted, created_at, updated_at
        FROM notes
        WHERE user_id = ?
        ORDER BY id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return notes, nil
}

// Update writes title and content of a note owned by note.UserID
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	query := `
        UPDATE notes
        SET title = ?, content_encrypted = ?, updated_at = ?
        WHERE id = ? AND user_id = ?
    `

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		note.Title,
		note.ContentEncrypted,
		now,
		note.ID,
		note.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return errors.ErrRecordNotFound
	}

	note.UpdatedAt = now

	return nil
}

// Delete deletes a note owned by userID
func (r *NoteRepository) Delete(ctx context.Context, id int, userID int) error {
	query := `
        DELETE FROM notes
        WHERE id = ? AND user_id = ?
    `

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return errors.ErrRecordNotFound
	}

	return nil
}

// CountAll returns the number of notes across all users
func (r *NoteRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

func scanNote(s scanner) (*models.Note, error) {
	note := &models.Note{}
	err := s.Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.ContentEncrypted,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return note, nil
}
