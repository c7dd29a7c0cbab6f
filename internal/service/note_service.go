package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/security"
	"github.com/amirk1998/notebox/pkg/errors"
	"github.com/amirk1998/notebox/pkg/validator"
)

var errNoteNotFound = errors.NewAppError(errors.ErrRecordNotFound, "Note not found", http.StatusNotFound)

// NoteService is owner-scoped note CRUD with content encrypted at rest
type NoteService struct {
	notes       NoteStore
	encryptor   *security.FieldEncryptor
	validator   *validator.Validator
	rateLimiter Limiter
	auditLogger AuditLogger
}

// NewNoteService creates a new note service
func NewNoteService(
	notes NoteStore,
	encryptor *security.FieldEncryptor,
	rateLimiter Limiter,
	auditLogger AuditLogger,
) *NoteService {
	return &NoteService{
		notes:       notes,
		encryptor:   encryptor,
		validator:   validator.New(),
		rateLimiter: rateLimiter,
		auditLogger: auditLogger,
	}
}

func (s *NoteService) checkLimit(userID int) error {
	return s.rateLimiter.CheckLimit(fmt.Sprintf("notes:%d", userID))
}

func (s *NoteService) validate(req *models.NoteRequest) error {
	req.Title = s.validator.SanitizeString(req.Title)
	if err := s.validator.ValidateNoteTitle(req.Title); err != nil {
		return err
	}
	return s.validator.ValidateNoteContent(req.Content)
}

// Create stores a new note for userID
func (s *NoteService) Create(ctx context.Context, userID int, req *models.NoteRequest) (*models.Note, error) {
	if err := s.checkLimit(userID); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	sealed, err := s.encryptor.Encrypt(req.Content, security.OwnerAAD(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt content: %w", err)
	}

	note := &models.Note{
		UserID:           userID,
		Title:            req.Title,
		ContentEncrypted: sealed,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	note.Content = req.Content

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   audit.UserRef(userID),
		Action:   audit.ActionNoteCreate,
		Resource: fmt.Sprintf("note:%d", note.ID),
		Success:  true,
	})

	return note, nil
}

// List returns every note of userID in creation order
func (s *NoteService) List(ctx context.Context, userID int) ([]*models.Note, error) {
	if err := s.checkLimit(userID); err != nil {
		return nil, err
	}

	notes, err := s.notes.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, note := range notes {
		content, err := s.encryptor.Decrypt(note.ContentEncrypted, security.OwnerAAD(userID))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt note %d: %w", note.ID, err)
		}
		note.Content = content
	}

	return notes, nil
}

// Update replaces title and content of a note owned by userID
func (s *NoteService) Update(ctx context.Context, userID int, noteID int, req *models.NoteRequest) (*models.Note, error) {
	if err := s.checkLimit(userID); err != nil {
		return nil, err
	}

	note, err := s.notes.GetByID(ctx, noteID, userID)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errNoteNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.validate(req); err != nil {
		return nil, err
	}

	sealed, err := s.encryptor.Encrypt(req.Content, security.OwnerAAD(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt content: %w", err)
	}

	note.Title = req.Title
	note.ContentEncrypted = sealed
	if err := s.notes.Update(ctx, note); err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			return nil, errNoteNotFound
		}
		return nil, err
	}
	note.Content = req.Content

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   audit.UserRef(userID),
		Action:   audit.ActionNoteUpdate,
		Resource: fmt.Sprintf("note:%d", note.ID),
		Success:  true,
	})

	return note, nil
}

// Delete removes a note owned by userID
func (s *NoteService) Delete(ctx context.Context, userID int, noteID int) error {
	if err := s.checkLimit(userID); err != nil {
		return err
	}

	if err := s.notes.Delete(ctx, noteID, userID); err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			s.auditLogger.Log(&audit.Event{
				Level:    audit.LevelWarning,
				UserID:   audit.UserRef(userID),
				Action:   audit.ActionNoteDelete,
				Resource: fmt.Sprintf("note:%d", noteID),
				ErrorMsg: "not found or not owned",
			})
			return errNoteNotFound
		}
		return err
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   audit.UserRef(userID),
		Action:   audit.ActionNoteDelete,
		Resource: fmt.Sprintf("note:%d", noteID),
		Success:  true,
	})
	return nil
}
