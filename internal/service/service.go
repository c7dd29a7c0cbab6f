package service

import (
	"context"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/models"
)

// AuditLogger records security events
type AuditLogger interface {
	Log(event *audit.Event) error
}

// Limiter rejects a key once it has exhausted its budget
type Limiter interface {
	CheckLimit(key string) error
}

type UserStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int) (bool, error)
	UpdateProfile(ctx context.Context, account *models.Account) error
	UpdateLastLogin(ctx context.Context, userID int) error
	List(ctx context.Context) ([]*models.Account, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetActive(ctx context.Context, token string) (*models.Session, error)
	LatestTokenForUser(ctx context.Context, userID int) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeOthers(ctx context.Context, userID int, keepToken string) (int64, error)
}

type NoteStore interface {
	Create(ctx context.Context, note *models.Note) error
	GetByID(ctx context.Context, id int, userID int) (*models.Note, error)
	List(ctx context.Context, userID int) ([]*models.Note, error)
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id int, userID int) error
	CountAll(ctx context.Context) (int, error)
}

// RequestMeta describes the client behind a call
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
