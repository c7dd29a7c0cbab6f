package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/security"
	"github.com/amirk1998/notebox/pkg/errors"
)

var (
	errProfileNotFound = errors.NewAppError(errors.ErrUserNotFound, "User not found", http.StatusNotFound)
	errProfileDenied   = errors.NewAppError(errors.ErrForbidden, "Access denied", http.StatusForbidden)
	errAdminOnly       = errors.NewAppError(errors.ErrForbidden, "Admin access required", http.StatusForbidden)
)

// ProfileService serves profile lookups and the admin dashboard.
//
// With ownershipCheck off, GetProfile returns any user's record together
// with that user's newest live session token. This is the IDOR flaw the
// application exists to demonstrate.
type ProfileService struct {
	users          UserStore
	sessions       SessionStore
	notes          NoteStore
	rateLimiter    Limiter
	auditLogger    AuditLogger
	ownershipCheck bool
	now            func() time.Time
}

func NewProfileService(
	users UserStore,
	sessions SessionStore,
	notes NoteStore,
	rateLimiter Limiter,
	auditLogger AuditLogger,
	ownershipCheck bool,
) *ProfileService {
	return &ProfileService{
		users:          users,
		sessions:       sessions,
		notes:          notes,
		rateLimiter:    rateLimiter,
		auditLogger:    auditLogger,
		ownershipCheck: ownershipCheck,
		now:            time.Now,
	}
}

// GetProfile returns the profile of targetID as seen by caller
func (s *ProfileService) GetProfile(ctx context.Context, caller *models.User, targetID int, meta RequestMeta) (*models.UserProfile, error) {
	if err := s.rateLimiter.CheckLimit(fmt.Sprintf("profile:%d", caller.ID)); err != nil {
		return nil, err
	}

	foreign := caller.ID != targetID
	action := audit.ActionProfileLookup
	level := audit.LevelInfo
	if foreign {
		action = audit.ActionProfileLookupForeign
		level = audit.LevelWarning
	}
	resource := fmt.Sprintf("user:%d", targetID)

	if s.ownershipCheck && foreign && !caller.IsAdmin() {
		s.auditLogger.Log(&audit.Event{
			Level:     level,
			UserID:    audit.UserRef(caller.ID),
			Action:    action,
			Resource:  resource,
			IPAddress: meta.IPAddress,
			ErrorMsg:  "ownership check refused lookup",
		})
		return nil, errProfileDenied
	}

	account, err := s.users.GetByID(ctx, targetID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return nil, errProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{User: account.User}
	if !s.ownershipCheck {
		token, err := s.sessions.LatestTokenForUser(ctx, targetID)
		if err != nil {
			return nil, err
		}
		profile.SessionToken = token
	}

	event := &audit.Event{
		Level:     level,
		UserID:    audit.UserRef(caller.ID),
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IPAddress,
		Success:   true,
	}
	if profile.SessionToken != "" {
		event.Metadata = "disclosed_token=" + security.Fingerprint(profile.SessionToken)
	}
	s.auditLogger.Log(event)

	return profile, nil
}

// AdminDashboard lists every user with note totals. Admins only.
func (s *ProfileService) AdminDashboard(ctx context.Context, caller *models.User) (*models.AdminDashboard, error) {
	if !caller.IsAdmin() {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   audit.UserRef(caller.ID),
			Action:   audit.ActionAdminDashboard,
			Resource: "admin",
			ErrorMsg: "caller is not an admin",
		})
		return nil, errAdminOnly
	}

	accounts, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	noteCount, err := s.notes.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, a.User)
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   audit.UserRef(caller.ID),
		Action:   audit.ActionAdminDashboard,
		Resource: "admin",
		Success:  true,
	})

	return &models.AdminDashboard{
		Users:       users,
		UserCount:   len(users),
		NoteCount:   noteCount,
		GeneratedAt: s.now().UTC(),
	}, nil
}
