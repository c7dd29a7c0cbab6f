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
	"github.com/amirk1998/notebox/pkg/validator"
)

var (
	errBadCredentials  = errors.NewAppError(errors.ErrInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
	errTokenInvalid    = errors.NewAppError(errors.ErrUnauthorized, "Token is invalid", http.StatusUnauthorized)
	errTokenExpired    = errors.NewAppError(errors.ErrSessionExpired, "Token has expired", http.StatusUnauthorized)
	errTokenUserGone   = errors.NewAppError(errors.ErrUnauthorized, "Token user not found", http.StatusUnauthorized)
	errUsernameTaken   = errors.NewAppError(errors.ErrUserAlreadyExists, "Username already exists", http.StatusBadRequest)
	errEmailTaken      = errors.NewAppError(errors.ErrEmailAlreadyExists, "Email already exists", http.StatusBadRequest)
	errNothingToUpdate = errors.NewAppError(errors.ErrInvalidInput, "No changes provided", http.StatusBadRequest)
)

// AuthResult is a freshly opened session
type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users       UserStore
	sessions    SessionStore
	hasher      *security.PasswordHasher
	validator   *validator.Validator
	rateLimiter Limiter
	auditLogger AuditLogger
	sessionTTL  time.Duration
	dummyHash   string
	now         func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users UserStore,
	sessions SessionStore,
	hasher *security.PasswordHasher,
	rateLimiter Limiter,
	auditLogger AuditLogger,
	sessionTTL time.Duration,
) (*AuthService, error) {
	// verified against unknown usernames so both paths cost one hash
	dummyHash, err := hasher.Hash("notebox-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		validator:   validator.New(),
		rateLimiter: rateLimiter,
		auditLogger: auditLogger,
		sessionTTL:  sessionTTL,
		dummyHash:   dummyHash,
		now:         time.Now,
	}, nil
}

// Register creates a user account and opens a session for it
func (s *AuthService) Register(ctx context.Context, req *models.CreateUserRequest, meta RequestMeta) (*AuthResult, error) {
	if err := s.rateLimiter.CheckLimit("register:" + meta.IPAddress); err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			Action:    audit.ActionRegister,
			Resource:  "authentication",
			IPAddress: meta.IPAddress,
			ErrorMsg:  "rate limit exceeded",
		})
		return nil, err
	}

	req.Username = s.validator.SanitizeString(req.Username)
	req.Email = s.validator.SanitizeString(req.Email)

	if err := s.validateNewAccount(req); err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			Action:    audit.ActionRegister,
			Resource:  "authentication",
			IPAddress: meta.IPAddress,
			ErrorMsg:  err.Error(),
			Metadata:  req.Username,
		})
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		User: models.User{
			Username: req.Username,
			Email:    req.Email,
			Role:     models.RoleUser,
		},
		PasswordHash: passwordHash,
	}

	if err := s.users.Create(ctx, account); err != nil {
		return nil, duplicateError(err)
	}

	result, err := s.openSession(ctx, &account.User, meta)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(&audit.Event{
		Level:     audit.LevelInfo,
		UserID:    audit.UserRef(account.ID),
		Action:    audit.ActionRegister,
		Resource:  "authentication",
		IPAddress: meta.IPAddress,
		Success:   true,
	})

	return result, nil
}

func (s *AuthService) validateNewAccount(req *models.CreateUserRequest) error {
	if err := s.validator.ValidateUsername(req.Username); err != nil {
		return err
	}
	if err := s.validator.ValidateEmail(req.Email); err != nil {
		return err
	}
	return s.validator.ValidatePassword(req.Password)
}

// Login verifies credentials and opens a session
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, meta RequestMeta) (*AuthResult, error) {
	if err := s.rateLimiter.CheckLimit("login:" + req.Username); err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			Action:    audit.ActionLogin,
			Resource:  "authentication",
			IPAddress: meta.IPAddress,
			ErrorMsg:  "rate limit exceeded",
			Metadata:  req.Username,
		})
		return nil, err
	}

	account, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, errors.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		s.hasher.Verify(req.Password, s.dummyHash)

		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			Action:    audit.ActionLogin,
			Resource:  "authentication",
			IPAddress: meta.IPAddress,
			ErrorMsg:  "unknown user",
			Metadata:  req.Username,
		})
		return nil, errBadCredentials
	}

	valid, err := s.hasher.Verify(req.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	if !valid || !account.IsActive {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			UserID:    audit.UserRef(account.ID),
			Action:    audit.ActionLoginInvalidPassword,
			Resource:  "authentication",
			IPAddress: meta.IPAddress,
		})
		return nil, errBadCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, account.ID); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	result, err := s.openSession(ctx, &account.User, meta)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(&audit.Event{
		Level:     audit.LevelInfo,
		UserID:    audit.UserRef(account.ID),
		Action:    audit.ActionLogin,
		Resource:  "authentication",
		IPAddress: meta.IPAddress,
		Success:   true,
	})

	return result, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta RequestMeta) (*AuthResult, error) {
	token, err := security.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &models.Session{
		UserID:    user.ID,
		Token:     token,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	u := *user
	return &AuthResult{User: &u, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout revokes the session behind token. An empty token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string, meta RequestMeta) error {
	if token == "" {
		return nil
	}

	session, err := s.sessions.GetActive(ctx, token)
	if err != nil && !errors.Is(err, errors.ErrRecordNotFound) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}

	if session != nil {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelInfo,
			UserID:    audit.UserRef(session.UserID),
			Action:    audit.ActionLogout,
			Resource:  "authentication",
			IPAddress: meta.IPAddress,
			Success:   true,
		})
	}
	return nil
}

// Authenticate resolves a session token to its user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.ErrUnauthorized
	}

	session, err := s.sessions.GetActive(ctx, token)
	if errors.Is(err, errors.ErrRecordNotFound) {
		return nil, errTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(s.now()) {
		if err := s.sessions.Revoke(ctx, token); err != nil {
			return nil, err
		}
		return nil, errTokenExpired
	}

	account, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return nil, errTokenUserGone
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !account.IsActive {
		return nil, errTokenUserGone
	}

	return &account.User, nil
}

// UpdateProfile applies the non-nil fields of update to the caller's
// account. A password change revokes every other session of the user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, currentToken string, update models.ProfileUpdate) (*models.User, error) {
	if update.IsEmpty() {
		return nil, errNothingToUpdate
	}

	account, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil {
		username := s.validator.SanitizeString(*update.Username)
		if err := s.validator.ValidateUsername(username); err != nil {
			return nil, err
		}
		if username != account.Username {
			existing, err := s.users.GetByUsername(ctx, username)
			if err == nil && existing.ID != account.ID {
				return nil, errUsernameTaken
			}
			if err != nil && !errors.Is(err, errors.ErrUserNotFound) {
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
		}
		account.Username = username
	}

	if update.Email != nil {
		email := s.validator.SanitizeString(*update.Email)
		if err := s.validator.ValidateEmail(email); err != nil {
			return nil, err
		}
		taken, err := s.users.ExistsByEmail(ctx, email, account.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errEmailTaken
		}
		account.Email = email
	}

	passwordChanged := false
	if update.Password != nil && *update.Password != "" {
		if err := s.validator.ValidatePassword(*update.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		account.PasswordHash = hash
		passwordChanged = true
	}

	if err := s.users.UpdateProfile(ctx, account); err != nil {
		return nil, duplicateError(err)
	}

	if passwordChanged {
		if _, err := s.sessions.RevokeOthers(ctx, account.ID, currentToken); err != nil {
			return nil, err
		}
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   audit.UserRef(account.ID),
		Action:   audit.ActionProfileUpdate,
		Resource: fmt.Sprintf("user:%d", account.ID),
		Success:  true,
		Metadata: fmt.Sprintf("password_changed=%t", passwordChanged),
	})

	return &account.User, nil
}

func duplicateError(err error) error {
	switch {
	case errors.Is(err, errors.ErrUserAlreadyExists):
		return errUsernameTaken
	case errors.Is(err, errors.ErrEmailAlreadyExists):
		return errEmailTaken
	default:
		return err
	}
}
