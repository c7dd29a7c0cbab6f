package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/storage"
)

type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session is the signed-in user, mirrored to the "user" storage key. It
// never holds the session credential.
type Session struct {
	mu    sync.RWMutex
	store storage.Store
	user  *models.User
	log   *logger.Logger
}

func New(store storage.Store, log *logger.Logger) *Session {
	return &Session{store: store, log: log.WithComponent("session")}
}

// Restore loads the persisted user. Unparseable content is removed and the
// session stays anonymous.
func (s *Session) Restore() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.store.Get(storage.KeyUser)
	if err != nil || !ok {
		return models.User{}, false
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		s.log.Warnw("Discarding unreadable stored user", "error", err)
		if err := s.store.Delete(storage.KeyUser); err != nil {
			s.log.Warnw("Failed to remove stored user", "error", err)
		}
		return models.User{}, false
	}

	s.user = &user
	return user, true
}

// SignIn makes user the current user and persists it
func (s *Session) SignIn(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(user)
}

// Merge overlays the non-empty fields of update onto the current user
func (s *Session) Merge(update models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return models.User{}, fmt.Errorf("no signed-in user")
	}

	merged := *s.user
	if update.ID != 0 {
		merged.ID = update.ID
	}
	if update.Username != "" {
		merged.Username = update.Username
	}
	if update.Email != "" {
		merged.Email = update.Email
	}
	if update.Role != "" {
		merged.Role = update.Role
	}

	if err := s.set(merged); err != nil {
		return models.User{}, err
	}
	return merged, nil
}

func (s *Session) set(user models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.store.Set(storage.KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	s.user = &user
	return nil
}

// Clear returns to Anonymous and removes the stored user
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	if err := s.store.Delete(storage.KeyUser); err != nil {
		return fmt.Errorf("failed to remove stored user: %w", err)
	}
	return nil
}

func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return Anonymous
	}
	return Authenticated
}
