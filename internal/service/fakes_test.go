package service

import (
	"context"
	"sort"
	"sync"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/security"
	"github.com/amirk1998/notebox/pkg/errors"
)

var fastHashParams = security.HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]*models.Account
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 1, byID: map[int]*models.Account{}}
}

func (f *fakeUsers) Create(_ context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Username == a.Username {
			return errors.ErrUserAlreadyExists
		}
		if existing.Email == a.Email {
			return errors.ErrEmailAlreadyExists
		}
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	a.ID = f.nextID
	a.IsActive = true
	f.nextID++
	stored := *a
	f.byID[a.ID] = &stored
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Username == username {
			copied := *a
			return &copied, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (f *fakeUsers) ExistsByEmail(_ context.Context, email string, excludeID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[a.ID]; !ok {
		return errors.ErrUserNotFound
	}
	stored := *a
	f.byID[a.ID] = &stored
	return nil
}

func (f *fakeUsers) UpdateLastLogin(context.Context, int) error { return nil }

func (f *fakeUsers) List(context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Account
	for _, a := range f.byID {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions []*models.Session
}

func (f *fakeSessions) Create(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = len(f.sessions) + 1
	s.IsActive = true
	stored := *s
	f.sessions = append(f.sessions, &stored)
	return nil
}

func (f *fakeSessions) GetActive(_ context.Context, token string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Token == token && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errors.ErrRecordNotFound
}

func (f *fakeSessions) LatestTokenForUser(_ context.Context, userID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sessions) - 1; i >= 0; i-- {
		if s := f.sessions[i]; s.UserID == userID && s.IsActive {
			return s.Token, nil
		}
	}
	return "", nil
}

func (f *fakeSessions) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Token == token {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeSessions) RevokeOthers(_ context.Context, userID int, keep string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.UserID == userID && s.Token != keep && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.Token == token {
			s.ExpiresAt = s.CreatedAt
		}
	}
}

type fakeNotes struct {
	mu     sync.Mutex
	nextID int
	notes  []*models.Note
}

func (f *fakeNotes) Create(_ context.Context, n *models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	stored := *n
	f.notes = append(f.notes, &stored)
	return nil
}

func (f *fakeNotes) GetByID(_ context.Context, id, userID int) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ID == id && n.UserID == userID {
			copied := *n
			return &copied, nil
		}
	}
	return nil, errors.ErrRecordNotFound
}

func (f *fakeNotes) List(_ context.Context, userID int) ([]*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Note{}
	for _, n := range f.notes {
		if n.UserID == userID {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeNotes) Update(_ context.Context, n *models.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.notes {
		if existing.ID == n.ID && existing.UserID == n.UserID {
			stored := *n
			f.notes[i] = &stored
			return nil
		}
	}
	return errors.ErrRecordNotFound
}

func (f *fakeNotes) Delete(_ context.Context, id, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notes {
		if n.ID == id && n.UserID == userID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return errors.ErrRecordNotFound
}

func (f *fakeNotes) CountAll(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes), nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAudit) Log(e *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type allowAll struct{}

func (allowAll) CheckLimit(string) error { return nil }

type denyAll struct{}

func (denyAll) CheckLimit(string) error { return errors.ErrRateLimitExceeded }
