package notes

import (
	"context"
	"sync"

	"github.com/amirk1998/notebox/internal/models"
)

// API is the part of the HTTP client the store drives
type API interface {
	ListNotes(ctx context.Context) ([]models.Note, error)
	CreateNote(ctx context.Context, title, content string) (*models.Note, error)
	UpdateNote(ctx context.Context, id int, title, content string) (*models.Note, error)
	DeleteNote(ctx context.Context, id int) error
}

// Store holds the last note list fetched from the server. It is only ever
// replaced as a whole, and every mutation is followed by a fresh list.
//
// Mutations and refreshes run one at a time in call order. Reset starts a
// new generation; a fetch begun under an older generation is dropped.
type Store struct {
	api API

	op sync.Mutex

	mu     sync.RWMutex
	notes  []models.Note
	gen    uint64
	loaded bool
}

func New(api API) *Store {
	return &Store{api: api, notes: []models.Note{}}
}

// Notes returns a copy of the current snapshot
func (s *Store) Notes() []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Loaded reports whether a list has been applied since the last Reset
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Refresh replaces the snapshot with the server's list
func (s *Store) Refresh(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()
	return s.refresh(ctx, s.generation())
}

func (s *Store) refresh(ctx context.Context, gen uint64) error {
	list, err := s.api.ListNotes(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Note{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.notes = list
	s.loaded = true
	return nil
}

// Create adds a note then reloads. A non-nil note with a non-nil error means
// the note was created but the reload failed.
func (s *Store) Create(ctx context.Context, title, content string) (*models.Note, error) {
	s.op.Lock()
	defer s.op.Unlock()

	gen := s.generation()
	note, err := s.api.CreateNote(ctx, title, content)
	if err != nil {
		return nil, err
	}
	return note, s.refresh(ctx, gen)
}

// Update changes a note then reloads, with the same result contract as Create
func (s *Store) Update(ctx context.Context, id int, title, content string) (*models.Note, error) {
	s.op.Lock()
	defer s.op.Unlock()

	gen := s.generation()
	note, err := s.api.UpdateNote(ctx, id, title, content)
	if err != nil {
		return nil, err
	}
	return note, s.refresh(ctx, gen)
}

// Delete removes a note then reloads. The returned bool reports whether the
// server accepted the delete.
func (s *Store) Delete(ctx context.Context, id int) (bool, error) {
	s.op.Lock()
	defer s.op.Unlock()

	gen := s.generation()
	if err := s.api.DeleteNote(ctx, id); err != nil {
		return false, err
	}
	return true, s.refresh(ctx, gen)
}

// Reset empties the store and invalidates fetches still in flight
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.notes = []models.Note{}
	s.loaded = false
}
