package folders

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/storage"
)

var (
	ErrFolderNotFound     = errors.New("folder not found")
	ErrDefaultFolder      = errors.New("default folders cannot be deleted")
	ErrInvalidFolderName  = errors.New("folder name is required")
	ErrUnassignableFolder = errors.New("notes cannot be assigned to this folder")
)

const defaultColor = "blue"

// Overlay groups notes into client-side folders. The server never sees
// folders; the note to folder mapping lives under the noteCategories key and
// custom folders under noteFolders.
type Overlay struct {
	mu      sync.RWMutex
	store   storage.Store
	log     *logger.Logger
	folders []models.Folder
	mapping map[int]string
	active  string
	newID   func() string
}

// New loads the overlay from store. A key holding malformed JSON is reset to
// its empty value.
func New(store storage.Store, log *logger.Logger) *Overlay {
	o := &Overlay{
		store:   store,
		log:     log.WithComponent("folders"),
		folders: []models.Folder{},
		mapping: map[int]string{},
		active:  models.FolderAll,
		newID: func() string {
			return "folder-" + uuid.NewString()
		},
	}

	var folders []models.Folder
	if o.load(storage.KeyNoteFolders, &folders) && folders != nil {
		o.folders = folders
	}
	var mapping map[int]string
	if o.load(storage.KeyNoteCategories, &mapping) && mapping != nil {
		o.mapping = mapping
	}
	return o
}

func (o *Overlay) load(key string, v interface{}) bool {
	raw, ok, err := o.store.Get(key)
	if err != nil || !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		o.log.Warnw("Resetting malformed folder state", "key", key, "error", err)
		if err := o.store.Delete(key); err != nil {
			o.log.Warnw("Failed to remove malformed folder state", "key", key, "error", err)
		}
		return false
	}
	return true
}

func (o *Overlay) save(folders []models.Folder, mapping map[int]string) error {
	if folders != nil {
		data, err := json.Marshal(folders)
		if err != nil {
			return fmt.Errorf("failed to encode folders: %w", err)
		}
		if err := o.store.Set(storage.KeyNoteFolders, string(data)); err != nil {
			return fmt.Errorf("failed to persist folders: %w", err)
		}
	}
	if mapping != nil {
		data, err := json.Marshal(mapping)
		if err != nil {
			return fmt.Errorf("failed to encode note folders: %w", err)
		}
		if err := o.store.Set(storage.KeyNoteCategories, string(data)); err != nil {
			return fmt.Errorf("failed to persist note folders: %w", err)
		}
	}
	return nil
}

func (o *Overlay) exists(id string) bool {
	if models.IsDefaultFolder(id) {
		return true
	}
	for _, f := range o.folders {
		if f.ID == id {
			return true
		}
	}
	return false
}

func validColor(color string) bool {
	for _, c := range models.FolderColors {
		if c == color {
			return true
		}
	}
	return false
}

// CreateFolder adds a custom folder. Colors outside the palette fall back to
// blue.
func (o *Overlay) CreateFolder(name, color string) (models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Folder{}, ErrInvalidFolderName
	}
	if !validColor(color) {
		color = defaultColor
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	folder := models.Folder{ID: o.newID(), Name: name, Color: color}
	folders := append(append([]models.Folder{}, o.folders...), folder)
	if err := o.save(folders, nil); err != nil {
		return models.Folder{}, err
	}
	o.folders = folders
	return folder, nil
}

// DeleteFolder removes a custom folder and moves its notes to uncategorized.
// An active filter on the folder falls back to all.
func (o *Overlay) DeleteFolder(id string) error {
	if models.IsDefaultFolder(id) {
		return ErrDefaultFolder
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	folders := make([]models.Folder, 0, len(o.folders))
	found := false
	for _, f := range o.folders {
		if f.ID == id {
			found = true
			continue
		}
		folders = append(folders, f)
	}
	if !found {
		return ErrFolderNotFound
	}

	mapping := make(map[int]string, len(o.mapping))
	for noteID, folderID := range o.mapping {
		if folderID == id {
			folderID = models.FolderUncategorized
		}
		mapping[noteID] = folderID
	}

	if err := o.save(folders, mapping); err != nil {
		return err
	}
	o.folders = folders
	o.mapping = mapping
	if o.active == id {
		o.active = models.FolderAll
	}
	return nil
}

// AssignNote maps a note to uncategorized or an existing custom folder
func (o *Overlay) AssignNote(noteID int, folderID string) error {
	if folderID == models.FolderAll {
		return ErrUnassignableFolder
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.exists(folderID) {
		return ErrFolderNotFound
	}
	return o.setMapping(func(m map[int]string) {
		m[noteID] = folderID
	})
}

// ForgetNote drops the mapping of a deleted note
func (o *Overlay) ForgetNote(noteID int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.mapping[noteID]; !ok {
		return nil
	}
	return o.setMapping(func(m map[int]string) {
		delete(m, noteID)
	})
}

func (o *Overlay) setMapping(change func(map[int]string)) error {
	mapping := make(map[int]string, len(o.mapping)+1)
	for k, v := range o.mapping {
		mapping[k] = v
	}
	change(mapping)
	if err := o.save(nil, mapping); err != nil {
		return err
	}
	o.mapping = mapping
	return nil
}

// ResolveFolder returns the folder a note belongs to. Unmapped notes and
// notes mapped to a folder that no longer exists resolve to uncategorized.
func (o *Overlay) ResolveFolder(noteID int) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.resolve(noteID)
}

func (o *Overlay) resolve(noteID int) string {
	id, ok := o.mapping[noteID]
	if !ok || id == models.FolderAll || !o.exists(id) {
		return models.FolderUncategorized
	}
	return id
}

// CountByFolder counts notes per folder id. The all bucket holds the total
// and every other bucket sums to it.
func (o *Overlay) CountByFolder(notes []models.Note) map[string]int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	counts := map[string]int{
		models.FolderAll:           len(notes),
		models.FolderUncategorized: 0,
	}
	for _, f := range o.folders {
		counts[f.ID] = 0
	}
	for _, n := range notes {
		counts[o.resolve(n.ID)]++
	}
	return counts
}

// Filter returns the notes shown under folderID, keeping their order
func (o *Overlay) Filter(notes []models.Note, folderID string) []models.Note {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if folderID == models.FolderAll || o.resolve(n.ID) == folderID {
			out = append(out, n)
		}
	}
	return out
}

// Select sets the active filter
func (o *Overlay) Select(folderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.exists(folderID) {
		return ErrFolderNotFound
	}
	o.active = folderID
	return nil
}

func (o *Overlay) Active() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// All lists the default folders followed by custom ones
func (o *Overlay) All() []models.Folder {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]models.Folder, 0, len(models.DefaultFolders)+len(o.folders))
	out = append(out, models.DefaultFolders...)
	return append(out, o.folders...)
}

// Folder looks up a folder by id
func (o *Overlay) Folder(id string) (models.Folder, bool) {
	for _, f := range o.All() {
		if f.ID == id {
			return f, true
		}
	}
	return models.Folder{}, false
}
