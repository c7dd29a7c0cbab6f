package folders

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/storage"
)

func newOverlay(t *testing.T, store storage.Store) *Overlay {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return New(store, logger.NewNop())
}

func notesWithIDs(ids ...int) []models.Note {
	out := make([]models.Note, len(ids))
	for i, id := range ids {
		out[i] = models.Note{ID: id, Title: "n"}
	}
	return out
}

func TestCreateFolder(t *testing.T) {
	tests := []struct {
		name      string
		inName    string
		inColor   string
		wantName  string
		wantColor string
		wantErr   error
	}{
		{"valid", "Work", "green", "Work", "green", nil},
		{"trimmed", "  Ideas ", "pink", "Ideas", "pink", nil},
		{"unknown color", "Misc", "chartreuse", "Misc", "blue", nil},
		{"empty color", "Misc", "", "Misc", "blue", nil},
		{"blank name", "   ", "green", "", "", ErrInvalidFolderName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOverlay(t, nil)
			f, err := o.CreateFolder(tt.inName, tt.inColor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, o.All(), len(models.DefaultFolders))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, f.Name)
			assert.Equal(t, tt.wantColor, f.Color)
			assert.Regexp(t, `^folder-[0-9a-f-]{36}$`, f.ID)
			assert.False(t, f.IsDefault)
		})
	}
}

func TestFoldersPersist(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newOverlay(t, store)

	work, err := o.CreateFolder("Work", "green")
	require.NoError(t, err)
	require.NoError(t, o.AssignNote(7, work.ID))

	reloaded := newOverlay(t, store)
	got, ok := reloaded.Folder(work.ID)
	require.True(t, ok)
	assert.Equal(t, "Work", got.Name)
	assert.Equal(t, work.ID, reloaded.ResolveFolder(7))

	raw, _, _ := store.Get(storage.KeyNoteCategories)
	assert.JSONEq(t, `{"7":"`+work.ID+`"}`, raw)
}

func TestDeleteFolder_ReassignsNotes(t *testing.T) {
	o := newOverlay(t, nil)
	work, err := o.CreateFolder("Work", "green")
	require.NoError(t, err)
	home, err := o.CreateFolder("Home", "teal")
	require.NoError(t, err)

	require.NoError(t, o.AssignNote(1, work.ID))
	require.NoError(t, o.AssignNote(2, work.ID))
	require.NoError(t, o.AssignNote(3, home.ID))
	require.NoError(t, o.Select(work.ID))

	require.NoError(t, o.DeleteFolder(work.ID))

	assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(1))
	assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(2))
	assert.Equal(t, home.ID, o.ResolveFolder(3))
	assert.Equal(t, models.FolderAll, o.Active(), "selection falls back to all")

	_, ok := o.Folder(work.ID)
	assert.False(t, ok)
}

func TestDeleteFolder_Errors(t *testing.T) {
	o := newOverlay(t, nil)

	assert.ErrorIs(t, o.DeleteFolder(models.FolderAll), ErrDefaultFolder)
	assert.ErrorIs(t, o.DeleteFolder(models.FolderUncategorized), ErrDefaultFolder)
	assert.ErrorIs(t, o.DeleteFolder("folder-missing"), ErrFolderNotFound)
}

func TestAssignNote(t *testing.T) {
	o := newOverlay(t, nil)
	work, err := o.CreateFolder("Work", "green")
	require.NoError(t, err)

	assert.ErrorIs(t, o.AssignNote(1, models.FolderAll), ErrUnassignableFolder)
	assert.ErrorIs(t, o.AssignNote(1, "folder-gone"), ErrFolderNotFound)
	assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(1))

	require.NoError(t, o.AssignNote(1, work.ID))
	assert.Equal(t, work.ID, o.ResolveFolder(1))
	require.NoError(t, o.AssignNote(1, models.FolderUncategorized))
	assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(1))
}

func TestForgetNote(t *testing.T) {
	store := storage.NewMemoryStore()
	o := newOverlay(t, store)
	work, err := o.CreateFolder("Work", "green")
	require.NoError(t, err)
	require.NoError(t, o.AssignNote(4, work.ID))

	require.NoError(t, o.ForgetNote(4))
	require.NoError(t, o.ForgetNote(99))

	raw, _, _ := store.Get(storage.KeyNoteCategories)
	assert.JSONEq(t, `{}`, raw)
}

func TestDanglingMappingResolvesUncategorized(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(storage.KeyNoteCategories, `{"1":"folder-deleted","2":"all"}`))
	o := newOverlay(t, store)

	assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(1))
	assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(2))

	counts := o.CountByFolder(notesWithIDs(1, 2, 3))
	assert.Equal(t, map[string]int{models.FolderAll: 3, models.FolderUncategorized: 3}, counts)
}

func TestMalformedStateResets(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"folders", storage.KeyNoteFolders},
		{"categories", storage.KeyNoteCategories},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(tt.key, "{not json"))

			o := newOverlay(t, store)
			assert.Len(t, o.All(), len(models.DefaultFolders))
			assert.Equal(t, models.FolderUncategorized, o.ResolveFolder(1))

			_, present, _ := store.Get(tt.key)
			assert.False(t, present)
		})
	}
}

func TestFilterAndSelect(t *testing.T) {
	o := newOverlay(t, nil)
	work, err := o.CreateFolder("Work", "green")
	require.NoError(t, err)
	require.NoError(t, o.AssignNote(2, work.ID))

	notes := notesWithIDs(3, 2, 1)
	assert.Equal(t, notes, o.Filter(notes, models.FolderAll))
	assert.Equal(t, notesWithIDs(2), o.Filter(notes, work.ID))
	assert.Equal(t, notesWithIDs(3, 1), o.Filter(notes, models.FolderUncategorized))
	assert.Empty(t, o.Filter(notes, "folder-unknown"))

	assert.Equal(t, models.FolderAll, o.Active())
	require.NoError(t, o.Select(work.ID))
	assert.Equal(t, work.ID, o.Active())
	assert.ErrorIs(t, o.Select("folder-unknown"), ErrFolderNotFound)
	assert.Equal(t, work.ID, o.Active())
}

func TestCountByFolder_Invariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		store := storage.NewMemoryStore()

		// random mapping, including dangling and bogus folder ids
		folderIDs := []string{models.FolderUncategorized, models.FolderAll, "folder-dangling"}
		custom := []models.Folder{}
		nFolders, nNotes := rng.Intn(5), rng.Intn(30)
		for i := 0; i < nFolders; i++ {
			f := models.Folder{ID: "folder-" + string(rune('a'+i)), Name: "F", Color: "blue"}
			custom = append(custom, f)
			folderIDs = append(folderIDs, f.ID)
		}
		mapping := map[int]string{}
		var ids []int
		for id := 1; id <= nNotes; id++ {
			ids = append(ids, id)
			if rng.Intn(4) > 0 {
				mapping[id] = folderIDs[rng.Intn(len(folderIDs))]
			}
		}

		data, _ := json.Marshal(custom)
		require.NoError(t, store.Set(storage.KeyNoteFolders, string(data)))
		data, _ = json.Marshal(mapping)
		require.NoError(t, store.Set(storage.KeyNoteCategories, string(data)))

		o := newOverlay(t, store)
		if len(custom) > 0 && rng.Intn(2) == 0 {
			require.NoError(t, o.DeleteFolder(custom[0].ID))
		}

		notes := notesWithIDs(ids...)
		counts := o.CountByFolder(notes)

		require.Equal(t, len(notes), counts[models.FolderAll])
		sum := 0
		for id, c := range counts {
			if id == models.FolderAll {
				continue
			}
			_, ok := o.Folder(id)
			require.True(t, ok, "count for unknown folder %s", id)
			sum += c
		}
		require.Equal(t, len(notes), sum, "round %d", round)

		for _, n := range notes {
			resolved := o.ResolveFolder(n.ID)
			_, ok := o.Folder(resolved)
			require.True(t, ok)
			require.NotEqual(t, models.FolderAll, resolved)
		}
	}
}
