package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/notebox/internal/database"
	"github.com/amirk1998/notebox/internal/logger"
)

func newManager(t *testing.T, retention time.Duration) *Manager {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Connect(database.DefaultConfig(filepath.Join(dir, "data", "notebox.db"), "test-db-key-0123456789abcdef0123456789"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	m, err := NewManager(db, filepath.Join(dir, "backups"), "backup-secret", retention, logger.NewNop())
	require.NoError(t, err)
	return m
}

func TestCreateVerifyOpen(t *testing.T) {
	m := newManager(t, 0)

	path, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.FileExists(t, path+sumSuffix)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, m.Verify(path))
	data, err := m.Open(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	files, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestVerify_DetectsTampering(t *testing.T) {
	m := newManager(t, 0)
	path, err := m.Create(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0600))

	assert.ErrorContains(t, m.Verify(path), "checksum mismatch")
	_, err = m.Open(path)
	assert.Error(t, err)
}

func TestOpen_WrongKey(t *testing.T) {
	m := newManager(t, 0)
	path, err := m.Create(context.Background())
	require.NoError(t, err)

	other, err := NewManager(m.db, m.dir, "another-secret", 0, logger.NewNop())
	require.NoError(t, err)
	_, err = other.Open(path)
	assert.ErrorContains(t, err, "decrypt")
}

func TestPrune(t *testing.T) {
	m := newManager(t, 24*time.Hour)
	ctx := context.Background()

	path, err := m.Create(ctx)
	require.NoError(t, err)

	removed, err := m.Prune()
	require.NoError(t, err)
	assert.Zero(t, removed)

	m.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	removed, err = m.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+sumSuffix)
}

func TestNewManager_RequiresKey(t *testing.T) {
	_, err := NewManager(nil, t.TempDir(), "", 0, logger.NewNop())
	assert.Error(t, err)
}
