package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/storage"
)

const (
	filePrefix = "notebox_"
	fileSuffix = ".db.gz.enc"
	sumSuffix  = ".sha256"
)

// Manager writes compressed, AES-GCM sealed snapshots of the database.
// Each snapshot gets a sidecar file with its SHA-256 digest.
type Manager struct {
	db        *sql.DB
	dir       string
	key       []byte
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewManager derives the sealing key from secret. A zero retention keeps
// every snapshot.
func NewManager(db *sql.DB, dir, secret string, retention time.Duration, log *logger.Logger) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("backup key is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	key := sha256.Sum256([]byte(secret))
	return &Manager{
		db:        db,
		dir:       dir,
		key:       key[:],
		retention: retention,
		log:       log.WithComponent("backup"),
		now:       time.Now,
	}, nil
}

// Create snapshots the database and returns the path of the sealed file
func (m *Manager) Create(ctx context.Context) (string, error) {
	name := filePrefix + m.now().UTC().Format("20060102T150405.000000000")
	raw := filepath.Join(m.dir, name+".db")
	sealed := filepath.Join(m.dir, name+fileSuffix)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, raw); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}
	defer os.Remove(raw)

	plain, err := os.ReadFile(raw)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	data, err := m.seal(plain)
	if err != nil {
		return "", err
	}
	if err := storage.WriteFileAtomic(sealed, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	sum := sha256.Sum256(data)
	if err := storage.WriteFileAtomic(sealed+sumSuffix, []byte(hex.EncodeToString(sum[:])), 0600); err != nil {
		os.Remove(sealed)
		return "", fmt.Errorf("failed to write checksum: %w", err)
	}

	m.log.Infow("Backup created", "path", sealed, "bytes", len(data))
	return sealed, nil
}

// seal compresses then encrypts; the nonce prefixes the ciphertext
func (m *Manager) seal(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, buf.Bytes(), nil), nil
}

func (m *Manager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Open verifies the checksum of a sealed backup and returns the database
// bytes inside it.
func (m *Manager) Open(path string) ([]byte, error) {
	if err := m.Verify(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("backup is truncated")
	}
	compressed, err := gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt backup: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress backup: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Verify compares a backup with its recorded digest
func (m *Manager) Verify(path string) error {
	want, err := os.ReadFile(path + sumSuffix)
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != strings.TrimSpace(string(want)) {
		return fmt.Errorf("checksum mismatch: backup file may be corrupted")
	}
	return nil
}

// List returns the sealed backups in the directory, oldest first
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(m.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Prune deletes backups older than the retention period
func (m *Manager) Prune() (int, error) {
	if m.retention <= 0 {
		return 0, nil
	}
	files, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-m.retention)
	removed := 0
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.log.Warnw("Failed to delete old backup", "path", path, "error", err)
			continue
		}
		os.Remove(path + sumSuffix)
		removed++
	}

	if removed > 0 {
		m.log.Infow("Deleted old backups", "count", removed)
	}
	return removed, nil
}

// Start backs up every interval until ctx is done
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Infow("Scheduled backups started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Create(ctx); err != nil {
				m.log.Errorw("Scheduled backup failed", "error", err)
			}
			if _, err := m.Prune(); err != nil {
				m.log.Errorw("Backup cleanup failed", "error", err)
			}
		}
	}
}
