package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
)

type KeyManager struct {
	dbKey  string
	appKey []byte
}

// NewKeyManager derives the field encryption key from the configured
// secret. The database key is handed to SQLCipher as-is.
func NewKeyManager(dbKey, appKey string) (*KeyManager, error) {
	if dbKey == "" || appKey == "" {
		return nil, fmt.Errorf("database and application keys are required")
	}
	if subtle.ConstantTimeCompare([]byte(dbKey), []byte(appKey)) == 1 {
		return nil, fmt.Errorf("database and application keys must differ")
	}

	return &KeyManager{
		dbKey:  dbKey,
		appKey: deriveKey(appKey),
	}, nil
}

func (km *KeyManager) DBKey() string {
	return km.dbKey
}

func (km *KeyManager) AppKey() []byte {
	return km.appKey
}

// deriveKey derives a 32-byte key from a string using SHA-256
func deriveKey(keyStr string) []byte {
	hash := sha256.Sum256([]byte(keyStr))
	return hash[:]
}

// OwnerAAD is the additional data notes are sealed with.
func OwnerAAD(userID int) []byte {
	return []byte("user:" + strconv.Itoa(userID))
}

// Fingerprint is a short, non-reversible tag for logging a secret.
func Fingerprint(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:4])
}
