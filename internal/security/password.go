package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP recommendations)
const (
	argon2Time      = 3
	argon2Memory    = 64 * 1024 // 64 MB
	argon2Threads   = 2
	argon2KeyLength = 32
	saltLength      = 16
)

// HashParams tunes the Argon2id cost.
type HashParams struct {
	Time      uint32
	Memory    uint32
	Threads   uint8
	KeyLength uint32
}

// DefaultHashParams are used by NewPasswordHasher.
var DefaultHashParams = HashParams{
	Time:      argon2Time,
	Memory:    argon2Memory,
	Threads:   argon2Threads,
	KeyLength: argon2KeyLength,
}

type PasswordHasher struct {
	params HashParams
}

func NewPasswordHasher() *PasswordHasher {
	return NewPasswordHasherWithParams(DefaultHashParams)
}

// NewPasswordHasherWithParams lets tests trade strength for speed.
func NewPasswordHasherWithParams(params HashParams) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash generates an encoded Argon2id hash with a random salt
func (ph *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, ph.params.Time, ph.params.Memory, ph.params.Threads, ph.params.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		ph.params.Memory,
		ph.params.Time,
		ph.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if password matches the encoded hash. The parameters
// stored in the hash are used, not the hasher's own.
func (ph *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("failed to parse version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("incompatible argon2 version")
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	testHash := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, testHash) == 1, nil
}
