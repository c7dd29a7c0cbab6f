package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/amirk1998/notebox/pkg/errors"
)

// FieldEncryptor seals note content before it reaches the database.
type FieldEncryptor struct {
	gcm cipher.AEAD
}

// NewFieldEncryptor creates a field encryptor with AES-256-GCM
func NewFieldEncryptor(key []byte) (*FieldEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes for AES-256", errors.ErrInvalidKey)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &FieldEncryptor{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext). aad is authenticated but not
// stored; notes pass their owner id.
func (fe *FieldEncryptor) Encrypt(plaintext string, aad []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, fe.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", errors.ErrEncryptionFailed, err)
	}

	sealed := fe.gcm.Seal(nonce, nonce, []byte(plaintext), aad)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (fe *FieldEncryptor) Decrypt(ciphertext string, aad []byte) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode ciphertext: %v", errors.ErrDecryptionFailed, err)
	}

	nonceSize := fe.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", errors.ErrDecryptionFailed)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := fe.gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}
