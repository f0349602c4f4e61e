// Package vault encrypts and decrypts user-supplied provider API keys with a
// single symmetric key derived from a process-wide secret.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
)

// ErrDecryptionFailed is returned when a ciphertext cannot be recovered with
// the active key: wrong key, corrupted data, or key rotation without
// migration.
var ErrDecryptionFailed = errors.New("decryption failed: invalid key or corrupted data")

type Vault struct {
	aead cipher.AEAD
}

// New derives an AES-256-GCM key from the secret via SHA-256.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault secret must not be empty")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "init cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "init gcm")
	}
	return &Vault{aead: aead}, nil
}

// Encrypt returns the base64 ciphertext of plaintext. The empty string is a
// "no credential" sentinel and encrypts to the empty string.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The empty string decrypts to the empty string;
// any undecodable input yields ErrDecryptionFailed.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrDecryptionFailed
	}
	plaintext, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
