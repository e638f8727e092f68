// Package security encrypts broker access tokens at rest. Tokens are sealed
// with a random nonce under a symmetric key taken from the environment, so a
// leaked checkpoint database does not leak live trading sessions.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

func loadKey() (*[keySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(GetConfig().CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("credentials key is not valid base64: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("credentials key must decode to %d bytes, got %d", keySize, len(raw))
	}

	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

// EncryptString seals plaintext and returns base64(nonce || ciphertext).
func EncryptString(plaintext string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(encoded string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return "", errors.New("decryption failed, wrong key or corrupted ciphertext")
	}
	return string(plaintext), nil
}
