package crypto

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("ciphertext failed authentication")

// SecretboxEncryptor implements Encryptor with NaCl secretbox and a key
// derived from a local secret. Used in DEV_MODE and tests.
type SecretboxEncryptor struct {
	key [32]byte
}

// NewSecretboxEncryptor derives a 256-bit key from secret.
func NewSecretboxEncryptor(secret string) *SecretboxEncryptor {
	return &SecretboxEncryptor{key: sha256.Sum256([]byte(secret))}
}

func (e *SecretboxEncryptor) Encrypt(_ context.Context, plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &e.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *SecretboxEncryptor) Decrypt(_ context.Context, ciphertext string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &e.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
