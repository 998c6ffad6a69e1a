package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used to stretch key material into an AES-256 key.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
)

var (
	ErrNoKeyMaterial    = errors.New("cryptox: empty key material")
	ErrCiphertextShort  = errors.New("cryptox: ciphertext too short")
	ErrDecryptionFailed = errors.New("cryptox: decryption failed")
)

// Sealer encrypts small secrets at rest with AES-256-GCM. The output format
// is [12-byte nonce][ciphertext][16-byte auth tag].
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key from material and salt with Argon2id. The
// salt must be stable for the lifetime of anything sealed with it.
func NewSealer(material, salt []byte) (*Sealer, error) {
	if len(material) == 0 {
		return nil, ErrNoKeyMaterial
	}
	key := argon2.IDKey(material, salt, iterations, memory, parallelism, keyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal and verifies the auth tag.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// SealString seals s and returns it base64url encoded, ready for a TEXT column.
// The empty string seals to the empty string.
func (s *Sealer) SealString(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	out, err := s.Seal([]byte(plain))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// OpenString reverses SealString.
func (s *Sealer) OpenString(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	out, err := s.Open(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
