package credcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Suite selects the AEAD primitive.
type Suite string

const (
	// SuiteAESGCM is an exported constant or variable used by the credential cipher.
	SuiteAESGCM Suite = "aes-gcm"
	// SuiteChaCha20Poly1305 is an exported constant or variable used by the credential cipher.
	SuiteChaCha20Poly1305 Suite = "chacha20-poly1305"
)

const (
	// KeySize is the required raw key length in bytes.
	KeySize = 32
	// NonceSize is the per-blob nonce length. Both suites use 96-bit nonces.
	NonceSize = 12
	// TagSize is the authentication tag length appended by both suites.
	TagSize = 16
)

var (
	// ErrKeyRequired is returned when no key is configured. Absence of a key
	// is fatal, never a pass-through.
	ErrKeyRequired = errors.New("credcipher: encryption key required")
	// ErrBadKey is returned for a key that is not Base64 of exactly 32 bytes.
	ErrBadKey = errors.New("credcipher: key must be base64 of 32 raw bytes")
	// ErrEmptyPlaintext is returned by Encrypt for empty input.
	ErrEmptyPlaintext = errors.New("credcipher: empty plaintext")
	// ErrDecryptFailed covers every decryption failure: bad encoding, short
	// blob, or tag mismatch. Deliberately indistinct — callers get no oracle.
	ErrDecryptFailed = errors.New("credcipher: decryption failed")
)

// Cipher seals and opens token blobs with the configured AEAD. Safe for
// concurrent use; the underlying AEAD is stateless between calls.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a [Cipher] from a Base64-encoded 32-byte key. An empty key is
// [ErrKeyRequired]; a wrong-size or undecodable key is [ErrBadKey].
func New(keyBase64 string, suite Suite) (*Cipher, error) {
	if keyBase64 == "" {
		return nil, ErrKeyRequired
	}

	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBadKey, len(key))
	}

	aead, err := buildAEAD(key, suite)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

func buildAEAD(key []byte, suite Suite) (cipher.AEAD, error) {
	switch suite {
	case SuiteAESGCM, "":
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("credcipher: unsupported suite %q", suite)
	}
}

// Encrypt seals plaintext under a fresh random nonce and returns the Base64
// blob. Empty plaintext is rejected: an empty token is always a caller bug.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("credcipher: nonce generation: %w", err)
	}

	// Seal appends ciphertext||tag to the nonce slice, producing the blob
	// layout in one allocation.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering — a flipped bit in
// nonce, ciphertext, or tag — fails with [ErrDecryptFailed] and never yields
// corrupted plaintext.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < NonceSize+TagSize {
		return "", ErrDecryptFailed
	}

	nonce, sealed := raw[:NonceSize], raw[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
