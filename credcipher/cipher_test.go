package credcipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func newTestCipher(t *testing.T, suite Suite) *Cipher {
	t.Helper()

	c, err := New(testKey(t), suite)
	if err != nil {
		t.Fatalf("cipher construction failed: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, suite := range []Suite{SuiteAESGCM, SuiteChaCha20Poly1305} {
		c := newTestCipher(t, suite)

		for _, plaintext := range []string{
			"abc123",
			"a",
			"access-token-with-some-length-to-it-0123456789",
			"उपयोगकर्ता-token", // non-ASCII survives the round trip
		} {
			blob, err := c.Encrypt(plaintext)
			if err != nil {
				t.Fatalf("[%s] encrypt failed: %v", suite, err)
			}

			got, err := c.Decrypt(blob)
			if err != nil {
				t.Fatalf("[%s] decrypt failed: %v", suite, err)
			}
			if got != plaintext {
				t.Fatalf("[%s] round trip mismatch: got %q want %q", suite, got, plaintext)
			}
		}
	}
}

func TestEncryptScenarioBlobShape(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	blob, err := c.Encrypt("abc123")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("blob is not valid base64: %v", err)
	}
	if len(raw) <= NonceSize {
		t.Fatalf("decoded blob too short: %d bytes", len(raw))
	}
	// nonce || ciphertext || tag
	if want := NonceSize + len("abc123") + TagSize; len(raw) != want {
		t.Fatalf("decoded blob length %d, want %d", len(raw), want)
	}

	got, err := c.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("got %q want %q", got, "abc123")
	}
}

func TestEncryptNonceRandomness(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	first, err := c.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("first encrypt failed: %v", err)
	}
	second, err := c.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("second encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptTamperDetection(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	blob, err := c.Encrypt("tamper-me")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Flip every bit of every byte: nonce, ciphertext, and tag must all be
	// covered by the authentication check.
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := make([]byte, len(raw))
			copy(tampered, raw)
			tampered[i] ^= 1 << bit

			got, err := c.Decrypt(base64.StdEncoding.EncodeToString(tampered))
			if err == nil {
				t.Fatalf("tampered blob (byte %d bit %d) decrypted to %q", i, bit, got)
			}
			if !errors.Is(err, ErrDecryptFailed) {
				t.Fatalf("unexpected error kind: %v", err)
			}
		}
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	for _, blob := range []string{
		"",
		"not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		if _, err := c.Decrypt(blob); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("blob %q: expected ErrDecryptFailed, got %v", blob, err)
		}
	}
}

func TestEncryptRejectsEmptyPlaintext(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	if _, err := c.Encrypt(""); !errors.Is(err, ErrEmptyPlaintext) {
		t.Fatalf("expected ErrEmptyPlaintext, got %v", err)
	}
}

func TestNewKeyValidation(t *testing.T) {
	if _, err := New("", SuiteAESGCM); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("empty key: expected ErrKeyRequired, got %v", err)
	}

	if _, err := New("%%%not-base64%%%", SuiteAESGCM); !errors.Is(err, ErrBadKey) {
		t.Fatalf("undecodable key: expected ErrBadKey, got %v", err)
	}

	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	if _, err := New(short, SuiteAESGCM); !errors.Is(err, ErrBadKey) {
		t.Fatalf("short key: expected ErrBadKey, got %v", err)
	}

	if _, err := New(testKey(t), Suite("des-ecb")); err == nil {
		t.Fatal("unsupported suite accepted")
	}
}

func TestCrossSuiteBlobsDoNotOpen(t *testing.T) {
	keyB64 := testKey(t)
	gcm, err := New(keyB64, SuiteAESGCM)
	if err != nil {
		t.Fatalf("gcm construction failed: %v", err)
	}
	chacha, err := New(keyB64, SuiteChaCha20Poly1305)
	if err != nil {
		t.Fatalf("chacha construction failed: %v", err)
	}

	blob, err := gcm.Encrypt("suite-bound")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := chacha.Decrypt(blob); err == nil {
		t.Fatal("chacha opened an aes-gcm blob under the same key")
	}
}
