// Package credcipher seals broker tokens with authenticated encryption
// before they are persisted anywhere.
//
// # Blob format
//
// A sealed token is the Base64 (standard, padded) encoding of
// nonce(12B) || ciphertext || tag(16B). The layout is private to this
// package; every other layer treats a blob as an opaque string.
//
// # Key handling
//
// The 32-byte key arrives Base64-encoded from the deployment environment.
// This package never derives, rotates, or stores key material, and a missing
// or malformed key fails construction — there is no silent plaintext mode.
//
// # What this package must NOT do
//
//   - Return partially decrypted data. Tamper anywhere in the blob fails the
//     whole decryption.
//   - Reuse a nonce. Every Encrypt call draws 12 fresh bytes from
//     crypto/rand, so equal plaintexts yield unequal blobs.
package credcipher
