// Package secrets is the boundary to the external path-addressed secret
// store holding encrypted broker tokens.
//
// # Paths and keys
//
// A path is "<backend>/<userId>/<broker-lowercase>", built by [TokenPath].
// Under one path live the keys "access_token" and "refresh_token", whose
// values are always AEAD blobs from package credcipher — plaintext never
// reaches this package.
//
// # Merge semantics
//
// Store merges into the map already present at the path: writing
// refresh_token must not erase a previously written access_token beside it.
// The Redis backend gets this for free from hash field writes; the Vault
// backend patches server-side, falling back to a full write for paths that
// do not exist yet.
package secrets
