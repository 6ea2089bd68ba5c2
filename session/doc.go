// Package session holds the broker session record, its lifecycle state
// machine, and the Redis-backed TTL store.
//
// # State machine
//
// ACTIVE is the only non-terminal state. REVOKED, EXPIRED, and INVALID are
// terminal: no operation ever transitions a session back to ACTIVE, and a
// re-authentication always mints a new session id. A stored record whose
// status is terminal or whose expiry has passed is treated as not-found on
// read even while the key physically exists (lazy expiry masking).
//
// # Concurrency
//
// Revoke, Touch, and ApplyRefresh are read-modify-write sequences guarded by
// a whole-value Lua check-and-set with a bounded retry, so a concurrent
// touch+revoke on the same id cannot silently undo each other.
//
// # What this package must NOT do
//
//   - See plaintext tokens. Callers store AEAD blobs only.
//   - Maintain a secondary index. Lookups by user and broker are SCAN-based
//     and O(total sessions); acceptable at the target scale, and the Store
//     API leaves room to swap an index in later.
package session
