// Package refresh keeps near-expiry broker sessions alive.
//
// # Sweep model
//
// A ticker drives one sweep per interval. A sweep selects the active sessions
// whose remaining lifetime is at or under the refresh threshold, then fans
// out one task per candidate on a bounded errgroup and joins them before the
// sweep ends. A single-flight flag skips the tick entirely while the previous
// sweep is still in flight — cycles never overlap.
//
// # Failure policy
//
// Candidate failures are isolated: one broker rejecting a refresh never
// aborts the sweep for its siblings. A failed candidate is marked EXPIRED —
// terminal, no further attempts — and a failure event is published with the
// reason. Each broker call gets one bounded retry with jitter inside a
// per-call timeout; there is no cross-sweep backoff, re-authentication is
// the recovery path.
//
// # What this package must NOT do
//
//   - Publish, log, or retain a plaintext token beyond the scope of one
//     candidate's refresh.
//   - Reactivate a terminal session.
package refresh
