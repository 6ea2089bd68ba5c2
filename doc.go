// Package brokerauth mediates authentication and session lifecycle for
// third-party trading-broker OAuth integrations. Every external request passes
// through a zero-trust pipeline (authentication check, authorization check,
// risk scoring, operation, audit) before any broker token is touched; tokens
// are AEAD-encrypted before they leave the process and are kept alive by a
// scheduled refresh sweep.
//
// The package is designed for concurrent server workloads: Service and
// Mediator methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// brokerauth is the public surface. It exposes [Service], [Mediator],
// [Builder], [Config], and value types (SecurityContext, Result, AuditRecord).
// Session persistence lives in package session, token encryption in package
// credcipher, the secret-store boundary in package secrets, and the refresh
// sweep in package refresh. Rate-window counters live under internal/ and are
// never exported.
//
// # What this package must NOT do
//
//   - Expose Redis or Vault clients, blob encodings, or nonce layout in its
//     public API.
//   - Log, audit, or return a raw access or refresh token anywhere. Audit
//     records carry masked identifiers only.
//   - Allow any business operation to run before all three gate stages have
//     passed. The first failing stage short-circuits the rest.
//
// # Failure contract
//
// Inside the pipeline errors never travel as raw Go errors across component
// boundaries: they are carried as a [*Error] with a stable [Code] inside a
// [Result]. Risk scoring fails closed — an internal error while computing a
// score denies the request.
package brokerauth
