// Package rate provides the per-principal sliding-window counters behind the
// risk assessor's rate signal.
//
// # Window semantics
//
// A counter belongs to one principal and one window. The first hit after the
// window has elapsed resets the counter and restamps the window start; every
// other hit increments. Counters are an abuse-dampening approximation, not a
// hard quota: the in-memory backend is per-process and not linearizable
// across restarts, and the Redis backend trades one round-trip per hit for
// cross-node sharing.
//
// # What this package must NOT do
//
//   - Decide pass/fail. Classification thresholds live with the risk
//     assessor in the root package.
//   - Be imported outside the brokerauth module.
package rate
