// Package credential holds the current access/refresh pair for one
// authenticated context and persists it across process restarts.
//
// # Single source of truth
//
// A [Store] is explicitly constructed and passed by reference to whatever
// coordinates it; there is no ambient global instance. Set replaces the pair
// wholesale, Clear is idempotent, and both complete their durable write
// before returning so a crash immediately afterwards cannot revert to a
// stale pair.
//
// # Binary encoding
//
// Pairs are persisted as a compact versioned binary blob (version byte,
// length-prefixed tokens, issuance timestamp). Decoding rejects unknown
// versions and truncated blobs.
//
// # What this package must NOT do
//
//   - Talk to the network or decide when to refresh.
//   - Resurrect a pair whose refresh token has already expired.
package credential
