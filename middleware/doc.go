// Package middleware exposes HTTP adapters built on top of the
// coordinator.
//
// # Adapters
//
//   - [Transport] — a client-side [http.RoundTripper] that attaches the
//     current access token, refreshes it when expiring, and retries once
//     on a 401.
//   - [SessionGuard] — a server-side middleware that resolves the session
//     key header against the Redis-backed session store.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into coordinator and session
// store calls. It does NOT implement lifecycle logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis directly (the session manager handles I/O).
//   - Retry more than once; repeated 401s mean re-authentication.
package middleware
