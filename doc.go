// Package flybeth provides a client-side token lifecycle coordinator: JWT
// expiry tracking, single-flight credential refresh with optional rotation,
// durable credential storage, a Redis-backed session store, and an
// activity-aware expiry monitor.
//
// The package is designed for concurrent workloads: Coordinator methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// flybeth is the public surface. It exposes [Coordinator], [Builder],
// [Config], and value types (MetricsSnapshot, Event, etc.). All internal
// coordination — flow orchestration, event dispatch — lives under internal/
// and is never exported. Credential persistence lives in package credential,
// expiry decoding and issuance in package token, and the Redis layer in
// package backing.
//
// # What this package must NOT do
//
//   - Expose Redis clients, storage encodings, or dispatcher internals in
//     its public API.
//   - Verify token signatures on the refresh decision path. Expiry is read
//     from unverified claims; the refresh endpoint is the authority.
//   - Perform I/O during construction (Builder is allocation-only until
//     Build, and Build itself opens no connections).
//
// # Concurrency contract
//
// However many goroutines observe an expiring token at once, at most one
// network refresh is in flight. Losers of that race receive the winner's
// result. A caller abandoning its wait does not cancel the shared refresh.
package flybeth
