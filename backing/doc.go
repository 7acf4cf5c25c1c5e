// Package backing provides the Redis-backed TTL key-value store that the
// server process uses for three independent purposes: session records,
// response caching, and rate-limit counters.
//
// # Lazy connection
//
// A [Store] does not dial until the first operation needs a connection.
// Concurrent first operations are collapsed through a single-flight group,
// so a connection-establishment race never opens two connections.
//
// # Failure mode
//
// Every transport failure is wrapped in [ErrUnavailable]. Session and cache
// reads treat it as a miss; the rate limiter's behavior under outage is an
// explicit [FailurePolicy] choice rather than an accident of error plumbing.
//
// # What this package must NOT do
//
//   - Inspect session payload contents; records are opaque to it.
//   - Import the flybeth root package.
package backing
