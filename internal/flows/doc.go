// Package flows contains pure-function orchestrators for the coordinator's
// lifecycle operations.
//
// Each flow function (RunRefresh, RunLogout) accepts a typed dependency
// struct and returns results without side-effects beyond those dependencies.
// This design enables exhaustive unit testing with mock dependencies and
// keeps the Coordinator type thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, the refresh
// endpoint client, and the warn hook. They do NOT own any of these
// resources — ownership stays with the Coordinator.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly — all I/O is mediated through dependency
//     functions.
//   - Decide concurrency. Single-flight coalescing is the Coordinator's
//     job; a flow assumes it is the only refresh in progress.
package flows
