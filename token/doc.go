// Package token provides claim-level inspection and issuance of the signed
// credentials coordinated by flybeth.
//
// # Expiry oracle
//
// DecodeExpiry, TimeUntilExpiry, and ExpiringSoon read the expiry claim out
// of a token's payload segment without verifying its signature. Signature
// verification is the remote server's job; a client deciding whether to
// refresh only needs the timestamp. All three are pure functions: no side
// effects, no network access, safe to call any number of times.
//
// # Issuance
//
// Issuer signs access/refresh pairs with per-actor lifetimes (15m/7d for
// users and businesses, 60m/30d for admins). At issuance the refresh token
// always outlives the access token. The coordinator itself never signs;
// Issuer exists for the server collaborator and for tests.
//
// # What this package must NOT do
//
//   - Perform I/O or touch any store.
//   - Import the flybeth root package or any sibling package.
package token
