// Package revocation records revoked and rotated token identifiers in Redis
// with TTLs matching the tokens' remaining lifetimes, so the store prunes
// itself. It is keyed by opaque token and family identifiers, never by raw
// token strings, so a leaked log line containing a token cannot be used to
// probe revocation state.
//
// The package's central primitive is [Store.Rotate]: one atomic script that
// claims a refresh token's identifier, detects reuse of an already-claimed
// identifier (killing the whole family when it does), and checks whether the
// family has been revoked, all in a single Redis round trip. Concurrent
// rotations of the same token therefore produce exactly one winner with no
// application-level locking.
package revocation
