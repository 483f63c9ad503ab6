// Package authcore provides session issuance and access control with
// signed JWT access tokens, single-use rotating refresh tokens, and a
// Redis-backed revocation store with family-level theft response.
//
// The package is designed for concurrent server workloads: Manager
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (TokenPair, Principal, Policy). Token
// encoding lives in token/, key management in keyring/, revocation
// records in revocation/, and HTTP glue in middleware/.
//
// # Performance contract
//
// Authorize is the hot path. It completes without a Redis round trip
// unless the route policy demands a subscription check. Issue, Refresh,
// and Revoke are allowed store round trips; each one is bounded by
// [RevocationConfig.StoreTimeout] and fails closed as
// [ErrStoreUnavailable] when the store cannot answer.
package authcore
