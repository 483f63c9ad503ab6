// Package middleware exposes HTTP middleware built on top of
// authcore.Manager authorization.
//
// [Guard] reads the Authorization header, calls Manager.Authorize against
// a route policy, and injects the resulting principal into the request
// context for handlers to read via [PrincipalFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Manager calls. It does NOT
// implement authorization logic itself. All decisions are delegated to
// Manager.Authorize; the middleware only maps its error taxonomy onto
// status codes (401, 403, 503).
package middleware
