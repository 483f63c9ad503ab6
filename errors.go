package authcore

import (
	"errors"

	"github.com/tripatlas/authcore/revocation"
	"github.com/tripatlas/authcore/token"
)

var (
	// ErrUnauthenticated means no usable token was presented at all.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the token is valid but the principal does not
	// satisfy the route policy.
	ErrForbidden = errors.New("forbidden")
	// ErrReuseDetected means an already-rotated refresh token was presented
	// again. The token's family has been revoked as a theft response.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrSessionRevoked means the token's family was revoked, by reuse
	// detection or by an administrative action.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrRefreshRateLimited means the family exceeded its refresh budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrInvalidPrincipal means Issue was called with an empty subject or
	// an unknown role.
	ErrInvalidPrincipal = errors.New("invalid principal")
	// ErrManagerNotReady means a Manager method was called before Build
	// completed successfully.
	ErrManagerNotReady = errors.New("manager not initialized")
)

// Re-exported sentinels so callers match every outcome with a single
// errors.Is against this package.
var (
	// ErrTokenMalformed means the presented string is not a decodable token.
	ErrTokenMalformed = token.ErrMalformed
	// ErrSignatureInvalid means the token failed signature verification.
	ErrSignatureInvalid = token.ErrSignatureInvalid
	// ErrTokenExpired means the token is past its expiry beyond any
	// configured leeway.
	ErrTokenExpired = token.ErrExpired
	// ErrStoreUnavailable means the revocation store could not answer. It
	// is infrastructure failure, never a security verdict.
	ErrStoreUnavailable = revocation.ErrUnavailable
)
