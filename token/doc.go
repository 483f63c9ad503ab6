// Package token encodes, decodes, and verifies the signed tokens that carry
// session claims on the wire.
//
// Tokens are compact JWS strings (HS256). The header names the key ID that
// signed the token so the codec can verify against any live key in the
// keyring, not just the one currently signing. Claims are the fixed set
// sub, role, iat, exp, jti, and (on refresh tokens only) fam. All time
// claims are integer Unix seconds.
//
// Decode failures are classified into the closed set [ErrMalformed],
// [ErrSignatureInvalid], and [ErrExpired], checked in that order. Call sites
// dispatch with errors.Is; nothing in this package panics or retries.
package token
