package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tripatlas/authcore/keyring"
)

// ErrMalformed is returned when a token is not structurally a signed token.
var ErrMalformed = errors.New("token malformed")

// ErrSignatureInvalid is returned when a token's signature does not verify,
// including when it names an unknown signing key.
var ErrSignatureInvalid = errors.New("token signature invalid")

// ErrExpired is returned when a structurally valid, correctly signed token
// is past its expiry (beyond the configured leeway).
var ErrExpired = errors.New("token expired")

const maxLeeway = 2 * time.Minute

// Claims is the decoded content of a token. FamilyID is empty on access
// tokens and set on refresh tokens.
type Claims struct {
	Subject   string
	Role      string
	TokenID   string
	FamilyID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	Role     string `json:"role"`
	FamilyID string `json:"fam,omitempty"`
	jwt.RegisteredClaims
}

// Config tunes a [Codec].
type Config struct {
	// Leeway is accepted past expiry to absorb clock skew between the
	// issuing and verifying hosts. It never extends effective trust
	// beyond the check itself. Zero disables it; capped at 2 minutes.
	Leeway time.Duration

	// Now overrides the time source. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies tokens against a [keyring.Provider].
// Verification is stateless: signature plus expiry, no store lookup.
type Codec struct {
	keys   keyring.Provider
	leeway time.Duration
	now    func() time.Time
}

// NewCodec creates a [Codec] using keys for signing and verification.
func NewCodec(keys keyring.Provider, cfg Config) (*Codec, error) {
	if keys == nil {
		return nil, errors.New("key provider required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{
		keys:   keys,
		leeway: cfg.Leeway,
		now:    cfg.Now,
	}, nil
}

// Encode serializes and signs claims with the keyring's current key,
// valid for ttl from now. The key ID travels in the token header.
func (c *Codec) Encode(ctx context.Context, claims Claims, ttl time.Duration) (string, error) {
	key, err := c.keys.Current(ctx)
	if err != nil {
		return "", err
	}

	now := c.now()
	wire := wireClaims{
		Role:     claims.Role,
		FamilyID: claims.FamilyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			ID:        claims.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	tok.Header["kid"] = key.ID

	return tok.SignedString(key.Secret)
}

// Decode verifies tokenStr and returns its claims. Checks run in order:
// structural validity, signature (selecting the secret by the kid header),
// then expiry. Failures map onto [ErrMalformed], [ErrSignatureInvalid],
// and [ErrExpired]; a keyring outage is surfaced as-is.
func (c *Codec) Decode(ctx context.Context, tokenStr string) (Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &wireClaims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrSignatureInvalid
		}

		secret, lookupErr := c.keys.Lookup(ctx, kid)
		if lookupErr != nil {
			if errors.Is(lookupErr, keyring.ErrKeyNotFound) {
				// Unknown kid is an invalid-token condition, not a
				// server error.
				return nil, ErrSignatureInvalid
			}
			return nil, lookupErr
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, classifyError(err)
	}

	wire, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrMalformed
	}

	claims := Claims{
		Subject:  wire.Subject,
		Role:     wire.Role,
		TokenID:  wire.ID,
		FamilyID: wire.FamilyID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}

	return claims, nil
}

func classifyError(err error) error {
	switch {
	case errors.Is(err, ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, keyring.ErrUnavailable):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}
