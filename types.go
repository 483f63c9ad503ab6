package authcore

import (
	"context"
	"time"
)

// Role is the coarse access tier minted into every token. Role changes
// take effect on the next issuance or rotation, never mid-token.
type Role string

const (
	// RoleStandard is the default tier.
	RoleStandard Role = "standard"
	// RoleAdmin unlocks administrative routes.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStandard, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal is the authenticated identity produced by [Manager.Authorize].
type Principal struct {
	SubjectID string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// TokenPair is the result of [Manager.Issue] and [Manager.Refresh].
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Policy describes what a route demands beyond a valid token.
type Policy struct {
	// RequiredRoles lists acceptable roles. Empty means any valid role.
	RequiredRoles []Role
	// RequireActiveSubscription gates the route on a live subscription
	// lookup. Subscription state is never read from the token.
	RequireActiveSubscription bool
}

// RequireRole returns a [Policy] admitting only the listed roles.
func RequireRole(roles ...Role) Policy {
	return Policy{RequiredRoles: roles}
}

// RequireSubscription returns a [Policy] demanding an active subscription
// on top of the listed roles.
func RequireSubscription(roles ...Role) Policy {
	return Policy{RequiredRoles: roles, RequireActiveSubscription: true}
}

func (p Policy) allowsRole(r Role) bool {
	if len(p.RequiredRoles) == 0 {
		return true
	}
	for _, want := range p.RequiredRoles {
		if r == want {
			return true
		}
	}
	return false
}

// SubscriptionStatus is the answer from a [SubscriptionChecker].
type SubscriptionStatus struct {
	Active    bool
	ExpiresAt time.Time
}

// SubscriptionChecker resolves a subject's current subscription state.
// Authorization consults it live on every subscription-gated check so a
// lapsed subscription takes effect immediately, unlike a role change.
type SubscriptionChecker interface {
	SubscriptionStatus(ctx context.Context, subjectID string) (SubscriptionStatus, error)
}

// SubscriptionCheckerFunc adapts a function to [SubscriptionChecker].
type SubscriptionCheckerFunc func(ctx context.Context, subjectID string) (SubscriptionStatus, error)

func (f SubscriptionCheckerFunc) SubscriptionStatus(ctx context.Context, subjectID string) (SubscriptionStatus, error) {
	return f(ctx, subjectID)
}

// CredentialVerifier is implemented by the host application. The manager
// never sees passwords; callers verify credentials themselves and hand
// [Manager.Issue] the resulting subject and role.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, identifier, secret string) (subjectID string, role Role, err error)
}
