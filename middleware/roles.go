package middleware

import (
	"net/http"

	authcore "github.com/tripatlas/authcore"
)

// RequireAdmin guards a route for admin principals only.
func RequireAdmin(manager *authcore.Manager) func(http.Handler) http.Handler {
	return Guard(manager, authcore.RequireRole(authcore.RoleAdmin))
}

// RequirePremium guards a route for any valid principal holding an active
// subscription. The subscription is checked live on every request.
func RequirePremium(manager *authcore.Manager) func(http.Handler) http.Handler {
	return Guard(manager, authcore.RequireSubscription())
}
