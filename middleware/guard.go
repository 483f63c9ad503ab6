package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authcore "github.com/tripatlas/authcore"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal injected by [Guard].
func PrincipalFromContext(ctx context.Context) (authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(authcore.Principal)
	return p, ok
}

// Guard authorizes every request against policy before passing it on.
// Failures map onto status codes: policy denial is 403, a store outage is
// 503, everything else (missing, malformed, expired, forged token) is 401.
func Guard(manager *authcore.Manager, policy authcore.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), remoteIP(r))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())

			principal, err := manager.Authorize(ctx, token, policy)
			if err != nil {
				switch {
				case errors.Is(err, authcore.ErrForbidden):
					http.Error(w, "forbidden", http.StatusForbidden)
				case errors.Is(err, authcore.ErrStoreUnavailable):
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				default:
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func remoteIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
