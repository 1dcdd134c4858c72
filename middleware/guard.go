package middleware

import (
	"context"
	"net/http"
	"strings"

	goidentity "github.com/wizardcld/goidentity"
)

type requestUserContextKey struct{}

// UserFromContext returns the verified caller injected by [Authenticate].
func UserFromContext(ctx context.Context) (goidentity.RequestUser, bool) {
	user, ok := ctx.Value(requestUserContextKey{}).(goidentity.RequestUser)
	return user, ok
}

// Authenticate verifies the bearer access token on every request and stores
// the resulting RequestUser in the request context. Requests without a valid
// token are rejected with 401 before reaching the wrapped handler.
func Authenticate(engine *goidentity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := engine.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), requestUserContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGuard enforces a guard against the RequestUser placed in the context
// by [Authenticate]. An unauthenticated request is a 401; an authenticated
// caller failing the guard is a 403.
func RequireGuard(engine *goidentity.Engine, guard goidentity.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if err := engine.Authorize(user, guard); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
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
