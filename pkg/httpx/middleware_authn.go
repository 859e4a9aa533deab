package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/rollcall/pkg/slogx"
)

// ErrUnauthenticated marks an Authenticator error as the caller's fault. Only
// errors matching it get the bearer challenge; anything else is a 500.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves a raw bearer token into a principal.
type Authenticator[T Principal] interface {
	Authenticate(ctx context.Context, raw string) (T, error)
}

// AuthnMiddleware requires a valid bearer token. The resolved principal is
// stored on the request context and its subject is added to the request
// logger.
func AuthnMiddleware[T Principal](a Authenticator[T]) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}

			p, err := a.Authenticate(ctx, raw)
			if errors.Is(err, ErrUnauthenticated) {
				slogx.FromContext(ctx).Debug("bearer rejected", "err", err)
				WriteBearerError(w, "token verification failed")
				return
			}
			if err != nil {
				slogx.FromContext(ctx).Error("bearer authentication failed", "err", err)
				WriteJSON(w, http.StatusInternalServerError, map[string]string{
					"error":             "server_error",
					"error_description": "internal server error",
				})
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = slogx.WithUser(ctx, p.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// WriteBearerError writes an RFC 6750 invalid_token challenge.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
