package httpx

import "context"

type ctxKey string

const (
	ctxKeySubject  ctxKey = "subject"
	ctxKeyIdentity ctxKey = "identity"
)

// Principal is anything the authn middleware can put on a request. Subject
// names the caller for logging and per-user rate limits.
type Principal interface {
	Subject() string
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, ctxKeySubject, p.Subject())
	return context.WithValue(ctx, ctxKeyIdentity, p)
}

// PrincipalFrom returns the principal stored by the authn middleware.
func PrincipalFrom[T Principal](ctx context.Context) (T, bool) {
	p, ok := ctx.Value(ctxKeyIdentity).(T)
	return p, ok
}

// SubjectFrom returns the authenticated subject, or "" for anonymous requests.
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySubject).(string)
	return s
}
