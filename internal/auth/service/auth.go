package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/metrics"
	"github.com/aussiebroadwan/rollcall/internal/auth/rbac"
	"github.com/aussiebroadwan/rollcall/internal/auth/revocation"
	"github.com/aussiebroadwan/rollcall/internal/auth/store"
	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
	"github.com/aussiebroadwan/rollcall/pkg/idx"
	"github.com/aussiebroadwan/rollcall/pkg/jwtx"
	"github.com/aussiebroadwan/rollcall/pkg/slogx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/aussiebroadwan/rollcall/internal/auth/service")

// AuthService implements login, token refresh, logout, password reset and
// signup on top of the identity store.
type AuthService struct {
	Store   store.Store
	Codec   *jwtx.Codec
	Hasher  *cryptox.Hasher
	Revoked revocation.Registry
	Metrics *metrics.Metrics // optional
}

// SignupRequest carries the fields accepted when creating an identity.
type SignupRequest struct {
	Username string
	Email    string
	Name     string
	Password string
	Role     string // defaults to employee
}

// Authenticate resolves a raw bearer token into the identity it names. Only
// access tokens are accepted, and the identity must still exist.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.ParseKind(raw, jwtx.KindAccess)
	if err != nil {
		l.Debug("access token rejected", "error", err)
		return domain.Identity{}, fail(span, ErrUnauthenticated)
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		l.Debug("access token subject no longer exists", "username", claims.Subject)
		return domain.Identity{}, fail(span, ErrUnauthenticated)
	}
	if err != nil {
		return domain.Identity{}, fail(span, fmt.Errorf("authenticate: %w", err))
	}

	span.SetAttributes(attribute.String("auth.username", user.Username))
	return user.Identity(), nil
}

// Login checks a username/password pair and mints an access and refresh pair
// carrying the identity's current roles.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login", trace.WithAttributes(
		attribute.String("auth.username", username),
	))
	defer span.End()
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Burn the same work as a real verify so unknown usernames don't
		// answer faster.
		s.Hasher.DummyVerify(ctx, password)
		l.Info("login failed", "reason", "unknown_user")
		s.Metrics.Login(metrics.OutcomeFailure)
		return domain.TokenPair{}, fail(span, ErrInvalidCredentials)
	}
	if err != nil {
		s.Metrics.Login(metrics.OutcomeError)
		return domain.TokenPair{}, fail(span, fmt.Errorf("login: %w", err))
	}

	if !s.Hasher.Verify(ctx, password, user.PasswordHash) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.Metrics.Login(metrics.OutcomeError)
			return domain.TokenPair{}, fail(span, ctxErr)
		}
		l.Info("login failed", "reason", "bad_password", "username", username)
		s.Metrics.Login(metrics.OutcomeFailure)
		return domain.TokenPair{}, fail(span, ErrInvalidCredentials)
	}

	access, err := s.issue(jwtx.KindAccess, user.Username, user.Roles)
	if err != nil {
		s.Metrics.Login(metrics.OutcomeError)
		return domain.TokenPair{}, fail(span, err)
	}
	refresh, err := s.issue(jwtx.KindRefresh, user.Username, user.Roles)
	if err != nil {
		s.Metrics.Login(metrics.OutcomeError)
		return domain.TokenPair{}, fail(span, err)
	}

	l.Info("login succeeded", "username", user.Username)
	s.Metrics.Login(metrics.OutcomeSuccess)
	return s.pair(access, refresh), nil
}

// Refresh mints a new access token from a refresh token. Roles are re-read
// from the store so role changes apply from the next refresh. The refresh
// token itself is returned unchanged; it stays usable until logout or exp.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.ParseKind(refreshToken, jwtx.KindRefresh)
	if err != nil {
		l.Debug("refresh token rejected", "error", err)
		s.Metrics.Refresh(metrics.OutcomeFailure)
		return domain.TokenPair{}, fail(span, ErrUnauthenticated)
	}

	revoked, err := s.Revoked.IsRevoked(ctx, refreshToken)
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeError)
		return domain.TokenPair{}, fail(span, fmt.Errorf("refresh: %w", err))
	}
	if revoked {
		l.Info("revoked refresh token presented", "username", claims.Subject, "jti", claims.ID)
		s.Metrics.Refresh(metrics.OutcomeFailure)
		return domain.TokenPair{}, fail(span, ErrUnauthenticated)
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.Refresh(metrics.OutcomeFailure)
		return domain.TokenPair{}, fail(span, ErrUnauthenticated)
	}
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeError)
		return domain.TokenPair{}, fail(span, fmt.Errorf("refresh: %w", err))
	}

	access, err := s.issue(jwtx.KindAccess, user.Username, user.Roles)
	if err != nil {
		s.Metrics.Refresh(metrics.OutcomeError)
		return domain.TokenPair{}, fail(span, err)
	}

	s.Metrics.Refresh(metrics.OutcomeSuccess)
	return s.pair(access, refreshToken), nil
}

// Logout revokes a refresh token. Anything that isn't a valid refresh token
// is acknowledged without being recorded. Only a registry failure is
// reported, since the token would otherwise stay live.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer span.End()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.ParseKind(refreshToken, jwtx.KindRefresh)
	if err != nil {
		l.Debug("logout with unusable token", "error", err)
		return nil
	}

	if err := s.Revoked.Revoke(ctx, refreshToken, claims.Expiry()); err != nil {
		return fail(span, fmt.Errorf("logout: %w", err))
	}

	s.Metrics.Revoked()
	l.Info("refresh token revoked", "username", claims.Subject, "jti", claims.ID)
	return nil
}

// ForgotPassword mints a reset token for the identity registered under email.
// Delivering it is the caller's job.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx, span := tracer.Start(ctx, "AuthService.ForgotPassword")
	defer span.End()
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", fail(span, ErrNotFound)
	}
	if err != nil {
		return "", fail(span, fmt.Errorf("forgot password: %w", err))
	}

	token, err := s.issue(jwtx.KindReset, user.Username, nil)
	if err != nil {
		return "", fail(span, err)
	}

	l.Info("reset token issued", "username", user.Username)
	return token, nil
}

// ResetPassword replaces the password of the identity named by a reset
// token. The reset token is revoked afterwards so it works once.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	ctx, span := tracer.Start(ctx, "AuthService.ResetPassword")
	defer span.End()
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.ParseKind(resetToken, jwtx.KindReset)
	if err != nil {
		l.Debug("reset token rejected", "error", err)
		return fail(span, ErrUnauthenticated)
	}

	revoked, err := s.Revoked.IsRevoked(ctx, resetToken)
	if err != nil {
		return fail(span, fmt.Errorf("reset password: %w", err))
	}
	if revoked {
		return fail(span, ErrUnauthenticated)
	}

	if err := ValidatePassword(newPassword); err != nil {
		return fail(span, err)
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return fail(span, ErrNotFound)
	}
	if err != nil {
		return fail(span, fmt.Errorf("reset password: %w", err))
	}

	digest, err := s.Hasher.Hash(ctx, newPassword)
	if err != nil {
		return fail(span, fmt.Errorf("reset password: hash: %w", err))
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		return fail(span, fmt.Errorf("reset password: %w", err))
	}

	if err := s.Revoked.Revoke(ctx, resetToken, claims.Expiry()); err != nil {
		// The password already changed; the token still dies at exp.
		l.Error("failed to revoke used reset token", "error", err)
	} else {
		s.Metrics.Revoked()
	}

	l.Info("password reset", "username", user.Username)
	return nil
}

// Signup creates an identity and assigns it one role, creating the role on
// first use. Everything happens in one transaction.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Signup")
	defer span.End()
	l := slogx.FromContext(ctx)

	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	role := rbac.Normalize(req.Role)
	if role == "" {
		role = domain.RoleEmployee
	}

	if username == "" || strings.ContainsAny(username, " \t\r\n") {
		return domain.Identity{}, fail(span, fmt.Errorf("%w: username must be a single non-empty word", ErrInvalidInput))
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return domain.Identity{}, fail(span, fmt.Errorf("%w: email is not valid", ErrInvalidInput))
	}
	if err := ValidatePassword(req.Password); err != nil {
		return domain.Identity{}, fail(span, err)
	}

	// Hash before opening the transaction so the write lock isn't held for
	// a bcrypt round.
	digest, err := s.Hasher.Hash(ctx, req.Password)
	if err != nil {
		return domain.Identity{}, fail(span, fmt.Errorf("signup: hash: %w", err))
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: digest,
		Roles:        []string{role},
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		taken, err := tx.Users().Exists(ctx, user.Username, user.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrUserExists
		}

		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserExists
			}
			return err
		}

		r, err := ensureRole(ctx, tx.Roles(), role)
		if err != nil {
			return err
		}
		return tx.Roles().AssignRole(ctx, user.ID, r.ID)
	})
	switch {
	case errors.Is(err, ErrUserExists):
		return domain.Identity{}, fail(span, ErrUserExists)
	case err != nil:
		return domain.Identity{}, fail(span, fmt.Errorf("signup: %w", err))
	}

	l.Info("user signed up", "username", user.Username, "role", role)
	return user.Identity(), nil
}

// ensureRole returns the role called name, creating it on first use. Another
// signup may create it between the lookup and the insert; either way the
// stored row wins.
func ensureRole(ctx context.Context, roles store.Roles, name string) (domain.Role, error) {
	r, err := roles.GetRoleByName(ctx, name)
	if !errors.Is(err, store.ErrNotFound) {
		return r, err
	}
	err = roles.CreateRole(ctx, domain.Role{ID: idx.New().String(), Name: name})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return domain.Role{}, err
	}
	return roles.GetRoleByName(ctx, name)
}

// Profile returns the identity stored under username.
func (s *AuthService) Profile(ctx context.Context, username string) (domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Profile")
	defer span.End()

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, fail(span, ErrNotFound)
	}
	if err != nil {
		return domain.Identity{}, fail(span, fmt.Errorf("profile: %w", err))
	}
	return user.Identity(), nil
}

func (s *AuthService) issue(kind jwtx.Kind, subject string, roles []string) (string, error) {
	token, _, err := s.Codec.Issue(kind, subject, roles, 0)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", kind, err)
	}
	s.Metrics.TokenIssued(string(kind))
	return token, nil
}

func (s *AuthService) pair(access, refresh string) domain.TokenPair {
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    int(s.Codec.TTL(jwtx.KindAccess).Seconds()),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// fail marks span as errored and hands err back for returning.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
