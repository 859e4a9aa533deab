package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/internal/auth/store"
	"github.com/aussiebroadwan/rollcall/pkg/idx"
	"github.com/aussiebroadwan/rollcall/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestAliceScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "alice", "manager")
	now := h.clock.Now()

	pair, err := h.svc.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, 300, pair.ExpiresIn)

	access, err := h.svc.Codec.Parse(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", access.Subject)
	require.Equal(t, []string{"manager"}, access.Roles)
	require.Equal(t, now.Add(300*time.Second), access.Expiry().UTC())

	refresh, err := h.svc.Codec.Parse(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.KindRefresh, refresh.Type)
	require.Equal(t, now.Add(7*24*time.Hour), refresh.Expiry().UTC())

	// Refresh works until logout and hands back the same refresh token.
	again, err := h.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, again.RefreshToken)
	require.NotEmpty(t, again.AccessToken)

	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "bob", "employee")

	t.Run("wrong password", func(t *testing.T) {
		_, err := h.svc.Login(ctx, "bob", "Wr0ng!Pass")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("unknown user looks the same", func(t *testing.T) {
		_, err := h.svc.Login(ctx, "nobody", testPassword)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("usernames are case sensitive", func(t *testing.T) {
		_, err := h.svc.Login(ctx, "BOB", testPassword)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "carol", "HR")

	pair, err := h.svc.Login(ctx, "carol", testPassword)
	require.NoError(t, err)

	t.Run("access token", func(t *testing.T) {
		id, err := h.svc.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "carol", id.Username)
		require.Equal(t, "carol@example.com", id.Email)
		require.Equal(t, []string{"hr"}, id.Roles)
	})

	t.Run("refresh token is not a bearer", func(t *testing.T) {
		_, err := h.svc.Authenticate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := h.svc.Authenticate(ctx, "not-a-token")
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ghost, _, err := h.svc.Codec.Issue(jwtx.KindAccess, "ghost", []string{"admin"}, 0)
		require.NoError(t, err)
		_, err = h.svc.Authenticate(ctx, ghost)
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		h.clock.Advance(5*time.Minute + time.Second)
		_, err := h.svc.Authenticate(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "dave", "employee")

	pair, err := h.svc.Login(ctx, "dave", testPassword)
	require.NoError(t, err)

	t.Run("access token replayed as refresh", func(t *testing.T) {
		_, err := h.svc.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("picks up role changes", func(t *testing.T) {
		user, err := h.store.Users().GetUserByUsername(ctx, "dave")
		require.NoError(t, err)
		role := domain.Role{ID: idx.New().String(), Name: "manager"}
		require.NoError(t, h.store.Roles().CreateRole(ctx, role))
		require.NoError(t, h.store.Roles().AssignRole(ctx, user.ID, role.ID))

		next, err := h.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := h.svc.Codec.Parse(next.AccessToken)
		require.NoError(t, err)
		require.Equal(t, []string{"employee", "manager"}, claims.Roles)
	})

	t.Run("identity gone", func(t *testing.T) {
		orphan, _, err := h.svc.Codec.Issue(jwtx.KindRefresh, "ghost", nil, 0)
		require.NoError(t, err)
		_, err = h.svc.Refresh(ctx, orphan)
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		h.clock.Advance(7*24*time.Hour + time.Second)
		_, err := h.svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "erin", "employee")

	pair, err := h.svc.Login(ctx, "erin", testPassword)
	require.NoError(t, err)

	t.Run("acks garbage without recording", func(t *testing.T) {
		require.NoError(t, h.svc.Logout(ctx, "garbage"))
		require.NoError(t, h.svc.Logout(ctx, pair.AccessToken))
		require.Zero(t, h.reg.Len())
	})

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))
		require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))
		require.Equal(t, 1, h.reg.Len())
	})

	t.Run("access tokens already issued keep working", func(t *testing.T) {
		_, err := h.svc.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
	})

	t.Run("entry expires with the token", func(t *testing.T) {
		n, err := h.reg.Sweep(ctx, h.clock.Now().Add(7*24*time.Hour+time.Second))
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "frank", "employee")

	_, err := h.svc.ForgotPassword(ctx, "nobody@example.com")
	require.ErrorIs(t, err, service.ErrNotFound)

	token, err := h.svc.ForgotPassword(ctx, " Frank@Example.com ")
	require.NoError(t, err)

	claims, err := h.svc.Codec.ParseKind(token, jwtx.KindReset)
	require.NoError(t, err)
	require.Equal(t, "frank", claims.Subject)
	require.Empty(t, claims.Roles)

	t.Run("weak password", func(t *testing.T) {
		err := h.svc.ResetPassword(ctx, token, "short")
		require.ErrorIs(t, err, service.ErrWeakPassword)
	})

	t.Run("access token is not a reset token", func(t *testing.T) {
		pair, err := h.svc.Login(ctx, "frank", testPassword)
		require.NoError(t, err)
		err = h.svc.ResetPassword(ctx, pair.AccessToken, "N3w!Passw")
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("reset then login", func(t *testing.T) {
		require.NoError(t, h.svc.ResetPassword(ctx, token, "N3w!Passw"))

		_, err := h.svc.Login(ctx, "frank", testPassword)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)

		_, err = h.svc.Login(ctx, "frank", "N3w!Passw")
		require.NoError(t, err)
	})

	t.Run("single use", func(t *testing.T) {
		err := h.svc.ResetPassword(ctx, token, "An0ther!Pw")
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})

	t.Run("identity gone", func(t *testing.T) {
		orphan, _, err := h.svc.Codec.Issue(jwtx.KindReset, "ghost", nil, 0)
		require.NoError(t, err)
		err = h.svc.ResetPassword(ctx, orphan, "N3w!Passw")
		require.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		fresh, err := h.svc.ForgotPassword(ctx, "frank@example.com")
		require.NoError(t, err)
		h.clock.Advance(15*time.Minute + time.Second)
		err = h.svc.ResetPassword(ctx, fresh, "N3w!Passw")
		require.ErrorIs(t, err, service.ErrUnauthenticated)
	})
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	t.Run("defaults to employee", func(t *testing.T) {
		id, err := h.svc.Signup(ctx, service.SignupRequest{
			Username: "gina", Email: "Gina@Example.com", Password: testPassword, Name: " Gina ",
		})
		require.NoError(t, err)
		require.Equal(t, []string{"employee"}, id.Roles)
		require.Equal(t, "gina@example.com", id.Email)
		require.Equal(t, "Gina", id.Name)
		require.NotEmpty(t, id.ID)

		user, err := h.store.Users().GetUserByUsername(ctx, "gina")
		require.NoError(t, err)
		require.NotEqual(t, testPassword, user.PasswordHash)
	})

	t.Run("role is lowercased and created lazily", func(t *testing.T) {
		id, err := h.svc.Signup(ctx, service.SignupRequest{
			Username: "hank", Email: "hank@example.com", Password: testPassword, Role: "Auditor",
		})
		require.NoError(t, err)
		require.Equal(t, []string{"auditor"}, id.Roles)

		_, err = h.store.Roles().GetRoleByName(ctx, "auditor")
		require.NoError(t, err)
	})

	t.Run("existing role is reused", func(t *testing.T) {
		_, err := h.svc.Signup(ctx, service.SignupRequest{
			Username: "ivy", Email: "ivy@example.com", Password: testPassword, Role: "employee",
		})
		require.NoError(t, err)

		roles, err := h.store.Roles().ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, roles, 2)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := h.svc.Signup(ctx, service.SignupRequest{
			Username: "gina", Email: "other@example.com", Password: testPassword,
		})
		require.ErrorIs(t, err, service.ErrUserExists)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := h.svc.Signup(ctx, service.SignupRequest{
			Username: "gina2", Email: "GINA@example.com", Password: testPassword,
		})
		require.ErrorIs(t, err, service.ErrUserExists)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := h.svc.Signup(ctx, service.SignupRequest{
			Username: "jack", Email: "jack@example.com", Password: "password",
		})
		require.ErrorIs(t, err, service.ErrWeakPassword)

		_, err = h.store.Users().GetUserByUsername(ctx, "jack")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := h.svc.Signup(ctx, service.SignupRequest{Username: "", Email: "x@example.com", Password: testPassword})
		require.ErrorIs(t, err, service.ErrInvalidInput)

		_, err = h.svc.Signup(ctx, service.SignupRequest{Username: "two words", Email: "x@example.com", Password: testPassword})
		require.ErrorIs(t, err, service.ErrInvalidInput)

		_, err = h.svc.Signup(ctx, service.SignupRequest{Username: "kim", Email: "not-an-email", Password: testPassword})
		require.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

// racingStore simulates another signup creating the same role between this
// transaction's lookup and its insert.
type racingStore struct {
	store.Store
}

func (s racingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(racingTx{tx})
	})
}

// innerTx is an alias so the embedded field is not named Tx, which would
// shadow the promoted store.Store Tx method.
type innerTx = store.Tx

type racingTx struct {
	innerTx
}

func (tx racingTx) Roles() store.Roles { return racingRoles{tx.innerTx.Roles()} }

type racingRoles struct {
	store.Roles
}

func (r racingRoles) CreateRole(ctx context.Context, role domain.Role) error {
	winner := domain.Role{ID: idx.New().String(), Name: role.Name}
	if err := r.Roles.CreateRole(ctx, winner); err != nil {
		return err
	}
	return store.ErrAlreadyExists
}

func TestSignup_RoleCreationRace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	svc := &service.AuthService{
		Store:   racingStore{h.store},
		Codec:   h.svc.Codec,
		Hasher:  h.svc.Hasher,
		Revoked: h.svc.Revoked,
	}

	id, err := svc.Signup(ctx, service.SignupRequest{
		Username: "fresh", Email: "fresh@example.com", Password: testPassword, Role: "payroll-clerk",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"payroll-clerk"}, id.Roles)

	user, err := h.store.Users().GetUserByUsername(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, []string{"payroll-clerk"}, user.Roles)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "lena", "admin")

	id, err := h.svc.Profile(ctx, "lena")
	require.NoError(t, err)
	require.Equal(t, "lena", id.Username)
	require.Equal(t, []string{"admin"}, id.Roles)

	_, err = h.svc.Profile(ctx, "nobody")
	require.ErrorIs(t, err, service.ErrNotFound)
}
