package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/store"
	"github.com/aussiebroadwan/rollcall/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/rollcall/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.Store, username, email string, roles ...string) domain.User {
	t.Helper()
	ctx := context.Background()

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		Name:         "Test " + username,
		PasswordHash: "$2a$04$placeholder",
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	for _, name := range roles {
		role, err := s.Roles().GetRoleByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			role = domain.Role{ID: idx.New().String(), Name: name}
			require.NoError(t, s.Roles().CreateRole(ctx, role))
		} else {
			require.NoError(t, err)
		}
		require.NoError(t, s.Roles().AssignRole(ctx, u.ID, role.ID))
	}
	return u
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := seedUser(t, s, "alice", "alice@example.com", "manager", "hr")

	t.Run("by username carries roles", func(t *testing.T) {
		got, err := s.Users().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
		require.Equal(t, "Test alice", got.Name)
		require.Equal(t, []string{"hr", "manager"}, got.Roles)
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("by email and id", func(t *testing.T) {
		byEmail, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, alice.ID, byEmail.ID)

		byID, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.Users().GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := s.Users().Exists(ctx, "alice", "other@example.com")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Users().Exists(ctx, "other", "alice@example.com")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Users().Exists(ctx, "other", "other@example.com")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Username: "alice", Email: "x@example.com", PasswordHash: "h",
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("update password hash", func(t *testing.T) {
		require.NoError(t, s.Users().UpdatePasswordHash(ctx, alice.ID, "$2a$04$new"))
		got, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "$2a$04$new", got.PasswordHash)

		require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)
	})
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	bob := seedUser(t, s, "bob", "bob@example.com", "employee")

	t.Run("assign is idempotent", func(t *testing.T) {
		role, err := s.Roles().GetRoleByName(ctx, "employee")
		require.NoError(t, err)
		require.NoError(t, s.Roles().AssignRole(ctx, bob.ID, role.ID))

		roles, err := s.Roles().ListUserRoles(ctx, bob.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"employee"}, roles)
	})

	t.Run("duplicate role keeps the first", func(t *testing.T) {
		before, err := s.Roles().GetRoleByName(ctx, "employee")
		require.NoError(t, err)

		require.NoError(t, s.Roles().CreateRole(ctx, domain.Role{ID: idx.New().String(), Name: "employee"}))

		after, err := s.Roles().GetRoleByName(ctx, "employee")
		require.NoError(t, err)
		require.Equal(t, before.ID, after.ID)
	})

	t.Run("list all", func(t *testing.T) {
		require.NoError(t, s.Roles().CreateRole(ctx, domain.Role{ID: idx.New().String(), Name: "admin"}))
		all, err := s.Roles().ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "admin", all[0].Name)
		require.Equal(t, "employee", all[1].Name)
	})

	t.Run("user without roles", func(t *testing.T) {
		carol := seedUser(t, s, "carol", "carol@example.com")
		roles, err := s.Roles().ListUserRoles(ctx, carol.ID)
		require.NoError(t, err)
		require.Empty(t, roles)
	})
}

func TestRevokedTokens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.RevokedTokens()
	now := time.Now()

	require.NoError(t, repo.RevokeToken(ctx, domain.RevokedToken{TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.RevokeToken(ctx, domain.RevokedToken{TokenHash: "stale", ExpiresAt: now.Add(-time.Hour)}))

	// Recording the same fingerprint twice is not an error.
	require.NoError(t, repo.RevokeToken(ctx, domain.RevokedToken{TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))

	ok, err := repo.IsTokenRevoked(ctx, "live")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.IsTokenRevoked(ctx, "never")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := repo.DeleteExpiredRevokedTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ok, err = repo.IsTokenRevoked(ctx, "stale")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.IsTokenRevoked(ctx, "live")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("commit", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			u := domain.User{ID: idx.New().String(), Username: "dave", Email: "dave@example.com", PasswordHash: "h"}
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			r := domain.Role{ID: idx.New().String(), Name: "hr"}
			if err := tx.Roles().CreateRole(ctx, r); err != nil {
				return err
			}
			return tx.Roles().AssignRole(ctx, u.ID, r.ID)
		})
		require.NoError(t, err)

		got, err := s.Users().GetUserByUsername(ctx, "dave")
		require.NoError(t, err)
		require.Equal(t, []string{"hr"}, got.Roles)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			u := domain.User{ID: idx.New().String(), Username: "erin", Email: "erin@example.com", PasswordHash: "h"}
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Users().GetUserByUsername(ctx, "erin")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("nested not supported", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.Tx(ctx)
			return err
		})
		require.Error(t, err)
	})
}
