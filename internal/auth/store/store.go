package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories hang off it so a Tx can hand out the same
// repos bound to the transaction, and nothing can start a transaction inside
// another one.
type Store interface {
	Users() Users
	Roles() Roles
	RevokedTokens() RevokedTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Prefer it over Tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login. Roles are populated.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail is used by the forgot-password flow.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the caller via ULID).
	// Roles on u are ignored; assign them through Roles().AssignRole.
	CreateUser(ctx context.Context, u domain.User) error

	// Exists reports whether the username or the email is already taken.
	Exists(ctx context.Context, username, email string) (bool, error)

	// UpdatePasswordHash replaces the digest and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

type Roles interface {
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	ListAll(ctx context.Context) ([]domain.Role, error)

	// CreateRole inserts a new role (id is ULID). A name that already exists
	// is left alone, so concurrent first uses of a role both succeed; read the
	// stored row back with GetRoleByName.
	CreateRole(ctx context.Context, r domain.Role) error

	// AssignRole links a user to a role. Assigning twice is a no-op.
	AssignRole(ctx context.Context, userID, roleID string) error

	// ListUserRoles returns the names of every role held by userID, sorted.
	ListUserRoles(ctx context.Context, userID string) ([]string, error)
}

type RevokedTokens interface {
	// RevokeToken records a fingerprint. Recording it twice is a no-op.
	RevokeToken(ctx context.Context, t domain.RevokedToken) error

	IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpiredRevokedTokens drops entries whose token expired before
	// now and returns how many went.
	DeleteExpiredRevokedTokens(ctx context.Context, now time.Time) (int, error)
}
