// Package revocation tracks refresh tokens that were explicitly invalidated.
//
// Entries are keyed by the token fingerprint (base64url SHA-256), never the
// raw token, and remember the token's own expiry so Sweep can drop them once
// the token would be rejected on exp alone.
package revocation

import (
	"context"
	"time"
)

type Registry interface {
	// Revoke marks token as revoked until expiresAt. Revoking twice is a no-op.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error

	IsRevoked(ctx context.Context, token string) (bool, error)

	// Sweep forgets entries whose expiry is before now and returns how many
	// were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
