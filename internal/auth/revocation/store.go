package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/store"
	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
)

// Store persists revocations through the identity store so they survive a
// restart. Atomicity comes from the database; the insert ignores conflicts.
type Store struct {
	repo store.RevokedTokens
	now  func() time.Time
}

var _ Registry = (*Store)(nil)

func NewStore(s store.Store) *Store {
	return &Store{repo: s.RevokedTokens(), now: time.Now}
}

func (s *Store) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	err := s.repo.RevokeToken(ctx, domain.RevokedToken{
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: expiresAt,
		RevokedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("revocation: record: %w", err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	ok, err := s.repo.IsTokenRevoked(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
	return ok, nil
}

func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	n, err := s.repo.DeleteExpiredRevokedTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("revocation: sweep: %w", err)
	}
	return n, nil
}
