package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
)

type revokedTokensRepo struct {
	q querier
}

func (r *revokedTokensRepo) RevokeToken(ctx context.Context, t domain.RevokedToken) error {
	if t.RevokedAt.IsZero() {
		t.RevokedAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at) VALUES (?, ?, ?)
		 ON CONFLICT (token_hash) DO NOTHING`,
		t.TokenHash, t.ExpiresAt.Unix(), t.RevokedAt.Unix(),
	)
	return err
}

func (r *revokedTokensRepo) IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM revoked_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *revokedTokensRepo) DeleteExpiredRevokedTokens(ctx context.Context, now time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
