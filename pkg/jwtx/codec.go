package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, malformed structure, missing
	// claims and a kind mismatch.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	// ErrExpiredToken means the signature checked out but exp has passed.
	ErrExpiredToken = errors.New("jwtx: token expired")

	ErrEmptySecret = errors.New("jwtx: empty signing secret")
)

// CodecOptions configures NewCodec. Zero TTLs fall back to the defaults.
type CodecOptions struct {
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	// Leeway tolerates clock skew when checking exp.
	Leeway time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Codec issues and parses HS256 tokens with one process-wide secret. There is
// no key versioning: changing the secret invalidates every outstanding token.
type Codec struct {
	secret []byte
	ttls   map[Kind]time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewCodec(opts CodecOptions) (*Codec, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret: append([]byte(nil), opts.Secret...),
		ttls: map[Kind]time.Duration{
			KindAccess:  orDefault(opts.AccessTTL, DefaultAccessTokenTTL),
			KindRefresh: orDefault(opts.RefreshTTL, DefaultRefreshTokenTTL),
			KindReset:   orDefault(opts.ResetTTL, DefaultResetTokenTTL),
		},
		leeway: opts.Leeway,
		now:    opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Leeway returns the clock skew tolerated past exp.
func (c *Codec) Leeway() time.Duration { return c.leeway }

// TTL returns the configured lifetime for kind.
func (c *Codec) TTL(kind Kind) time.Duration { return c.ttls[kind] }

// Issue signs a token of kind for subject. A zero ttl uses the configured
// lifetime for that kind.
func (c *Codec) Issue(kind Kind, subject string, roles []string, ttl time.Duration) (string, Claims, error) {
	if !kind.Valid() {
		return "", Claims{}, fmt.Errorf("jwtx: unknown token kind %q", kind)
	}
	if subject == "" {
		return "", Claims{}, errors.New("jwtx: empty subject")
	}
	if ttl <= 0 {
		ttl = c.ttls[kind]
	}

	claims := NewClaims(kind, subject, roles, ttl, c.now().UTC().Truncate(time.Second))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
func (c *Codec) Parse(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		// The signature is checked before exp, so a forged expired token still
		// reports as invalid rather than expired.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if !claims.Type.Valid() {
		return Claims{}, fmt.Errorf("%w: unknown type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}

// ParseKind is Parse plus a check that the token is of the wanted kind, so an
// access token can't be replayed where a refresh token is expected.
func (c *Codec) ParseKind(raw string, want Kind) (Claims, error) {
	claims, err := c.Parse(raw)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != want {
		return Claims{}, fmt.Errorf("%w: expected %s token, got %s", ErrInvalidToken, want, claims.Type)
	}
	return claims, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
