package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates what a token may be used for. It travels in the "type"
// claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
)

// Default lifetimes, overridable through CodecOptions or per Issue call.
const (
	DefaultAccessTokenTTL  = 5 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultResetTokenTTL   = 15 * time.Minute
)

func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindReset:
		return true
	}
	return false
}

// Claims is the payload of every token we mint. Subject is the username.
type Claims struct {
	jwt.RegisteredClaims

	Type Kind `json:"type"`

	// Roles held at issuance. Present on access and refresh tokens, frozen
	// until the token is re-minted.
	Roles []string `json:"roles,omitempty"`
}

// NewClaims builds claims for kind with a fresh jti.
func NewClaims(kind Kind, subject string, roles []string, ttl time.Duration, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Type: kind,
	}
	if kind != KindReset && len(roles) > 0 {
		c.Roles = slices.Clone(roles)
	}
	return c
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// HasRole reports whether the literal role list contains role, ignoring case.
func (c Claims) HasRole(role string) bool {
	return slices.ContainsFunc(c.Roles, func(r string) bool {
		return strings.EqualFold(r, role)
	})
}

// Expiry returns exp as a time, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
