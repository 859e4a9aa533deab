package domain

import "time"

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "bearer"
	ExpiresIn    int    `json:"expires_in"` // seconds until the access token expires
}

// TokenTypeBearer is the token_type returned with every pair.
const TokenTypeBearer = "bearer"

// RevokedToken is a persisted revocation entry. TokenHash is the base64url
// SHA-256 fingerprint of the raw token, never the token itself.
type RevokedToken struct {
	TokenHash string
	ExpiresAt time.Time
	RevokedAt time.Time
}
