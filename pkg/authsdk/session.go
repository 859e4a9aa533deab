package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// refreshMargin renews the access token slightly before it expires.
const refreshMargin = 30 * time.Second

// Session holds a token pair and refreshes the access token as it nears
// expiry. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(c *SDKClient, tok *TokenResponse) *Session {
	s := &Session{client: c}
	s.store(tok)
	return s
}

func (s *Session) store(tok *TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - refreshMargin)
}

// AccessToken returns the current access token without refreshing it.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the refresh token the session was opened with.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Refresh renews the access token now.
func (s *Session) Refresh(ctx context.Context) error {
	tok, err := s.client.Refresh(ctx, s.RefreshToken())
	if err != nil {
		return err
	}
	s.store(tok)
	return nil
}

func (s *Session) validToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, fresh := s.accessToken, time.Now().Before(s.expiresAt)
	s.mu.RUnlock()
	if fresh {
		return token, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return "", err
	}
	return s.AccessToken(), nil
}

func (s *Session) get(ctx context.Context, method, path string, payload, target any, expected int) error {
	token, err := s.validToken(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.doJSON(ctx, method, path, token, payload)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, expected)
}

// Profile returns the caller's identity.
func (s *Session) Profile(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := s.get(ctx, http.MethodGet, "/v1/auth/profile", nil, &id, http.StatusOK); err != nil {
		return nil, err
	}
	return &id, nil
}

// Access probes one of the role-gated endpoints: admin, manager, hr or
// employee.
func (s *Session) Access(ctx context.Context, role string) (*AccessResponse, error) {
	var out AccessResponse
	if err := s.get(ctx, http.MethodGet, "/v1/access/"+role, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Authorize asks the policy engine whether the caller may perform action on
// resource. A denial is returned as ErrAccessDenied.
func (s *Session) Authorize(ctx context.Context, resource, action string) error {
	req := AuthorizeRequest{Resource: resource, Action: action}
	return s.get(ctx, http.MethodPost, "/v1/authorize", req, nil, http.StatusNoContent)
}

// Logout revokes the session's refresh token.
func (s *Session) Logout(ctx context.Context) error {
	rt := s.RefreshToken()
	if rt == "" {
		return errors.New("no refresh token to revoke")
	}
	return s.client.Logout(ctx, rt)
}
