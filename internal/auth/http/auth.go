package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/pkg/authsdk"
	"github.com/aussiebroadwan/rollcall/pkg/httpx"
	"github.com/aussiebroadwan/rollcall/pkg/jwtx"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// HandleSignup godoc
//
//	@Summary		Create an account
//	@Description	Creates a staff account with a single role (default employee). The role is created on first use.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SignupRequest	true	"Account details"
//	@Success		201		{object}	authsdk.Identity
//	@Failure		400		{object}	authsdk.APIError	"invalid_request, user_exists or weak_password"
//	@Failure		429		{object}	authsdk.APIError
//	@Router			/v1/auth/signup [post].
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	id, err := h.Auth.Signup(r.Context(), service.SignupRequest{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toSDKIdentity(id))
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchanges a username and password for an access and refresh token pair.
//	@Description	Accepts the OAuth2 password form; grant_type may be omitted.
//	@Tags			Auth
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type	formData	string	false	"Must be password when present"
//	@Param			username	formData	string	true	"Username"
//	@Param			password	formData	string	true	"Password"
//	@Success		200			{object}	authsdk.TokenResponse
//	@Failure		400			{object}	authsdk.APIError
//	@Failure		401			{object}	authsdk.APIError	"invalid_grant"
//	@Failure		429			{object}	authsdk.APIError
//	@Header			200			{string}	Cache-Control	"no-store"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		invalidRequest(w, "content-type must be application/x-www-form-urlencoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		invalidRequest(w, "invalid form body")
		return
	}
	if gt := r.PostForm.Get("grant_type"); gt != "" && gt != "password" {
		invalidRequest(w, "unsupported grant_type")
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		invalidRequest(w, "username and password are required")
		return
	}

	pair, err := h.Auth.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

// HandleRefresh godoc
//
//	@Summary		Refresh an access token
//	@Description	Mints a new access token carrying the account's current roles. The refresh token is returned unchanged.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.APIError
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	pair, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toTokenResponse(pair))
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes a refresh token. Any input is acknowledged, including tokens that were never valid.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		500		{object}	authsdk.APIError
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	// A malformed body still gets the acknowledgement; there is nothing to revoke.
	_ = httpx.DecodeJSON(w, r, &req)

	if err := h.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Successfully logged out"})
}

// HandleProfile godoc
//
//	@Summary		Current identity
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Identity
//	@Failure		401	{object}	authsdk.APIError	"invalid_token"
//	@Failure		404	{object}	authsdk.APIError
//	@Router			/v1/auth/profile [get].
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.PrincipalFrom[domain.Identity](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	id, err := h.Auth.Profile(r.Context(), caller.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSDKIdentity(id))
}

// HandleForgotPassword godoc
//
//	@Summary		Request a password reset
//	@Description	Mints a single-use reset token for the account registered under email and returns it in the body.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.ForgotPasswordResponse
//	@Failure		400		{object}	authsdk.APIError
//	@Failure		404		{object}	authsdk.APIError	"no account with that email"
//	@Router			/v1/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		invalidRequest(w, "email is required")
		return
	}

	token, err := h.Auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ForgotPasswordResponse{
		Message:    "Password reset token generated",
		ResetToken: token,
		ExpiresIn:  int(h.Auth.Codec.TTL(jwtx.KindReset).Seconds()),
	})
}

// HandleResetPassword godoc
//
//	@Summary		Reset a password
//	@Description	Sets a new password using a reset token. The token is revoked after use.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Reset token and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"invalid_request or weak_password"
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Failure		404		{object}	authsdk.APIError
//	@Router			/v1/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password reset successful"})
}

func toTokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}
