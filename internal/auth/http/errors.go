package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/pkg/authsdk"
	"github.com/aussiebroadwan/rollcall/pkg/slogx"
)

// writeError maps a service error onto its HTTP response. Only this package
// knows about status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrUnauthenticated):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrForbidden):
		authsdk.ErrInsufficientRole.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrUserExists):
		authsdk.ErrUserExists.WriteError(w)
	case errors.Is(err, service.ErrWeakPassword):
		authsdk.ErrWeakPassword.WriteError(w)
	case errors.Is(err, service.ErrInvalidInput):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, err.Error()).WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

func invalidRequest(w http.ResponseWriter, desc string) {
	authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, desc).WriteError(w)
}

func toSDKIdentity(id domain.Identity) authsdk.Identity {
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	return authsdk.Identity{
		ID:       id.ID,
		Username: id.Username,
		Email:    id.Email,
		Name:     id.Name,
		Roles:    roles,
	}
}
