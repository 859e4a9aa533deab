package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/pkg/authsdk"
	"github.com/aussiebroadwan/rollcall/pkg/httpx"
)

// requireRoles lets the request through when the caller's expanded roles
// include one of allowed. It must sit behind the authn middleware.
func requireRoles(gate *service.Gate, allowed ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := httpx.PrincipalFrom[domain.Identity](r.Context())
			if !ok {
				authsdk.ErrInvalidToken.WriteError(w)
				return
			}
			if _, err := gate.Require(r.Context(), id, allowed...); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// greeting answers the role probes with a message addressed to the caller.
func greeting(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := httpx.PrincipalFrom[domain.Identity](r.Context())
		httpx.WriteJSON(w, http.StatusOK, authsdk.AccessResponse{
			Message:  fmt.Sprintf(format, id.Username),
			Username: id.Username,
			Roles:    id.Roles,
		})
	}
}

// adminGreeting godoc
//
//	@Summary	Admin area
//	@Tags		Access
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.AccessResponse
//	@Failure	401	{object}	authsdk.APIError
//	@Failure	403	{object}	authsdk.APIError	"insufficient_role"
//	@Router		/v1/access/admin [get].
func adminGreeting() http.HandlerFunc { return greeting("Welcome Admin %s!") }

// managerGreeting godoc
//
//	@Summary	Manager area (manager or admin)
//	@Tags		Access
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.AccessResponse
//	@Failure	401	{object}	authsdk.APIError
//	@Failure	403	{object}	authsdk.APIError	"insufficient_role"
//	@Router		/v1/access/manager [get].
func managerGreeting() http.HandlerFunc {
	return greeting("Hello %s, you have manager/admin access")
}

// hrGreeting godoc
//
//	@Summary	HR area (hr, manager or admin)
//	@Tags		Access
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.AccessResponse
//	@Failure	401	{object}	authsdk.APIError
//	@Failure	403	{object}	authsdk.APIError	"insufficient_role"
//	@Router		/v1/access/hr [get].
func hrGreeting() http.HandlerFunc { return greeting("Hello %s, HR access granted") }

// employeeGreeting godoc
//
//	@Summary	Employee dashboard
//	@Tags		Access
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.AccessResponse
//	@Failure	401	{object}	authsdk.APIError
//	@Failure	403	{object}	authsdk.APIError	"insufficient_role"
//	@Router		/v1/access/employee [get].
func employeeGreeting() http.HandlerFunc { return greeting("Employee dashboard for %s") }

// AuthorizeHandler evaluates the configured policy for the caller.
type AuthorizeHandler struct {
	Gate *service.Gate
}

// ServeHTTP godoc
//
//	@Summary		Check a policy decision
//	@Description	Asks the policy engine whether the caller may perform action on resource.
//	@Description	The default policy allows administrators only.
//	@Tags			Access
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.AuthorizeRequest	true	"Resource and action"
//	@Success		204
//	@Failure		400	{object}	authsdk.APIError
//	@Failure		401	{object}	authsdk.APIError
//	@Failure		403	{object}	authsdk.APIError	"access_denied"
//	@Router			/v1/authorize [post].
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PrincipalFrom[domain.Identity](r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.AuthorizeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	req.Resource = strings.TrimSpace(req.Resource)
	req.Action = strings.TrimSpace(req.Action)
	if req.Resource == "" || req.Action == "" {
		invalidRequest(w, "resource and action are required")
		return
	}

	if err := h.Gate.Authorize(r.Context(), id, req.Resource, req.Action); err != nil {
		if errors.Is(err, service.ErrForbidden) {
			authsdk.ErrAccessDenied.WriteError(w)
			return
		}
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
