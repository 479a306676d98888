package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// InitAdminHandler creates the first global admin. It sits behind the
// internal API key.
type InitAdminHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP implements the one-time admin setup.
//
//	@Summary		Initialize the first admin
//	@Description	Creates the tenant, its quota and its first global admin in one transaction. Answers 403 once an admin exists.
//	@Tags			Internal
//	@Accept			json
//	@Produce		json
//	@Param			X-Internal-Api-Key	header		string						true	"Internal API key"
//	@Param			request				body		service.InitAdminRequest	true	"Admin account"
//	@Success		200					{object}	domain.User					"Created admin"
//	@Failure		400					{object}	httpx.ErrorResponse			"Invalid request or tenant exists"
//	@Failure		401					{object}	httpx.ErrorResponse			"Wrong internal key"
//	@Failure		403					{object}	httpx.ErrorResponse			"Already initialized"
//	@Router			/v1/users/init [post].
func (h *InitAdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req service.InitAdminRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	u, err := h.AccountService.InitAdmin(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
