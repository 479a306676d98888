package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type TenantUserHandler struct {
	AccountService *service.AccountService
}

// ServeHTTP resolves a user id or email to its tenant.
//
//	@Summary		Resolve a user's tenant
//	@Description	Looks up the platform row for a user id or email address.
//	@Tags			Internal
//	@Produce		json
//	@Param			X-Internal-Api-Key	header		string				true	"Internal API key"
//	@Param			id					path		string				true	"User id or email"
//	@Success		200					{object}	domain.PlatformUser	"Platform row"
//	@Failure		400					{object}	httpx.ErrorResponse	"Not found"
//	@Failure		401					{object}	httpx.ErrorResponse	"Wrong internal key"
//	@Router			/v1/tenants/users/{id} [get].
func (h *TenantUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pu, err := h.AccountService.TenantUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pu)
}
