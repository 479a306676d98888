package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type InviteAcceptHandler struct {
	InviteService *service.InviteService
}

// ServeHTTP redeems an invitation code and creates the user.
//
//	@Summary		Accept an invitation
//	@Description	Consumes the invitation code and creates the user in the inviting tenant. Expired and unknown codes both answer "invalid invitation".
//	@Tags			Invites
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.AcceptInviteRequest	true	"Code and profile"
//	@Success		200		{object}	domain.User					"Created user"
//	@Failure		400		{object}	httpx.ErrorResponse			"Invalid invitation or request"
//	@Failure		429		{object}	httpx.ErrorResponse			"Rate limited"
//	@Router			/v1/users/invite/accept [post].
func (h *InviteAcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req service.AcceptInviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	u, err := h.InviteService.AcceptInvite(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
