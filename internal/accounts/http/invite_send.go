package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type InviteSendHandler struct {
	InviteService *service.InviteService
}

// ServeHTTP stores an invitation and emails its code.
//
//	@Summary		Invite a user
//	@Description	Stores a single-use invitation in the caller's tenant and emails the code. Rejected when the email already belongs to a user anywhere on the platform. Requires a global admin.
//	@Tags			Invites
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.InviteRequest	true	"Invitation"
//	@Success		200		{object}	httpx.MessageResponse	"Invitation sent"
//	@Failure		400		{object}	httpx.ErrorResponse		"Email already in use"
//	@Failure		401		{object}	httpx.ErrorResponse		"Missing or invalid token"
//	@Failure		403		{object}	httpx.ErrorResponse		"Not a global admin"
//	@Failure		500		{object}	httpx.ErrorResponse		"Email could not be sent"
//	@Security		BearerAuth
//	@Router			/v1/users/invite [post].
func (h *InviteSendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req service.InviteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.InviteService.Invite(r.Context(), caller, req); err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageResponse{Message: "Invitation has been sent."})
}
