package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type SelfHandler struct {
	AccountService *service.AccountService
}

// HandleGet returns the caller's profile.
//
//	@Summary		Get own profile
//	@Tags			Self
//	@Produce		json
//	@Success		200	{object}	domain.Self			"Profile with session access flags"
//	@Failure		401	{object}	httpx.ErrorResponse	"Missing or invalid token"
//	@Failure		404	{object}	httpx.ErrorResponse	"User no longer exists"
//	@Security		BearerAuth
//	@Router			/v1/self [get].
func (h *SelfHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	self, err := h.AccountService.GetSelf(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, self)
}

// HandleUpdate passes the raw body through. The service applies the
// self-editable fields and ignores the rest.
//
//	@Summary		Update own profile
//	@Description	Changes first_name, last_name or password. A new password logs out every other session.
//	@Tags			Self
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.UpdateSelfRequest		true	"Profile changes"
//	@Success		200		{object}	service.UpdateSelfResponse		"Updated"
//	@Failure		400		{object}	httpx.ValidationErrorResponse	"Invalid body"
//	@Failure		401		{object}	httpx.ErrorResponse				"Missing or invalid token"
//	@Failure		409		{object}	httpx.ErrorResponse				"Concurrent update"
//	@Security		BearerAuth
//	@Router			/v1/self [post].
func (h *SelfHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var body json.RawMessage
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		writeBadBody(w, err)
		return
	}

	resp, err := h.AccountService.UpdateSelf(r.Context(), caller, body)
	if err != nil {
		writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
