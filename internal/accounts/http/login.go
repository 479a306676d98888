package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type LoginHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP exchanges email and password for a session token.
//
//	@Summary		Log in
//	@Description	Verifies the credentials and opens a session. The returned access token is an EdDSA-signed JWT bound to the session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.LoginRequest	true	"Credentials"
//	@Success		200		{object}	service.LoginResponse	"Session opened"
//	@Failure		400		{object}	httpx.ErrorResponse		"Malformed body"
//	@Failure		401		{object}	httpx.ErrorResponse		"Invalid credentials"
//	@Failure		403		{object}	httpx.ErrorResponse		"User inactive"
//	@Failure		429		{object}	httpx.ErrorResponse		"Rate limited"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	resp, err := h.SessionService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
