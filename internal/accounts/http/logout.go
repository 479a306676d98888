package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

type LogoutHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP revokes the caller's session.
//
//	@Summary		Log out
//	@Description	Revokes the session the access token belongs to. The token stops working immediately.
//	@Tags			Auth
//	@Success		204	"Session revoked"
//	@Failure		401	{object}	httpx.ErrorResponse	"Missing or invalid token"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal server error"
//	@Security		BearerAuth
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	if err := h.SessionService.Logout(r.Context(), caller); err != nil {
		slogx.FromContext(r.Context()).Error("failed to logout", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
