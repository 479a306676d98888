package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/aussiebroadwan/accounts/pkg/validx"
)

// writeServiceError maps a service failure onto a response. Errors that carry
// their own status use it, anything else falls back to fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	var fe validx.FieldErrors
	if errors.As(err, &fe) {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ValidationErrorResponse{
			Error:            "validation_error",
			ErrorDescription: "validation failed for some fields",
			Fields:           fe.Fields(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrAlreadyInitialized):
		httpx.WriteError(w, http.StatusForbidden, "already_initialized", err.Error())
	case errors.Is(err, service.ErrTenantExists),
		errors.Is(err, service.ErrUseAccountPortal),
		errors.Is(err, service.ErrCannotDeleteHolder),
		errors.Is(err, service.ErrEmailInUse),
		errors.Is(err, service.ErrInvalidInvitation),
		errors.Is(err, service.ErrTenantUserNotFound),
		errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrInvalidPasswordHash),
		errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrUserInactive):
		httpx.WriteError(w, http.StatusForbidden, "user_inactive", "User is inactive")
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "conflict", err.Error())
	default:
		code := httpx.StatusFromError(err, fallback)
		if code >= http.StatusInternalServerError {
			slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
			httpx.WriteError(w, code, "server_error", "Internal server error")
			return
		}
		httpx.WriteError(w, code, "invalid_request", err.Error())
	}
}

func writeBadBody(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
