package http

import (
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type UsersHandler struct {
	AccountService *service.AccountService
}

// HandleSave creates or updates a user. Failures are client errors unless
// the store says otherwise.
//
//	@Summary		Save a user
//	@Description	Creates the user when id is empty, otherwise updates it against rev. Requires a global admin.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.SaveUserRequest		true	"User"
//	@Success		200		{object}	service.SaveUserResponse	"Saved user"
//	@Failure		400		{object}	httpx.ValidationErrorResponse	"Invalid user"
//	@Failure		403		{object}	httpx.ErrorResponse			"Not a global admin"
//	@Failure		409		{object}	httpx.ErrorResponse			"Stale revision"
//	@Security		BearerAuth
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req service.SaveUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	resp, err := h.AccountService.SaveUser(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleDelete removes a user and its platform row.
//
//	@Summary		Delete a user
//	@Description	Deletes the user. Account holders cannot be deleted here when the account portal is enabled.
//	@Tags			Users
//	@Produce		json
//	@Param			id	path		string					true	"User id"
//	@Success		200	{object}	httpx.MessageResponse	"User deleted"
//	@Failure		400	{object}	httpx.ErrorResponse		"Account holder"
//	@Failure		403	{object}	httpx.ErrorResponse		"Not a global admin"
//	@Failure		404	{object}	httpx.ErrorResponse		"Unknown user"
//	@Security		BearerAuth
//	@Router			/v1/users/{id} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	msg, err := h.AccountService.DeleteUser(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageResponse{Message: msg})
}

// HandleRemoveAppRole strips one app's role from every user in the tenant.
//
//	@Summary		Remove an app role
//	@Tags			Users
//	@Produce		json
//	@Param			appId	path		string					true	"App id"
//	@Success		200		{object}	httpx.MessageResponse	"Role removed"
//	@Failure		403		{object}	httpx.ErrorResponse		"Not a global admin"
//	@Security		BearerAuth
//	@Router			/v1/users/roles/{appId} [delete].
func (h *UsersHandler) HandleRemoveAppRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	if _, err := h.AccountService.RemoveAppRole(r.Context(), caller, r.PathValue("appId")); err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.MessageResponse{Message: "App role removed from all users"})
}

//	@Summary		List users
//	@Tags			Users
//	@Produce		json
//	@Success		200	{array}		domain.User			"Tenant users without passwords"
//	@Failure		401	{object}	httpx.ErrorResponse	"Missing or invalid token"
//	@Security		BearerAuth
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	users, err := h.AccountService.Fetch(r.Context(), caller.TenantID)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

// HandleFind answers {} for an unknown id.
//
//	@Summary		Find a user
//	@Tags			Users
//	@Produce		json
//	@Param			id	path		string				true	"User id"
//	@Success		200	{object}	domain.User			"User, or an empty object"
//	@Failure		401	{object}	httpx.ErrorResponse	"Missing or invalid token"
//	@Security		BearerAuth
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleFind(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	u, found, err := h.AccountService.Find(r.Context(), caller.TenantID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("find user: %w", err), http.StatusInternalServerError)
		return
	}
	if !found {
		httpx.WriteJSON(w, http.StatusOK, struct{}{})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
