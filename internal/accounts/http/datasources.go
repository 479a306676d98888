package http

import (
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

type DatasourcesHandler struct {
	DatasourceService *service.DatasourceService
}

//	@Summary		List datasources
//	@Description	Every datasource of the tenant with its tables and queries. Requires a global builder or admin.
//	@Tags			Datasources
//	@Produce		json
//	@Success		200	{array}		service.DatasourceView	"Datasources"
//	@Failure		403	{object}	httpx.ErrorResponse		"Not a builder"
//	@Security		BearerAuth
//	@Router			/v1/datasources [get].
func (h *DatasourcesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	views, err := h.DatasourceService.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

//	@Summary		Create a datasource
//	@Tags			Datasources
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.CreateDatasourceRequest	true	"Datasource"
//	@Success		201		{object}	domain.Datasource				"Created"
//	@Failure		400		{object}	httpx.ValidationErrorResponse	"Invalid datasource"
//	@Security		BearerAuth
//	@Router			/v1/datasources [post].
func (h *DatasourcesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req service.CreateDatasourceRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	ds, err := h.DatasourceService.Create(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ds)
}

//	@Summary		Edit a datasource
//	@Tags			Datasources
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Datasource id"
//	@Param			request	body		service.UpdateDatasourceRequest	true	"Name and config"
//	@Success		200		{object}	domain.Datasource				"Updated"
//	@Failure		404		{object}	httpx.ErrorResponse				"Unknown datasource"
//	@Failure		409		{object}	httpx.ErrorResponse				"Stale revision"
//	@Security		BearerAuth
//	@Router			/v1/datasources/{id} [put].
func (h *DatasourcesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req service.UpdateDatasourceRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	ds, err := h.DatasourceService.Update(r.Context(), caller, r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ds)
}

// HandleDelete takes the builder's current selection as body. An empty body
// means nothing is selected.
//
//	@Summary		Delete a datasource
//	@Description	Deletes the datasource with its tables and queries. navigate_to is "/data" when the deleted datasource was part of the selection.
//	@Tags			Datasources
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Datasource id"
//	@Param			request	body		domain.Selection	false	"Current selection"
//	@Success		200		{object}	service.DeleteResult	"Deleted"
//	@Failure		404		{object}	httpx.ErrorResponse	"Unknown datasource"
//	@Security		BearerAuth
//	@Router			/v1/datasources/{id}/delete [post].
func (h *DatasourcesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var sel domain.Selection
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &sel); err != nil {
			writeBadBody(w, err)
			return
		}
	}

	res, err := h.DatasourceService.Delete(r.Context(), caller, r.PathValue("id"), sel)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

//	@Summary		Add a table
//	@Tags			Datasources
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Datasource id"
//	@Param			request	body		service.CreateChildRequest	true	"Table"
//	@Success		201		{object}	domain.Table				"Created"
//	@Security		BearerAuth
//	@Router			/v1/datasources/{id}/tables [post].
func (h *DatasourcesHandler) HandleCreateTable(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req service.CreateChildRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	t, err := h.DatasourceService.CreateTable(r.Context(), caller, r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

//	@Summary		Add a query
//	@Tags			Datasources
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Datasource id"
//	@Param			request	body		service.CreateChildRequest	true	"Query"
//	@Success		201		{object}	domain.Query				"Created"
//	@Security		BearerAuth
//	@Router			/v1/datasources/{id}/queries [post].
func (h *DatasourcesHandler) HandleCreateQuery(w http.ResponseWriter, r *http.Request) {
	caller, ok := mustCaller(w, r)
	if !ok {
		return
	}

	var req service.CreateChildRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	q, err := h.DatasourceService.CreateQuery(r.Context(), caller, r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err, http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, q)
}
