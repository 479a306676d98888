package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/aussiebroadwan/accounts/pkg/validx"
)

// DataListingPath is where the builder goes after its open datasource is
// deleted.
const DataListingPath = "/data"

// DatasourceService backs the builder's datasource action menu.
type DatasourceService struct {
	Store store.Store
}

// DatasourceView is a datasource with its children.
type DatasourceView struct {
	domain.Datasource
	Tables  []domain.Table `json:"tables"`
	Queries []domain.Query `json:"queries"`
}

func (s *DatasourceService) List(ctx context.Context, caller domain.Caller) ([]DatasourceView, error) {
	dss, err := s.Store.Datasources().List(ctx, caller.TenantID)
	if err != nil {
		return nil, err
	}

	out := make([]DatasourceView, 0, len(dss))
	for _, ds := range dss {
		tables, err := s.Store.Datasources().ListTables(ctx, caller.TenantID, ds.ID)
		if err != nil {
			return nil, err
		}
		queries, err := s.Store.Datasources().ListQueries(ctx, caller.TenantID, ds.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, DatasourceView{Datasource: ds, Tables: tables, Queries: queries})
	}
	return out, nil
}

type CreateDatasourceRequest struct {
	Name   string         `json:"name" validate:"required,max=255"`
	Type   string         `json:"type" validate:"required,max=64"`
	Config map[string]any `json:"config"`
}

func (s *DatasourceService) Create(ctx context.Context, caller domain.Caller, req CreateDatasourceRequest) (domain.Datasource, error) {
	if err := validx.Check(req); err != nil {
		return domain.Datasource{}, err
	}

	ds, err := s.Store.Datasources().Create(ctx, domain.Datasource{
		ID:       idx.NewPrefixed(idx.PrefixDatasource).String(),
		TenantID: caller.TenantID,
		Name:     req.Name,
		Type:     req.Type,
		Config:   req.Config,
	})
	if err != nil {
		return domain.Datasource{}, err
	}

	slogx.FromContext(ctx).Info("datasource created", slog.String("datasource_id", ds.ID))
	return ds, nil
}

type UpdateDatasourceRequest struct {
	Rev    string         `json:"rev" validate:"required"`
	Name   string         `json:"name" validate:"required,max=255"`
	Config map[string]any `json:"config"`
}

// Update is the edit action. The write fails with store.ErrConflict when
// req.Rev is stale.
func (s *DatasourceService) Update(ctx context.Context, caller domain.Caller, id string, req UpdateDatasourceRequest) (domain.Datasource, error) {
	if err := validx.Check(req); err != nil {
		return domain.Datasource{}, err
	}

	ds, err := s.Store.Datasources().Get(ctx, caller.TenantID, id)
	if err != nil {
		return domain.Datasource{}, err
	}

	ds.Rev = req.Rev
	ds.Name = req.Name
	if req.Config != nil {
		ds.Config = req.Config
	}
	return s.Store.Datasources().Update(ctx, ds)
}

// DeleteResult tells the builder where to go after a delete. NavigateTo is
// empty when the current view is unaffected.
type DeleteResult struct {
	Message    string `json:"message"`
	NavigateTo string `json:"navigate_to"`
}

// Delete removes a datasource with its tables and queries. sel is what the
// builder had open, if any of it belonged to the datasource the result
// points back to the listing.
func (s *DatasourceService) Delete(ctx context.Context, caller domain.Caller, id string, sel domain.Selection) (DeleteResult, error) {
	log := slogx.FromContext(ctx)

	// 1. The datasource must exist.
	if _, err := s.Store.Datasources().Get(ctx, caller.TenantID, id); err != nil {
		return DeleteResult{}, err
	}

	// 2. Work out whether the open view belongs to it.
	affected, err := s.selectionBelongsTo(ctx, caller.TenantID, id, sel)
	if err != nil {
		return DeleteResult{}, err
	}

	// 3. Delete, children go with it.
	if err := s.Store.Datasources().Delete(ctx, caller.TenantID, id); err != nil {
		log.Error("failed to delete datasource", slog.String("datasource_id", id), slog.Any("error", err))
		return DeleteResult{}, err
	}

	res := DeleteResult{Message: "Datasource deleted"}
	if affected {
		res.NavigateTo = DataListingPath
	}

	log.Info("datasource deleted",
		slog.String("datasource_id", id),
		slog.Bool("selection_affected", affected),
	)
	return res, nil
}

// selectionBelongsTo reports whether the datasource is selected directly or
// through its query, or whether the selected table is one of its tables.
// Selected children that no longer exist count as unrelated.
func (s *DatasourceService) selectionBelongsTo(ctx context.Context, tenantID, id string, sel domain.Selection) (bool, error) {
	if sel.DatasourceID == id {
		return true, nil
	}

	if sel.QueryID != "" {
		q, err := s.Store.Datasources().GetQuery(ctx, tenantID, sel.QueryID)
		switch {
		case err == nil:
			if q.DatasourceID == id {
				return true, nil
			}
		case !errors.Is(err, store.ErrNotFound):
			return false, err
		}
	}

	if sel.TableID != "" {
		t, err := s.Store.Datasources().GetTable(ctx, tenantID, sel.TableID)
		switch {
		case err == nil:
			if t.DatasourceID == id {
				return true, nil
			}
		case !errors.Is(err, store.ErrNotFound):
			return false, err
		}
	}

	return false, nil
}

type CreateChildRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (s *DatasourceService) CreateTable(ctx context.Context, caller domain.Caller, datasourceID string, req CreateChildRequest) (domain.Table, error) {
	if err := validx.Check(req); err != nil {
		return domain.Table{}, err
	}
	if _, err := s.Store.Datasources().Get(ctx, caller.TenantID, datasourceID); err != nil {
		return domain.Table{}, err
	}

	t := domain.Table{
		ID:           idx.NewPrefixed(idx.PrefixTable).String(),
		DatasourceID: datasourceID,
		TenantID:     caller.TenantID,
		Name:         req.Name,
	}
	if err := s.Store.Datasources().CreateTable(ctx, t); err != nil {
		return domain.Table{}, err
	}
	return s.Store.Datasources().GetTable(ctx, caller.TenantID, t.ID)
}

func (s *DatasourceService) CreateQuery(ctx context.Context, caller domain.Caller, datasourceID string, req CreateChildRequest) (domain.Query, error) {
	if err := validx.Check(req); err != nil {
		return domain.Query{}, err
	}
	if _, err := s.Store.Datasources().Get(ctx, caller.TenantID, datasourceID); err != nil {
		return domain.Query{}, err
	}

	q := domain.Query{
		ID:           idx.NewPrefixed(idx.PrefixQuery).String(),
		DatasourceID: datasourceID,
		TenantID:     caller.TenantID,
		Name:         req.Name,
	}
	if err := s.Store.Datasources().CreateQuery(ctx, q); err != nil {
		return domain.Query{}, err
	}
	return s.Store.Datasources().GetQuery(ctx, caller.TenantID, q.ID)
}
