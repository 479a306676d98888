package sqldb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/jmoiron/sqlx"
)

type datasourcesRepo struct {
	db sqlx.ExtContext
}

type datasourceRow struct {
	ID   string `db:"id"`
	Rev  string `db:"rev"`
	Body string `db:"body"`
}

func (row datasourceRow) toDomain() (domain.Datasource, error) {
	var ds domain.Datasource
	if err := json.Unmarshal([]byte(row.Body), &ds); err != nil {
		return domain.Datasource{}, err
	}
	ds.ID = row.ID
	ds.Rev = row.Rev
	return ds, nil
}

type childRow struct {
	ID           string `db:"id"`
	DatasourceID string `db:"datasource_id"`
	TenantID     string `db:"tenant_id"`
	Name         string `db:"name"`
	CreatedAt    int64  `db:"created_at"`
}

func encodeDatasource(ds domain.Datasource) ([]byte, error) {
	ds.Rev = ""
	return json.Marshal(ds)
}

func (r *datasourcesRepo) Create(ctx context.Context, ds domain.Datasource) (domain.Datasource, error) {
	const q = `
	INSERT INTO datasources (id, tenant_id, rev, body, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	ds.CreatedAt, ds.UpdatedAt = now, now

	body, err := encodeDatasource(ds)
	if err != nil {
		return domain.Datasource{}, err
	}
	ds.Rev = nextRev("", body)

	_, err = r.db.ExecContext(ctx, r.db.Rebind(q),
		ds.ID, ds.TenantID, ds.Rev, string(body), toMillis(ds.CreatedAt), toMillis(ds.UpdatedAt),
	)
	if err != nil {
		return domain.Datasource{}, mapWriteErr(err)
	}
	return ds, nil
}

func (r *datasourcesRepo) Get(ctx context.Context, tenantID, id string) (domain.Datasource, error) {
	const q = `SELECT id, rev, body FROM datasources WHERE tenant_id = ? AND id = ?`

	var row datasourceRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), tenantID, id); err != nil {
		return domain.Datasource{}, mapNotFound(err)
	}
	return row.toDomain()
}

func (r *datasourcesRepo) List(ctx context.Context, tenantID string) ([]domain.Datasource, error) {
	const q = `SELECT id, rev, body FROM datasources WHERE tenant_id = ? ORDER BY created_at, id`

	var rows []datasourceRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(q), tenantID); err != nil {
		return nil, err
	}

	out := make([]domain.Datasource, 0, len(rows))
	for _, row := range rows {
		ds, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

func (r *datasourcesRepo) Update(ctx context.Context, ds domain.Datasource) (domain.Datasource, error) {
	const q = `
	UPDATE datasources SET rev = ?, body = ?, updated_at = ?
	WHERE tenant_id = ? AND id = ? AND rev = ?`

	ds.UpdatedAt = time.Now().UTC()
	body, err := encodeDatasource(ds)
	if err != nil {
		return domain.Datasource{}, err
	}
	rev := nextRev(ds.Rev, body)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		rev, string(body), toMillis(ds.UpdatedAt), ds.TenantID, ds.ID, ds.Rev,
	)
	if err != nil {
		return domain.Datasource{}, err
	}
	if rowsAffected(res) == 0 {
		if _, err := r.Get(ctx, ds.TenantID, ds.ID); err != nil {
			return domain.Datasource{}, err
		}
		return domain.Datasource{}, store.ErrConflict
	}

	ds.Rev = rev
	return ds, nil
}

func (r *datasourcesRepo) Delete(ctx context.Context, tenantID, id string) error {
	// Children go first so drivers without enforced foreign keys stay clean.
	for _, q := range []string{
		`DELETE FROM datasource_tables WHERE tenant_id = ? AND datasource_id = ?`,
		`DELETE FROM datasource_queries WHERE tenant_id = ? AND datasource_id = ?`,
	} {
		if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), tenantID, id); err != nil {
			return err
		}
	}

	const q = `DELETE FROM datasources WHERE tenant_id = ? AND id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), tenantID, id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *datasourcesRepo) CreateTable(ctx context.Context, t domain.Table) error {
	const q = `
	INSERT INTO datasource_tables (id, datasource_id, tenant_id, name, created_at)
	VALUES (?, ?, ?, ?, ?)`

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), t.ID, t.DatasourceID, t.TenantID, t.Name, toMillis(t.CreatedAt))
	return mapWriteErr(err)
}

func (r *datasourcesRepo) GetTable(ctx context.Context, tenantID, id string) (domain.Table, error) {
	const q = `
	SELECT id, datasource_id, tenant_id, name, created_at
	FROM datasource_tables WHERE tenant_id = ? AND id = ?`

	var row childRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), tenantID, id); err != nil {
		return domain.Table{}, mapNotFound(err)
	}
	return domain.Table{
		ID:           row.ID,
		DatasourceID: row.DatasourceID,
		TenantID:     row.TenantID,
		Name:         row.Name,
		CreatedAt:    fromMillis(row.CreatedAt),
	}, nil
}

func (r *datasourcesRepo) ListTables(ctx context.Context, tenantID, datasourceID string) ([]domain.Table, error) {
	const q = `
	SELECT id, datasource_id, tenant_id, name, created_at
	FROM datasource_tables WHERE tenant_id = ? AND datasource_id = ? ORDER BY created_at, id`

	var rows []childRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(q), tenantID, datasourceID); err != nil {
		return nil, err
	}

	out := make([]domain.Table, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Table{
			ID:           row.ID,
			DatasourceID: row.DatasourceID,
			TenantID:     row.TenantID,
			Name:         row.Name,
			CreatedAt:    fromMillis(row.CreatedAt),
		})
	}
	return out, nil
}

func (r *datasourcesRepo) CreateQuery(ctx context.Context, qy domain.Query) error {
	const q = `
	INSERT INTO datasource_queries (id, datasource_id, tenant_id, name, created_at)
	VALUES (?, ?, ?, ?, ?)`

	if qy.CreatedAt.IsZero() {
		qy.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), qy.ID, qy.DatasourceID, qy.TenantID, qy.Name, toMillis(qy.CreatedAt))
	return mapWriteErr(err)
}

func (r *datasourcesRepo) GetQuery(ctx context.Context, tenantID, id string) (domain.Query, error) {
	const q = `
	SELECT id, datasource_id, tenant_id, name, created_at
	FROM datasource_queries WHERE tenant_id = ? AND id = ?`

	var row childRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), tenantID, id); err != nil {
		return domain.Query{}, mapNotFound(err)
	}
	return domain.Query{
		ID:           row.ID,
		DatasourceID: row.DatasourceID,
		TenantID:     row.TenantID,
		Name:         row.Name,
		CreatedAt:    fromMillis(row.CreatedAt),
	}, nil
}

func (r *datasourcesRepo) ListQueries(ctx context.Context, tenantID, datasourceID string) ([]domain.Query, error) {
	const q = `
	SELECT id, datasource_id, tenant_id, name, created_at
	FROM datasource_queries WHERE tenant_id = ? AND datasource_id = ? ORDER BY created_at, id`

	var rows []childRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(q), tenantID, datasourceID); err != nil {
		return nil, err
	}

	out := make([]domain.Query, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Query{
			ID:           row.ID,
			DatasourceID: row.DatasourceID,
			TenantID:     row.TenantID,
			Name:         row.Name,
			CreatedAt:    fromMillis(row.CreatedAt),
		})
	}
	return out, nil
}
