package sqldb

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/jmoiron/sqlx"
)

type tenantsRepo struct {
	db sqlx.ExtContext
}

func (r *tenantsRepo) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT COUNT(*) FROM tenants WHERE id = ?`

	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(q), id); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *tenantsRepo) Create(ctx context.Context, t domain.Tenant) error {
	const q = `INSERT INTO tenants (id, created_at) VALUES (?, ?)`

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), t.ID, toMillis(t.CreatedAt))
	return mapWriteErr(err)
}
