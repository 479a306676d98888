package sqldb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/jmoiron/sqlx"
)

type quotasRepo struct {
	db sqlx.ExtContext
}

func (r *quotasRepo) Get(ctx context.Context, tenantID string) (domain.UsageQuota, error) {
	const q = `SELECT rev, body FROM usage_quotas WHERE tenant_id = ?`

	var row struct {
		Rev  string `db:"rev"`
		Body string `db:"body"`
	}
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), tenantID); err != nil {
		return domain.UsageQuota{}, mapNotFound(err)
	}

	var quota domain.UsageQuota
	if err := json.Unmarshal([]byte(row.Body), &quota); err != nil {
		return domain.UsageQuota{}, err
	}
	quota.Rev = row.Rev
	return quota, nil
}

func (r *quotasRepo) Delete(ctx context.Context, tenantID string) error {
	const q = `DELETE FROM usage_quotas WHERE tenant_id = ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), tenantID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *quotasRepo) Create(ctx context.Context, quota domain.UsageQuota) (domain.UsageQuota, error) {
	const q = `INSERT INTO usage_quotas (tenant_id, id, rev, body, created_at) VALUES (?, ?, ?, ?, ?)`

	if quota.CreatedAt.IsZero() {
		quota.CreatedAt = time.Now().UTC()
	}
	quota.Rev = ""

	body, err := json.Marshal(quota)
	if err != nil {
		return domain.UsageQuota{}, err
	}
	quota.Rev = nextRev("", body)

	_, err = r.db.ExecContext(ctx, r.db.Rebind(q),
		quota.TenantID, quota.ID, quota.Rev, string(body), toMillis(quota.CreatedAt),
	)
	if err != nil {
		return domain.UsageQuota{}, mapWriteErr(err)
	}
	return quota, nil
}
