package sqldb

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/jmoiron/sqlx"
)

type platformRepo struct {
	db sqlx.ExtContext
}

type platformRow struct {
	UserID   string `db:"user_id"`
	Email    string `db:"email"`
	TenantID string `db:"tenant_id"`
}

func (row platformRow) toDomain() domain.PlatformUser {
	return domain.PlatformUser{UserID: row.UserID, Email: row.Email, TenantID: row.TenantID}
}

func (r *platformRepo) Upsert(ctx context.Context, p domain.PlatformUser) error {
	const q = `
	INSERT INTO platform_users (user_id, email, tenant_id) VALUES (?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET email = excluded.email, tenant_id = excluded.tenant_id`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), p.UserID, strings.ToLower(p.Email), p.TenantID)
	return mapWriteErr(err)
}

func (r *platformRepo) GetByUserID(ctx context.Context, userID string) (domain.PlatformUser, error) {
	const q = `SELECT user_id, email, tenant_id FROM platform_users WHERE user_id = ?`

	var row platformRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), userID); err != nil {
		return domain.PlatformUser{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *platformRepo) GetByEmail(ctx context.Context, email string) (domain.PlatformUser, error) {
	const q = `SELECT user_id, email, tenant_id FROM platform_users WHERE email = ?`

	var row platformRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), strings.ToLower(email)); err != nil {
		return domain.PlatformUser{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *platformRepo) Delete(ctx context.Context, userID string) error {
	const q = `DELETE FROM platform_users WHERE user_id = ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), userID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return store.ErrNotFound
	}
	return nil
}
