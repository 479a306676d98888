package sqldb

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/jmoiron/sqlx"
)

type sessionsRepo struct {
	db sqlx.ExtContext
}

type sessionRow struct {
	ID                  string `db:"id"`
	UserID              string `db:"user_id"`
	TenantID            string `db:"tenant_id"`
	AccountPortalAccess bool   `db:"account_portal_access"`
	PlatformAccess      bool   `db:"platform_access"`
	CreatedAt           int64  `db:"created_at"`
	ExpiresAt           int64  `db:"expires_at"`
}

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	const q = `
	INSERT INTO sessions (id, user_id, tenant_id, account_portal_access, platform_access, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		s.ID, s.UserID, s.TenantID, s.AccountPortalAccess, s.PlatformAccess,
		toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	return mapWriteErr(err)
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (domain.Session, error) {
	const q = `
	SELECT id, user_id, tenant_id, account_portal_access, platform_access, created_at, expires_at
	FROM sessions WHERE id = ?`

	var row sessionRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), id); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return domain.Session{
		ID:                  row.ID,
		UserID:              row.UserID,
		TenantID:            row.TenantID,
		AccountPortalAccess: row.AccountPortalAccess,
		PlatformAccess:      row.PlatformAccess,
		CreatedAt:           fromMillis(row.CreatedAt),
		ExpiresAt:           fromMillis(row.ExpiresAt),
	}, nil
}

func (r *sessionsRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM sessions WHERE id = ?`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), id)
	return err
}

func (r *sessionsRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	const q = `DELETE FROM sessions WHERE user_id = ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), userID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (r *sessionsRepo) DeleteByUserExcept(ctx context.Context, userID, keepID string) (int64, error) {
	const q = `DELETE FROM sessions WHERE user_id = ? AND id <> ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), userID, keepID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE expires_at <= ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), toMillis(now))
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}
