package sqldb

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/jmoiron/sqlx"
)

type usersRepo struct {
	db sqlx.ExtContext
}

type userRow struct {
	ID   string `db:"id"`
	Rev  string `db:"rev"`
	Body string `db:"body"`
}

func (row userRow) toDomain() (domain.User, error) {
	u, err := domain.DecodeUser([]byte(row.Body))
	if err != nil {
		return domain.User{}, err
	}
	u.ID = row.ID
	u.Rev = row.Rev
	return u, nil
}

func (r *usersRepo) Get(ctx context.Context, tenantID, id string) (domain.User, error) {
	const q = `SELECT id, rev, body FROM users WHERE tenant_id = ? AND id = ?`

	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), tenantID, id); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return row.toDomain()
}

func (r *usersRepo) GetByEmail(ctx context.Context, tenantID, email string) (domain.User, error) {
	const q = `SELECT id, rev, body FROM users WHERE tenant_id = ? AND email = ?`

	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(q), tenantID, email); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return row.toDomain()
}

func (r *usersRepo) List(ctx context.Context, tenantID string) ([]domain.User, error) {
	const q = `SELECT id, rev, body FROM users WHERE tenant_id = ? ORDER BY created_at, id`

	var rows []userRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(q), tenantID); err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *usersRepo) HasGlobalAdmin(ctx context.Context, tenantID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM users WHERE tenant_id = ? AND is_admin = ?`

	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(q), tenantID, true); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *usersRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	const q = `
	INSERT INTO users (id, tenant_id, email, rev, is_admin, body, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Version = domain.UserDocVersion

	body, err := domain.EncodeUser(u)
	if err != nil {
		return domain.User{}, err
	}
	u.Rev = nextRev("", body)

	_, err = r.db.ExecContext(ctx, r.db.Rebind(q),
		u.ID, u.TenantID, u.Email, u.Rev, u.IsGlobalAdmin(), string(body),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if err != nil {
		return domain.User{}, mapWriteErr(err)
	}
	return u, nil
}

func (r *usersRepo) Update(ctx context.Context, u domain.User) (domain.User, error) {
	const q = `
	UPDATE users
	SET email = ?, rev = ?, is_admin = ?, body = ?, updated_at = ?
	WHERE tenant_id = ? AND id = ? AND rev = ?`

	u.UpdatedAt = time.Now().UTC()
	u.Version = domain.UserDocVersion

	body, err := domain.EncodeUser(u)
	if err != nil {
		return domain.User{}, err
	}
	rev := nextRev(u.Rev, body)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		u.Email, rev, u.IsGlobalAdmin(), string(body), toMillis(u.UpdatedAt),
		u.TenantID, u.ID, u.Rev,
	)
	if err != nil {
		return domain.User{}, mapWriteErr(err)
	}
	if rowsAffected(res) == 0 {
		return domain.User{}, r.missOrConflict(ctx, u.TenantID, u.ID)
	}

	u.Rev = rev
	return u, nil
}

func (r *usersRepo) Delete(ctx context.Context, tenantID, id, rev string) error {
	const q = `DELETE FROM users WHERE tenant_id = ? AND id = ? AND rev = ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), tenantID, id, rev)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return r.missOrConflict(ctx, tenantID, id)
	}
	return nil
}

// missOrConflict explains a write that matched no rows.
func (r *usersRepo) missOrConflict(ctx context.Context, tenantID, id string) error {
	const q = `SELECT COUNT(*) FROM users WHERE tenant_id = ? AND id = ?`

	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(q), tenantID, id); err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
