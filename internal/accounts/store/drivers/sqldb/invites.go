package sqldb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/jmoiron/sqlx"
)

type invitesRepo struct {
	db sqlx.ExtContext
}

type inviteRow struct {
	CodeHash  string `db:"code_hash"`
	Email     string `db:"email"`
	TenantID  string `db:"tenant_id"`
	InvitedBy string `db:"invited_by"`
	Info      string `db:"info"`
	ExpiresAt int64  `db:"expires_at"`
	CreatedAt int64  `db:"created_at"`
}

func (row inviteRow) toDomain() (domain.Invite, error) {
	inv := domain.Invite{
		CodeHash:  row.CodeHash,
		Email:     row.Email,
		TenantID:  row.TenantID,
		InvitedBy: row.InvitedBy,
		ExpiresAt: fromMillis(row.ExpiresAt),
		CreatedAt: fromMillis(row.CreatedAt),
	}
	if err := json.Unmarshal([]byte(row.Info), &inv.Info); err != nil {
		return domain.Invite{}, err
	}
	return inv, nil
}

func (r *invitesRepo) Create(ctx context.Context, inv domain.Invite) error {
	const q = `
	INSERT INTO invites (code_hash, email, tenant_id, invited_by, info, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	info, err := json.Marshal(inv.Info)
	if err != nil {
		return err
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(q),
		inv.CodeHash, inv.Email, inv.TenantID, inv.InvitedBy, string(info),
		toMillis(inv.ExpiresAt), toMillis(inv.CreatedAt),
	)
	return mapWriteErr(err)
}

func (r *invitesRepo) Consume(ctx context.Context, codeHash string, now time.Time) (domain.Invite, error) {
	const sel = `
	SELECT code_hash, email, tenant_id, invited_by, info, expires_at, created_at
	FROM invites WHERE code_hash = ? AND expires_at > ?`
	const del = `DELETE FROM invites WHERE code_hash = ?`

	var row inviteRow
	if err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind(sel), codeHash, toMillis(now)); err != nil {
		return domain.Invite{}, mapNotFound(err)
	}

	// Losing a race with another accept leaves nothing to delete.
	res, err := r.db.ExecContext(ctx, r.db.Rebind(del), codeHash)
	if err != nil {
		return domain.Invite{}, err
	}
	if rowsAffected(res) == 0 {
		return domain.Invite{}, store.ErrNotFound
	}

	return row.toDomain()
}

func (r *invitesRepo) Delete(ctx context.Context, codeHash string) error {
	const q = `DELETE FROM invites WHERE code_hash = ?`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(q), codeHash)
	return err
}

func (r *invitesRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM invites WHERE expires_at <= ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), toMillis(now))
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}
