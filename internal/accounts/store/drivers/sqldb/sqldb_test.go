package sqldb_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqldb"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqldb.Store {
	t.Helper()

	ctx := context.Background()
	st, err := sqldb.Open(ctx, sqldb.DriverSQLite, sqldb.SQLiteDSN(filepath.Join(t.TempDir(), "accounts.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := sqldb.Open(context.Background(), "mysql", "whatever")
	require.Error(t, err)
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
}

func TestUsersRevisions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.Users().Create(ctx, domain.User{
		ID:       "us_1",
		TenantID: "t1",
		Email:    "a@x.com",
		Roles:    map[string]string{"app1": "BASIC"},
		Admin:    &domain.Capability{Global: true},
	})
	require.NoError(t, err)
	require.Regexp(t, `^1-[0-9a-f]+$`, created.Rev)

	got, err := st.Users().Get(ctx, "t1", "us_1")
	require.NoError(t, err)
	require.Equal(t, created.Rev, got.Rev)
	require.Equal(t, "BASIC", got.Roles["app1"])

	got.FirstName = "Ada"
	updated, err := st.Users().Update(ctx, got)
	require.NoError(t, err)
	require.Regexp(t, `^2-`, updated.Rev)

	// Writing with the revision we read first is now stale.
	got.LastName = "Lovelace"
	_, err = st.Users().Update(ctx, got)
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = st.Users().Update(ctx, domain.User{ID: "us_missing", TenantID: "t1", Rev: "1-abc"})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, st.Users().Delete(ctx, "t1", "us_1", created.Rev), store.ErrConflict)
	require.NoError(t, st.Users().Delete(ctx, "t1", "us_1", updated.Rev))

	_, err = st.Users().Get(ctx, "t1", "us_1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsersTenantScopingAndUniqueness(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Users().Create(ctx, domain.User{ID: "us_1", TenantID: "t1", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = st.Users().Create(ctx, domain.User{ID: "us_2", TenantID: "t1", Email: "a@x.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = st.Users().Create(ctx, domain.User{ID: "us_3", TenantID: "t2", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = st.Users().Get(ctx, "t2", "us_1")
	require.ErrorIs(t, err, store.ErrNotFound)

	users, err := st.Users().List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, users, 1)

	byEmail, err := st.Users().GetByEmail(ctx, "t2", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "us_3", byEmail.ID)

	hasAdmin, err := st.Users().HasGlobalAdmin(ctx, "t1")
	require.NoError(t, err)
	require.False(t, hasAdmin)

	_, err = st.Users().Create(ctx, domain.User{
		ID: "us_4", TenantID: "t1", Email: "admin@x.com", Admin: &domain.Capability{Global: true},
	})
	require.NoError(t, err)

	hasAdmin, err = st.Users().HasGlobalAdmin(ctx, "t1")
	require.NoError(t, err)
	require.True(t, hasAdmin)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().Create(ctx, domain.User{ID: "us_1", TenantID: "t1", Email: "a@x.com"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Users().Get(ctx, "t1", "us_1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Tenants().Create(ctx, domain.Tenant{ID: "t1"})
	}))
	exists, err := st.Tenants().Exists(ctx, "t1")
	require.NoError(t, err)
	require.True(t, exists)

	require.ErrorIs(t, st.Tenants().Create(ctx, domain.Tenant{ID: "t1"}), store.ErrAlreadyExists)
}

func TestPlatformEmailsAreGloballyUnique(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Platform().Upsert(ctx, domain.PlatformUser{UserID: "us_1", Email: "A@x.com", TenantID: "t1"}))
	require.ErrorIs(t,
		st.Platform().Upsert(ctx, domain.PlatformUser{UserID: "us_2", Email: "a@x.com", TenantID: "t2"}),
		store.ErrAlreadyExists,
	)

	// Same user may move email.
	require.NoError(t, st.Platform().Upsert(ctx, domain.PlatformUser{UserID: "us_1", Email: "b@x.com", TenantID: "t1"}))

	p, err := st.Platform().GetByEmail(ctx, "B@X.com")
	require.NoError(t, err)
	require.Equal(t, "us_1", p.UserID)

	require.NoError(t, st.Platform().Delete(ctx, "us_1"))
	require.ErrorIs(t, st.Platform().Delete(ctx, "us_1"), store.ErrNotFound)
	_, err = st.Platform().GetByUserID(ctx, "us_1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInvitesConsumeOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now()

	require.NoError(t, st.Invites().Create(ctx, domain.Invite{
		CodeHash:  "live",
		Email:     "b@x.com",
		TenantID:  "t1",
		Info:      domain.InviteInfo{Roles: map[string]string{"app1": "BASIC"}},
		ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, st.Invites().Create(ctx, domain.Invite{
		CodeHash:  "stale",
		Email:     "c@x.com",
		TenantID:  "t1",
		ExpiresAt: now.Add(-time.Minute),
	}))

	inv, err := st.Invites().Consume(ctx, "live", now)
	require.NoError(t, err)
	require.Equal(t, "b@x.com", inv.Email)
	require.Equal(t, "BASIC", inv.Info.Roles["app1"])

	_, err = st.Invites().Consume(ctx, "live", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Invites().Consume(ctx, "stale", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Invites().Consume(ctx, "unknown", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := st.Invites().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestQuotaReset(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.ErrorIs(t, st.Quotas().Delete(ctx, "t1"), store.ErrNotFound)

	q, err := st.Quotas().Create(ctx, domain.UsageQuota{
		ID: "qu_1", TenantID: "t1", Limits: domain.QuotaCounts{Users: 5, Apps: 2},
	})
	require.NoError(t, err)
	require.NotEmpty(t, q.Rev)

	_, err = st.Quotas().Create(ctx, domain.UsageQuota{ID: "qu_2", TenantID: "t1"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, st.Quotas().Delete(ctx, "t1"))
	_, err = st.Quotas().Create(ctx, domain.UsageQuota{ID: "qu_2", TenantID: "t1"})
	require.NoError(t, err)

	got, err := st.Quotas().Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "qu_2", got.ID)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now()

	for _, id := range []string{"se_1", "se_2", "se_3"} {
		require.NoError(t, st.Sessions().Create(ctx, domain.Session{
			ID: id, UserID: "us_1", TenantID: "t1", PlatformAccess: true, ExpiresAt: now.Add(time.Hour),
		}))
	}
	require.NoError(t, st.Sessions().Create(ctx, domain.Session{
		ID: "se_old", UserID: "us_2", TenantID: "t1", ExpiresAt: now.Add(-time.Hour),
	}))

	s, err := st.Sessions().Get(ctx, "se_1")
	require.NoError(t, err)
	require.True(t, s.PlatformAccess)
	require.False(t, s.AccountPortalAccess)

	n, err := st.Sessions().DeleteByUserExcept(ctx, "us_1", "se_2")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = st.Sessions().Get(ctx, "se_2")
	require.NoError(t, err)

	n, err = st.Sessions().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = st.Sessions().DeleteByUser(ctx, "us_1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDatasourceDeleteCascades(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	ds, err := st.Datasources().Create(ctx, domain.Datasource{
		ID: "ds_1", TenantID: "t1", Name: "Postgres", Type: "postgres",
		Config: map[string]any{"host": "db"},
	})
	require.NoError(t, err)

	require.NoError(t, st.Datasources().CreateTable(ctx, domain.Table{ID: "ta_1", DatasourceID: ds.ID, TenantID: "t1", Name: "orders"}))
	require.NoError(t, st.Datasources().CreateQuery(ctx, domain.Query{ID: "qy_1", DatasourceID: ds.ID, TenantID: "t1", Name: "recent"}))

	ds.Name = "Primary"
	updated, err := st.Datasources().Update(ctx, ds)
	require.NoError(t, err)
	_, err = st.Datasources().Update(ctx, ds)
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := st.Datasources().Get(ctx, "t1", "ds_1")
	require.NoError(t, err)
	require.Equal(t, "Primary", got.Name)
	require.Equal(t, updated.Rev, got.Rev)
	require.Equal(t, "db", got.Config["host"])

	require.NoError(t, st.Datasources().Delete(ctx, "t1", "ds_1"))
	require.ErrorIs(t, st.Datasources().Delete(ctx, "t1", "ds_1"), store.ErrNotFound)

	_, err = st.Datasources().GetTable(ctx, "t1", "ta_1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Datasources().GetQuery(ctx, "t1", "qy_1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
