package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/validx"
	"github.com/stretchr/testify/require"
)

func TestInitAdminTwiceFails(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	ctx := context.Background()

	u, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	require.True(t, u.IsGlobalAdmin())
	require.True(t, u.IsGlobalBuilder())
	require.Empty(t, u.Password)
	require.Equal(t, domain.DefaultTenantID, u.TenantID)

	_, err = f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", Password: "p"})
	require.ErrorIs(t, err, service.ErrAlreadyInitialized)

	stored, err := f.store.Users().Get(ctx, u.TenantID, u.ID)
	require.NoError(t, err)
	require.NoError(t, cryptox.VerifyPassword("p", stored.Password))
}

func TestInitAdminResetsQuotaWhenHosted(t *testing.T) {
	f := newFixture(t, service.Deployment{SelfHosted: false})
	ctx := context.Background()

	_, err := f.store.Quotas().Create(ctx, domain.UsageQuota{ID: "qu_old", TenantID: domain.DefaultTenantID, Usage: domain.QuotaCounts{Users: 40}})
	require.NoError(t, err)

	_, err = f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", Password: "p"})
	require.NoError(t, err)

	q, err := f.store.Quotas().Get(ctx, domain.DefaultTenantID)
	require.NoError(t, err)
	require.NotEqual(t, "qu_old", q.ID)
	require.Equal(t, 1, q.Usage.Users)
}

func TestInitAdminSelfHostedSkipsQuota(t *testing.T) {
	f := newFixture(t, service.Deployment{SelfHosted: true})
	ctx := context.Background()

	_, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", Password: "p"})
	require.NoError(t, err)

	_, err = f.store.Quotas().Get(ctx, domain.DefaultTenantID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInitAdminExistingTenantWritesNothing(t *testing.T) {
	f := newFixture(t, service.Deployment{MultiTenancy: true})
	ctx := context.Background()

	require.NoError(t, f.store.Tenants().Create(ctx, domain.Tenant{ID: "acme"}))

	_, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@acme.com", Password: "p", TenantID: "acme"})
	require.ErrorIs(t, err, service.ErrTenantExists)

	users, err := f.store.Users().List(ctx, "acme")
	require.NoError(t, err)
	require.Empty(t, users)
	_, err = f.store.Platform().GetByEmail(ctx, "a@acme.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.Quotas().Get(ctx, "acme")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInitAdminPasswordModes(t *testing.T) {
	ctx := context.Background()

	t.Run("missing password", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		_, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com"})
		require.ErrorIs(t, err, service.ErrPasswordRequired)
	})

	t.Run("password not required", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		u, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", PasswordNotRequired: true, SSOID: "sso-1"})
		require.NoError(t, err)
		require.Equal(t, "sso-1", u.SSOID)
	})

	t.Run("pre hashed", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		hash, err := cryptox.HashPassword("secret")
		require.NoError(t, err)

		u, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", Password: hash, HashedPassword: true})
		require.NoError(t, err)

		stored, err := f.store.Users().Get(ctx, u.TenantID, u.ID)
		require.NoError(t, err)
		require.Equal(t, hash, stored.Password)
	})

	t.Run("bogus hash", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		_, err := f.accounts.InitAdmin(ctx, service.InitAdminRequest{Email: "a@x.com", Password: "plain", HashedPassword: true})
		require.ErrorIs(t, err, service.ErrInvalidPasswordHash)
	})
}

func TestSaveUserCreateAndUpdate(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	ctx := context.Background()
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", Email: "admin@x.com", Admin: &domain.Capability{Global: true}})
	caller := callerFor(admin)

	res, err := f.accounts.SaveUser(ctx, caller, service.SaveUserRequest{
		Email:    "New@X.com",
		Password: "password1",
		Roles:    map[string]string{"app1": "BASIC"},
	})
	require.NoError(t, err)
	require.Equal(t, "new@x.com", res.Email)
	require.Equal(t, 1, f.cache.count(res.ID))
	require.Contains(t, f.sync.users, res.ID)

	p, err := f.store.Platform().GetByUserID(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultTenantID, p.TenantID)

	// Stale revision.
	_, err = f.accounts.SaveUser(ctx, caller, service.SaveUserRequest{ID: res.ID, Rev: "1-stale", Email: "new@x.com"})
	require.ErrorIs(t, err, store.ErrConflict)

	updated, err := f.accounts.SaveUser(ctx, caller, service.SaveUserRequest{ID: res.ID, Rev: res.Rev, Email: "new@x.com", FirstName: "Nina"})
	require.NoError(t, err)
	require.NotEqual(t, res.Rev, updated.Rev)

	stored, err := f.store.Users().Get(ctx, domain.DefaultTenantID, res.ID)
	require.NoError(t, err)
	require.Equal(t, "Nina", stored.FirstName)
	// Password survives an update that does not carry one.
	require.NoError(t, cryptox.VerifyPassword("password1", stored.Password))
}

func TestSaveUserValidation(t *testing.T) {
	f := newFixture(t, service.Deployment{})

	_, err := f.accounts.SaveUser(context.Background(), domain.Caller{TenantID: domain.DefaultTenantID}, service.SaveUserRequest{Email: "not-an-email"})
	var fe validx.FieldErrors
	require.True(t, errors.As(err, &fe))
	require.Contains(t, fe.Fields(), "email")
}

func TestSaveUserIgnoresAppSyncFailure(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	f.sync.err = errors.New("app servers unreachable")

	_, err := f.accounts.SaveUser(context.Background(), domain.Caller{TenantID: domain.DefaultTenantID}, service.SaveUserRequest{Email: "a@x.com"})
	require.NoError(t, err)
}

func TestSaveUserCacheFailureIsFatal(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	f.cache.err = errors.New("cache down")

	_, err := f.accounts.SaveUser(context.Background(), domain.Caller{TenantID: domain.DefaultTenantID}, service.SaveUserRequest{Email: "a@x.com"})
	require.Error(t, err)
}

func TestSaveUserEmailTakenOnPlatform(t *testing.T) {
	f := newFixture(t, service.Deployment{MultiTenancy: true})
	seedUser(t, f.store, domain.User{ID: "us_other", TenantID: "other", Email: "taken@x.com"})

	_, err := f.accounts.SaveUser(context.Background(), domain.Caller{TenantID: domain.DefaultTenantID}, service.SaveUserRequest{Email: "taken@x.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	users, err := f.store.Users().List(context.Background(), domain.DefaultTenantID)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestDeleteUserInvalidatesOnce(t *testing.T) {
	f := newFixture(t, service.Deployment{SelfHosted: true})
	ctx := context.Background()
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", Email: "admin@x.com"})
	victim := seedUser(t, f.store, domain.User{ID: "us_victim", Email: "victim@x.com"})

	msg, err := f.accounts.DeleteUser(ctx, callerFor(admin), victim.ID)
	require.NoError(t, err)
	require.Equal(t, "User us_victim deleted.", msg)

	require.Equal(t, 1, f.cache.count(victim.ID))
	require.Equal(t, 1, f.sessions.invalidate[victim.ID])

	_, err = f.store.Users().Get(ctx, domain.DefaultTenantID, victim.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.Platform().GetByUserID(ctx, victim.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.accounts.DeleteUser(ctx, callerFor(admin), victim.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUserProtectsAccountHolder(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	f.accounts.Portal = fakePortal{"owner@x.com": {AccountID: "acc_1", Email: "owner@x.com"}}
	ctx := context.Background()

	owner := seedUser(t, f.store, domain.User{ID: "us_owner", Email: "owner@x.com"})
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", Email: "admin@x.com"})

	_, err := f.accounts.DeleteUser(ctx, callerFor(owner), owner.ID)
	require.ErrorIs(t, err, service.ErrUseAccountPortal)

	_, err = f.accounts.DeleteUser(ctx, callerFor(admin), owner.ID)
	require.ErrorIs(t, err, service.ErrCannotDeleteHolder)

	_, err = f.store.Users().Get(ctx, domain.DefaultTenantID, owner.ID)
	require.NoError(t, err)
	require.Zero(t, f.sessions.invalidate[owner.ID])

	// Self-hosted deployments have no account portal.
	f.accounts.Deployment.SelfHosted = true
	_, err = f.accounts.DeleteUser(ctx, callerFor(admin), owner.ID)
	require.NoError(t, err)
}

func TestRemoveAppRole(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	ctx := context.Background()

	withRole := seedUser(t, f.store, domain.User{ID: "us_1", Email: "one@x.com", Roles: map[string]string{"app1": "BASIC", "app2": "ADMIN"}})
	alsoRole := seedUser(t, f.store, domain.User{ID: "us_2", Email: "two@x.com", Roles: map[string]string{"app1": "POWER"}})
	without := seedUser(t, f.store, domain.User{ID: "us_3", Email: "three@x.com", Roles: map[string]string{"app2": "BASIC"}})

	n, err := f.accounts.RemoveAppRole(ctx, callerFor(withRole), "app1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, id := range []string{withRole.ID, alsoRole.ID} {
		u, err := f.store.Users().Get(ctx, domain.DefaultTenantID, id)
		require.NoError(t, err)
		require.NotContains(t, u.Roles, "app1")
		require.Equal(t, 1, f.cache.count(id))
	}

	one, err := f.store.Users().Get(ctx, domain.DefaultTenantID, withRole.ID)
	require.NoError(t, err)
	require.Equal(t, "ADMIN", one.Roles["app2"])

	untouched, err := f.store.Users().Get(ctx, domain.DefaultTenantID, without.ID)
	require.NoError(t, err)
	require.Equal(t, without.Rev, untouched.Rev)
	require.Zero(t, f.cache.count(without.ID))
}

func TestFindAndFetchNeverReturnPasswords(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	ctx := context.Background()
	hash, err := cryptox.HashPassword("secret")
	require.NoError(t, err)
	u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com", Password: hash})

	found, ok, err := f.accounts.Find(ctx, domain.DefaultTenantID, u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, found.Password)

	_, ok, err = f.accounts.Find(ctx, domain.DefaultTenantID, "us_missing")
	require.NoError(t, err)
	require.False(t, ok)

	all, err := f.accounts.Fetch(ctx, domain.DefaultTenantID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	body, err := json.Marshal(all)
	require.NoError(t, err)
	require.NotContains(t, string(body), "password")
}

func TestGetSelfOverlaysSessionFlags(t *testing.T) {
	f := newFixture(t, service.Deployment{})
	u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com"})

	caller := callerFor(u)
	caller.PlatformAccess = true

	self, err := f.accounts.GetSelf(context.Background(), caller)
	require.NoError(t, err)
	require.Equal(t, u.ID, self.ID)
	require.True(t, self.PlatformAccess)
	require.False(t, self.AccountPortalAccess)
}

func TestUpdateSelf(t *testing.T) {
	ctx := context.Background()

	t.Run("ignores identity fields", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com", Roles: map[string]string{"app1": "BASIC"}})

		body := json.RawMessage(`{"id":"us_evil","rev":"9-x","tenant_id":"other","email":"evil@x.com","admin":{"global":true},"roles":{"app1":"ADMIN"},"first_name":"Ann"}`)
		res, err := f.accounts.UpdateSelf(ctx, callerFor(u), body)
		require.NoError(t, err)
		require.Equal(t, u.ID, res.ID)

		stored, err := f.store.Users().Get(ctx, domain.DefaultTenantID, u.ID)
		require.NoError(t, err)
		require.Equal(t, "Ann", stored.FirstName)
		require.Equal(t, "a@x.com", stored.Email)
		require.False(t, stored.IsGlobalAdmin())
		require.Equal(t, "BASIC", stored.Roles["app1"])
		require.Equal(t, res.Rev, stored.Rev)
		require.Equal(t, 1, f.cache.count(u.ID))

		_, err = f.store.Users().Get(ctx, domain.DefaultTenantID, "us_evil")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.Empty(t, f.sessions.logoutKeep[u.ID])
	})

	t.Run("ignores case variants of permission fields", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com"})

		body := json.RawMessage(`{"Admin":{"global":true},"BUILDER":{"global":true},"Sso_id":"sso-1","Status":"inactive","Roles":{"app1":"ADMIN"},"Last_Name":"Lee"}`)
		_, err := f.accounts.UpdateSelf(ctx, callerFor(u), body)
		require.NoError(t, err)

		stored, err := f.store.Users().Get(ctx, domain.DefaultTenantID, u.ID)
		require.NoError(t, err)
		require.Nil(t, stored.Admin)
		require.Nil(t, stored.Builder)
		require.Empty(t, stored.SSOID)
		require.Equal(t, u.Status, stored.Status)
		require.Empty(t, stored.Roles["app1"])
		require.Equal(t, "Lee", stored.LastName)

		hasAdmin, err := f.store.Users().HasGlobalAdmin(ctx, domain.DefaultTenantID)
		require.NoError(t, err)
		require.False(t, hasAdmin)
	})

	t.Run("password logs out other sessions", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com"})

		_, err := f.accounts.UpdateSelf(ctx, callerFor(u), json.RawMessage(`{"password":"new-password"}`))
		require.NoError(t, err)
		require.Equal(t, []string{"se_current"}, f.sessions.logoutKeep[u.ID])

		stored, err := f.store.Users().Get(ctx, domain.DefaultTenantID, u.ID)
		require.NoError(t, err)
		require.NoError(t, cryptox.VerifyPassword("new-password", stored.Password))
	})

	t.Run("rejects short password", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com"})

		_, err := f.accounts.UpdateSelf(ctx, callerFor(u), json.RawMessage(`{"password":"short"}`))
		var fe validx.FieldErrors
		require.True(t, errors.As(err, &fe))
		require.Empty(t, f.sessions.logoutKeep[u.ID])
	})

	t.Run("rejects garbage", func(t *testing.T) {
		f := newFixture(t, service.Deployment{})
		u := seedUser(t, f.store, domain.User{ID: "us_1", Email: "a@x.com"})

		_, err := f.accounts.UpdateSelf(ctx, callerFor(u), json.RawMessage(`[1,2]`))
		require.ErrorIs(t, err, service.ErrInvalidRequest)
	})
}

func TestTenantUser(t *testing.T) {
	f := newFixture(t, service.Deployment{MultiTenancy: true})
	ctx := context.Background()
	seedUser(t, f.store, domain.User{ID: "us_1", TenantID: "acme", Email: "a@acme.com"})

	byID, err := f.accounts.TenantUser(ctx, "us_1")
	require.NoError(t, err)
	require.Equal(t, "acme", byID.TenantID)

	byEmail, err := f.accounts.TenantUser(ctx, "A@Acme.com")
	require.NoError(t, err)
	require.Equal(t, "us_1", byEmail.UserID)

	_, err = f.accounts.TenantUser(ctx, "us_missing")
	require.ErrorIs(t, err, service.ErrTenantUserNotFound)
}
