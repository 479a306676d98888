package service_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newInviteService(t *testing.T) (*service.InviteService, *recordingMailer, *fixture) {
	t.Helper()
	f := newFixture(t, service.Deployment{MultiTenancy: true})
	mailer := &recordingMailer{}
	return &service.InviteService{
		Store:     f.store,
		Mailer:    mailer,
		Sync:      f.sync,
		AcceptURL: "https://builder.example.com/invite",
	}, mailer, f
}

func TestInviteAndAccept(t *testing.T) {
	svc, mailer, f := newInviteService(t)
	ctx := context.Background()
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", TenantID: "acme", Email: "admin@acme.com"})

	err := svc.Invite(ctx, callerFor(admin), service.InviteRequest{
		Email: "b@x.com",
		Info:  domain.InviteInfo{Roles: map[string]string{"app1": "BASIC"}, Builder: &domain.Capability{Global: true}},
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)

	email := mailer.sent[0]
	require.Equal(t, "b@x.com", email.To)
	require.Equal(t, "acme", email.TenantID)
	require.NotEmpty(t, email.Code)
	u, err := url.Parse(email.AcceptURL)
	require.NoError(t, err)
	require.Equal(t, email.Code, u.Query().Get("code"))

	created, err := svc.AcceptInvite(ctx, service.AcceptInviteRequest{
		InviteCode: email.Code,
		Password:   "password1",
		FirstName:  "Bea",
		LastName:   "Ex",
	})
	require.NoError(t, err)
	require.Equal(t, "b@x.com", created.Email)
	require.Equal(t, "acme", created.TenantID)
	require.Equal(t, "BASIC", created.Roles["app1"])
	require.True(t, created.IsGlobalBuilder())
	require.Empty(t, created.Password)

	stored, err := f.store.Users().Get(ctx, "acme", created.ID)
	require.NoError(t, err)
	require.NoError(t, cryptox.VerifyPassword("password1", stored.Password))

	// Codes are single use.
	_, err = svc.AcceptInvite(ctx, service.AcceptInviteRequest{InviteCode: email.Code, Password: "password1"})
	require.ErrorIs(t, err, service.ErrInvalidInvitation)
}

func TestInviteEmailInUseWritesNothing(t *testing.T) {
	svc, mailer, f := newInviteService(t)
	ctx := context.Background()
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", TenantID: "acme", Email: "admin@acme.com"})
	seedUser(t, f.store, domain.User{ID: "us_other", TenantID: "other", Email: "b@x.com"})

	err := svc.Invite(ctx, callerFor(admin), service.InviteRequest{Email: "B@x.com"})
	require.ErrorIs(t, err, service.ErrEmailInUse)
	require.Empty(t, mailer.sent)

	n, err := f.store.Invites().DeleteExpired(ctx, time.Now().Add(365*24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestInviteMailerFailureIsFatal(t *testing.T) {
	svc, mailer, f := newInviteService(t)
	mailer.err = errors.New("bus down")
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", TenantID: "acme", Email: "admin@acme.com"})

	err := svc.Invite(context.Background(), callerFor(admin), service.InviteRequest{Email: "b@x.com"})
	require.Error(t, err)
}

func TestAcceptInviteUnknownAndExpiredAreIndistinguishable(t *testing.T) {
	svc, _, f := newInviteService(t)
	ctx := context.Background()

	code := "expired-code"
	require.NoError(t, f.store.Invites().Create(ctx, domain.Invite{
		CodeHash:  cryptox.FingerprintToken(code),
		Email:     "late@x.com",
		TenantID:  "acme",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	_, errExpired := svc.AcceptInvite(ctx, service.AcceptInviteRequest{InviteCode: code, Password: "password1"})
	_, errUnknown := svc.AcceptInvite(ctx, service.AcceptInviteRequest{InviteCode: "never-issued", Password: "password1"})

	require.ErrorIs(t, errExpired, service.ErrInvalidInvitation)
	require.ErrorIs(t, errUnknown, service.ErrInvalidInvitation)
	require.Equal(t, errExpired.Error(), errUnknown.Error())

	_, err := f.store.Users().GetByEmail(ctx, "acme", "late@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAcceptInviteFailedCreateKeepsCode(t *testing.T) {
	svc, mailer, f := newInviteService(t)
	ctx := context.Background()
	admin := seedUser(t, f.store, domain.User{ID: "us_admin", TenantID: "acme", Email: "admin@acme.com"})

	require.NoError(t, svc.Invite(ctx, callerFor(admin), service.InviteRequest{Email: "b@x.com"}))
	code := mailer.sent[0].Code

	// Someone registers the email elsewhere before the invite is accepted.
	seedUser(t, f.store, domain.User{ID: "us_squat", TenantID: "other", Email: "b@x.com"})
	_, err := svc.AcceptInvite(ctx, service.AcceptInviteRequest{InviteCode: code, Password: "password1"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, f.store.Platform().Delete(ctx, "us_squat"))
	_, err = svc.AcceptInvite(ctx, service.AcceptInviteRequest{InviteCode: code, Password: "password1"})
	require.NoError(t, err)
}
