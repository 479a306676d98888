package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.Invites().Create(ctx, domain.Invite{CodeHash: "old", Email: "a@x.com", TenantID: "t", ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, st.Invites().Create(ctx, domain.Invite{CodeHash: "live", Email: "b@x.com", TenantID: "t", ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
	require.NoError(t, st.Sessions().Create(ctx, domain.Session{ID: "se_old", UserID: "us_1", TenantID: "t", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, st.Sessions().Create(ctx, domain.Session{ID: "se_live", UserID: "us_1", TenantID: "t", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	hk := service.NewHousekeepingService(st, slogx.Discard(), time.Hour)
	hk.Cleanup(ctx)

	_, err := st.Sessions().Get(ctx, "se_old")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Sessions().Get(ctx, "se_live")
	require.NoError(t, err)

	_, err = st.Invites().Consume(ctx, "live", now)
	require.NoError(t, err)
	n, err := st.Invites().DeleteExpired(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestHousekeepingStartStop(t *testing.T) {
	hk := service.NewHousekeepingService(newTestStore(t), slogx.Discard(), 0)
	require.Equal(t, time.Hour, hk.Interval)
	hk.Start()
	hk.Stop()
}
