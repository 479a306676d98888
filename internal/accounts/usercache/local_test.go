package usercache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/usercache"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	users map[string]domain.User
}

func (l *countingLoader) Load(_ context.Context, tenantID, userID string) (domain.User, error) {
	l.calls.Add(1)
	u, ok := l.users[tenantID+"/"+userID]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func TestLocalReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{users: map[string]domain.User{
		"default/us_1": {ID: "us_1", TenantID: "default", Email: "a@x.com", Password: "secret-hash"},
	}}
	c := usercache.NewLocal(loader.Load, time.Minute)

	u, err := c.Get(ctx, "default", "us_1")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", u.Email)
	require.Empty(t, u.Password)

	_, err = c.Get(ctx, "default", "us_1")
	require.NoError(t, err)
	require.EqualValues(t, 1, loader.calls.Load())

	require.NoError(t, c.Invalidate(ctx, "default", "us_1"))
	_, err = c.Get(ctx, "default", "us_1")
	require.NoError(t, err)
	require.EqualValues(t, 2, loader.calls.Load())
}

func TestLocalPropagatesLoadErrors(t *testing.T) {
	loader := &countingLoader{users: map[string]domain.User{}}
	c := usercache.NewLocal(loader.Load, time.Minute)

	_, err := c.Get(context.Background(), "default", "us_missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

// gatedLoader blocks its first load until released.
type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	user    domain.User
}

func newGatedLoader(u domain.User) *gatedLoader {
	return &gatedLoader{started: make(chan struct{}), release: make(chan struct{}), user: u}
}

func (l *gatedLoader) Load(context.Context, string, string) (domain.User, error) {
	if l.calls.Add(1) == 1 {
		close(l.started)
		<-l.release
	}
	return l.user, nil
}

type userCache interface {
	Get(ctx context.Context, tenantID, userID string) (domain.User, error)
	Invalidate(ctx context.Context, tenantID, userID string) error
}

// assertInvalidateDuringLoad checks that a load overlapping an invalidation
// does not leave its result cached.
func assertInvalidateDuringLoad(t *testing.T, c userCache, loader *gatedLoader) {
	t.Helper()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "default", "us_1")
		done <- err
	}()

	<-loader.started
	require.NoError(t, c.Invalidate(ctx, "default", "us_1"))
	close(loader.release)
	require.NoError(t, <-done)

	_, err := c.Get(ctx, "default", "us_1")
	require.NoError(t, err)
	require.EqualValues(t, 2, loader.calls.Load())
}

func TestLocalInvalidateDuringLoad(t *testing.T) {
	loader := newGatedLoader(domain.User{ID: "us_1", TenantID: "default", Email: "a@x.com"})
	c := usercache.NewLocal(loader.Load, time.Minute)

	assertInvalidateDuringLoad(t, c, loader)
}
