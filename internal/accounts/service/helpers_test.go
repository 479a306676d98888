package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqldb"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cryptox.SetPepper("service-test-pepper")
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *sqldb.Store {
	t.Helper()

	ctx := context.Background()
	st, err := sqldb.Open(ctx, sqldb.DriverSQLite, sqldb.SQLiteDSN(filepath.Join(t.TempDir(), "accounts.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// recordingCache reads straight from the store and counts invalidations.
type recordingCache struct {
	st store.Store

	mu          sync.Mutex
	invalidated map[string]int
	err         error
}

func newRecordingCache(st store.Store) *recordingCache {
	return &recordingCache{st: st, invalidated: map[string]int{}}
}

func (c *recordingCache) Get(ctx context.Context, tenantID, userID string) (domain.User, error) {
	u, err := c.st.Users().Get(ctx, tenantID, userID)
	if err != nil {
		return domain.User{}, err
	}
	return u.Sanitized(), nil
}

func (c *recordingCache) Invalidate(_ context.Context, _, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.invalidated[userID]++
	return nil
}

func (c *recordingCache) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated[userID]
}

type recordingSessions struct {
	mu         sync.Mutex
	invalidate map[string]int
	logoutKeep map[string][]string
}

func newRecordingSessions() *recordingSessions {
	return &recordingSessions{invalidate: map[string]int{}, logoutKeep: map[string][]string{}}
}

func (s *recordingSessions) InvalidateAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidate[userID]++
	return nil
}

func (s *recordingSessions) LogoutAllExcept(_ context.Context, userID, keep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutKeep[userID] = append(s.logoutKeep[userID], keep)
	return nil
}

type recordingMailer struct {
	sent []domain.InviteEmail
	err  error
}

func (m *recordingMailer) SendInvite(_ context.Context, e domain.InviteEmail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

type fakePortal map[string]domain.AccountHolder

func (p fakePortal) AccountHolder(_ context.Context, email string) (domain.AccountHolder, bool, error) {
	h, ok := p[email]
	return h, ok, nil
}

type recordingSync struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (s *recordingSync) UserChanged(_ context.Context, _, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return s.err
}

type fixture struct {
	store    *sqldb.Store
	cache    *recordingCache
	sessions *recordingSessions
	sync     *recordingSync
	accounts *service.AccountService
}

func newFixture(t *testing.T, dep service.Deployment) *fixture {
	t.Helper()
	st := newTestStore(t)
	f := &fixture{
		store:    st,
		cache:    newRecordingCache(st),
		sessions: newRecordingSessions(),
		sync:     &recordingSync{},
	}
	f.accounts = &service.AccountService{
		Store:      st,
		Cache:      f.cache,
		Sessions:   f.sessions,
		Sync:       f.sync,
		Deployment: dep,
	}
	return f
}

// seedUser writes a user directly, with its platform row.
func seedUser(t *testing.T, st store.Store, u domain.User) domain.User {
	t.Helper()
	ctx := context.Background()
	if u.TenantID == "" {
		u.TenantID = domain.DefaultTenantID
	}
	created, err := st.Users().Create(ctx, u)
	require.NoError(t, err)
	require.NoError(t, st.Platform().Upsert(ctx, domain.PlatformUser{UserID: u.ID, Email: u.Email, TenantID: u.TenantID}))
	return created
}

func callerFor(u domain.User) domain.Caller {
	return domain.Caller{UserID: u.ID, TenantID: u.TenantID, SessionID: "se_current"}
}
