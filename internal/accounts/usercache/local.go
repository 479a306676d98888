package usercache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/viccon/sturdyc"
)

const (
	localCapacity  = 10_000
	localShards    = 10
	localEvictPerc = 10
)

// Local is an in-process cache. It is the default when no redis URL is
// configured and is only correct for single-replica deployments.
type Local struct {
	client *sturdyc.Client[domain.User]
	load   Loader

	// epoch counts invalidations. A load that overlaps one may have read the
	// old document, so its entry is dropped again.
	epoch atomic.Uint64
}

func NewLocal(load Loader, ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Local{
		client: sturdyc.New[domain.User](localCapacity, localShards, ttl, localEvictPerc),
		load:   load,
	}
}

// Get returns the cached user, loading it on a miss. Concurrent misses for
// the same key share a single load.
func (c *Local) Get(ctx context.Context, tenantID, userID string) (domain.User, error) {
	k := key(tenantID, userID)
	loaded := false
	var before uint64

	u, err := c.client.GetOrFetch(ctx, k, func(ctx context.Context) (domain.User, error) {
		loaded = true
		before = c.epoch.Load()
		u, err := c.load(ctx, tenantID, userID)
		if err != nil {
			return domain.User{}, err
		}
		return u.Sanitized(), nil
	})
	if err != nil {
		return domain.User{}, err
	}

	if loaded && c.epoch.Load() != before {
		c.client.Delete(k)
	}
	return u, nil
}

func (c *Local) Invalidate(_ context.Context, tenantID, userID string) error {
	c.epoch.Add(1)
	c.client.Delete(key(tenantID, userID))
	return nil
}
