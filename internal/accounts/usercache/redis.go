package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

var errStaleFill = errors.New("usercache: invalidated during load")

// Redis shares the cache between replicas so an invalidation on one is seen
// by all.
type Redis struct {
	rdb  *redis.Client
	load Loader
	ttl  time.Duration
}

// NewRedis connects to redisURL and pings it before returning.
func NewRedis(ctx context.Context, redisURL string, load Loader, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, load: load, ttl: ttl}, nil
}

func (c *Redis) Get(ctx context.Context, tenantID, userID string) (domain.User, error) {
	log := slogx.FromContext(ctx)
	k := key(tenantID, userID)

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	raw, err := c.rdb.Get(opCtx, k).Bytes()
	cancel()

	switch {
	case err == nil:
		var u domain.User
		if err := json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
		log.Warn("dropping undecodable cached user", slog.String("key", k))
	case errors.Is(err, redis.Nil):
	default:
		// Cache outage degrades to direct loads.
		log.Warn("redis get failed", slog.String("key", k), slog.Any("error", err))
	}

	before, genErr := c.generation(ctx, k)
	if genErr != nil {
		log.Warn("redis generation read failed", slog.String("key", k), slog.Any("error", genErr))
	}

	u, err := c.load(ctx, tenantID, userID)
	if err != nil {
		return domain.User{}, err
	}
	u = u.Sanitized()

	// Without the counter a fill could not be checked against invalidations.
	if genErr == nil {
		c.fill(ctx, k, before, u)
	}
	return u, nil
}

// generation reads the invalidation counter of k. A missing counter is zero.
func (c *Redis) generation(ctx context.Context, k string) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	n, err := c.rdb.Get(opCtx, genKey(k)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// fill stores u under k unless k was invalidated since before was read. The
// counter is watched so an invalidation racing the write aborts it.
func (c *Redis) fill(ctx context.Context, k string, before int64, u domain.User) {
	log := slogx.FromContext(ctx)

	body, err := json.Marshal(u)
	if err != nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	err = c.rdb.Watch(opCtx, func(tx *redis.Tx) error {
		cur, err := tx.Get(opCtx, genKey(k)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != before {
			return errStaleFill
		}
		_, err = tx.TxPipelined(opCtx, func(p redis.Pipeliner) error {
			p.Set(opCtx, k, body, c.ttl)
			return nil
		})
		return err
	}, genKey(k))

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		log.Debug("skipping cache fill after invalidation", slog.String("key", k))
	default:
		log.Warn("redis set failed", slog.String("key", k), slog.Any("error", err))
	}
}

// Invalidate drops the cached user and bumps its invalidation counter. A
// failure here returns an error since a stale entry would outlive the write.
func (c *Redis) Invalidate(ctx context.Context, tenantID, userID string) error {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	k := key(tenantID, userID)
	_, err := c.rdb.TxPipelined(opCtx, func(p redis.Pipeliner) error {
		p.Incr(opCtx, genKey(k))
		p.Expire(opCtx, genKey(k), c.ttl)
		p.Del(opCtx, k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *Redis) Close() error { return c.rdb.Close() }

func genKey(k string) string { return k + ":gen" }
