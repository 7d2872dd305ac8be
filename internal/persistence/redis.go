package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/locate-service/internal/config"
)

// Redis wraps the go-redis client plus the coordination helpers the engine
// needs: the sweep lock, the same-day trigger fast path, and the per-channel
// rate counters.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// AcquireSweepLock takes the named lock with a TTL so only one scanner
// instance sweeps at a time. Returns false when another holder exists.
// When Redis is unreachable the lock is granted: a missed lock only risks
// a redundant sweep, which the persistent markers already make harmless.
func (r *Redis) AcquireSweepLock(ctx context.Context, name string, ttl time.Duration) bool {
	if r == nil || r.Client == nil {
		return true
	}
	ok, err := r.Client.SetNX(ctx, "sweeplock:"+name, "1", ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// ReleaseSweepLock drops the named lock.
func (r *Redis) ReleaseSweepLock(ctx context.Context, name string) {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Del(ctx, "sweeplock:"+name).Err()
}

// SeenToday reports whether the (org, ticket, alert type, day) marker is
// cached. A miss is not authoritative; the caller still consults Postgres.
func (r *Redis) SeenToday(ctx context.Context, orgID, ticketID, alertType string, day time.Time) bool {
	if r == nil || r.Client == nil {
		return false
	}
	key := markerKey(orgID, ticketID, alertType, day)
	n, err := r.Client.Exists(ctx, key).Result()
	return err == nil && n > 0
}

// CacheSeen records the same-day marker with an expiry past midnight. Safe
// to lose: Postgres rows remain the authority.
func (r *Redis) CacheSeen(ctx context.Context, orgID, ticketID, alertType string, day time.Time) {
	if r == nil || r.Client == nil {
		return
	}
	key := markerKey(orgID, ticketID, alertType, day)
	_ = r.Client.Set(ctx, key, "1", 36*time.Hour).Err()
}

// IncrChannelWindow bumps the per-channel send counter for the current
// window and returns the new count, for gateway rate limiting.
func (r *Redis) IncrChannelWindow(ctx context.Context, channel string, window time.Duration) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, nil
	}
	key := fmt.Sprintf("chanrate:%s:%d", channel, time.Now().UnixNano()/int64(window))
	pipe := r.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func markerKey(orgID, ticketID, alertType string, day time.Time) string {
	return fmt.Sprintf("alertmark:%s:%s:%s:%s", orgID, ticketID, alertType, day.Format("2006-01-02"))
}
