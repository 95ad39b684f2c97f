package tracker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/infodancer/connlimitd/internal/config"
	"github.com/infodancer/connlimitd/internal/connlimit"
)

// Redis is a Tracker backed by a shared Redis instance, for
// deployments where several server instances serve the same principal
// population and a limit should apply to their combined connections.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis creates a Redis tracker from the given configuration.
func NewRedis(cfg config.RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return &Redis{rdb: rdb, prefix: cfg.KeyPrefix}
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) key(id connlimit.PrincipalID) string {
	return r.prefix + "live:" + string(id)
}

// Acquire increments the shared live count for the principal.
func (r *Redis) Acquire(ctx context.Context, id connlimit.PrincipalID) error {
	if err := r.rdb.Incr(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("incrementing live count for %q: %w", id, err)
	}
	return nil
}

// Release decrements the shared live count for the principal, deleting
// the key when it reaches zero so stale principals do not accumulate.
func (r *Redis) Release(ctx context.Context, id connlimit.PrincipalID) error {
	n, err := r.rdb.Decr(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("decrementing live count for %q: %w", id, err)
	}
	if n <= 0 {
		if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
			return fmt.Errorf("deleting live count for %q: %w", id, err)
		}
	}
	return nil
}

// Live returns the shared live count for the principal. A missing key
// means zero live connections.
func (r *Redis) Live(ctx context.Context, id connlimit.PrincipalID) (int64, error) {
	n, err := r.rdb.Get(ctx, r.key(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading live count for %q: %w", id, err)
	}
	return n, nil
}
