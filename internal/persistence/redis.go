package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/config"
)

// ErrRedisDisabled is returned by Ping when no client was built.
var ErrRedisDisabled = errors.New("redis client not configured")

// Redis wraps the go-redis client backing the reset-token cache. A nil Client
// means the cache is disabled and reset tokens are read from Postgres only.
type Redis struct {
	Client      *redis.Client
	pingTimeout time.Duration
}

// NewRedis connects to Redis using the provided configuration. An unreachable
// server is logged, not fatal; the cache falls through to Postgres.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if !cfg.Enabled || cfg.Addr == "" {
		logger.Info("redis disabled; reset tokens served from postgres")
		return &Redis{pingTimeout: cfg.PingTimeout()}
	}

	r := &Redis{
		Client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.PingTimeout(),
		}),
		pingTimeout: cfg.PingTimeout(),
	}

	if err := r.Ping(context.Background()); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("keyspace", cfg.ResetCacheKeyspace))
	}
	return r
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity within the configured timeout.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisDisabled
	}
	if r.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.pingTimeout)
		defer cancel()
	}
	return r.Client.Ping(ctx).Err()
}
