package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskdesk/backend/internal/config"
)

const keyPrefix = "revoked:"

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// consecutive failures before redis is skipped for BreakerCooldown
	BreakerFailures int
	BreakerCooldown time.Duration
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func RedisConfigFrom(cfg *config.Config) *RedisConfig {
	return &RedisConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,

		BreakerFailures: cfg.Redis.BreakerFailures,
		BreakerCooldown: cfg.Redis.BreakerCooldown,
	}
}

// RedisDenylist stores one key per revoked token, expiring together with the
// token so the set never outgrows the live tokens. Calls go through a
// breaker so an unreachable redis fails requests fast instead of holding
// them for the full timeout.
type RedisDenylist struct {
	client  *redis.Client
	breaker *breaker
	timeout time.Duration
	now     func() time.Time
}

func NewRedisDenylist(cfg *RedisConfig) *RedisDenylist {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &RedisDenylist{
		client:  rdb,
		breaker: newBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.breaker.do(func() error {
		return d.client.Set(ctx, keyPrefix+jti, "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var n int64
	err := d.breaker.do(func() error {
		var err error
		n, err = d.client.Exists(ctx, keyPrefix+jti).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDenylist) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return d.client.Ping(ctx).Err()
}

func (d *RedisDenylist) Close() error {
	return d.client.Close()
}
