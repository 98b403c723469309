package kvstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/model"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps the same string-in/string-out contract on a Redis
// instance, for deployments that sit next to one instead of a REST KV.
type RedisStore struct {
	rdb *redis.Client
	log *logrus.Entry
}

// NewRedisStore connects and verifies the connection with a ping. The
// initial connect is retried with exponential backoff; request paths are
// never retried.
func NewRedisStore(ctx context.Context, cfg RedisConfig, log *logrus.Entry) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	err := backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warnf("redis: ping failed: %v", err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "could not reach redis at %s", cfg.Addr)
	}

	log.Infof("redis: connected to %s", cfg.Addr)
	return &RedisStore{rdb: rdb, log: log}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, &model.StorageError{Key: key, Err: err}
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return &model.StorageError{Key: key, Err: err}
	}
	return nil
}

// Close releases the underlying connection pool.
// Ping verifies the connection is still usable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
