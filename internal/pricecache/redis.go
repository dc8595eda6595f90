package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stockdash/internal/domain"
)

var _ Cache = (*Redis)(nil)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis is a Cache shared between server instances. Values are JSON-encoded
// series stored without TTL.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", opts.Addr, err)
	}
	return &Redis{rdb: rdb, prefix: opts.KeyPrefix}, nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (domain.PriceSeries, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var s domain.PriceSeries
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return s, true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, series domain.PriceSeries) error {
	data, err := json.Marshal(series)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key, data, 0).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
