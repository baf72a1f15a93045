package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// RedisStore implements Store on go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying client so the event bus can share the pool.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNil
	}
	return v, err
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNil
	}
	return v, err
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *RedisStore) HLen(ctx context.Context, key string) (int64, error) {
	return s.client.HLen(ctx, key).Result()
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.SRem(ctx, key, toArgs(members)...).Err()
}

// Atomic runs fn against a TxPipeline and executes it as MULTI/EXEC.
func (s *RedisStore) Atomic(ctx context.Context, fn func(b Batch) error) error {
	pipe := s.client.TxPipeline()
	b := &redisBatch{ctx: ctx, pipe: pipe}

	if err := fn(b); err != nil {
		pipe.Discard()
		return err
	}
	if b.queued == 0 {
		return nil
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// redisBatch queues commands on a transactional pipeline.
type redisBatch struct {
	ctx    context.Context
	pipe   redis.Pipeliner
	queued int
}

func (b *redisBatch) Set(key, value string, ttl time.Duration) {
	b.pipe.Set(b.ctx, key, value, ttl)
	b.queued++
}

func (b *redisBatch) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.pipe.Del(b.ctx, keys...)
	b.queued++
}

func (b *redisBatch) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	b.pipe.SAdd(b.ctx, key, toArgs(members)...)
	b.queued++
}

func (b *redisBatch) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	b.pipe.SRem(b.ctx, key, toArgs(members)...)
	b.queued++
}

func (b *redisBatch) HSet(key, field, value string) {
	b.pipe.HSet(b.ctx, key, field, value)
	b.queued++
}

func (b *redisBatch) HDel(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	b.pipe.HDel(b.ctx, key, fields...)
	b.queued++
}

func toArgs(ss []string) []interface{} {
	args := make([]interface{}, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
