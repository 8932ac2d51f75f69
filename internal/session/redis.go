package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lukasbauer/sahayak/internal/dialogue"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sahayak:session:"

// RedisStore keeps sessions as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 keeps sessions forever
}

// NewRedisClient opens a Redis client and checks connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (dialogue.State, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return dialogue.State{}, false, nil
	}
	if err != nil {
		return dialogue.State{}, false, fmt.Errorf("redis get session: %w", err)
	}
	state, err := decode(data)
	if err != nil {
		return dialogue.State{}, false, err
	}
	return state, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, state dialogue.State) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
