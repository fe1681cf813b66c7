package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const urlKeyPrefix = "kbchat:media:url:"

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

// GetURL returns a cached signed URL for a storage key. A miss is
// ("", false, nil).
func (s *Store) GetURL(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, urlKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetURL caches url for ttl, which must end before the signature does.
func (s *Store) SetURL(ctx context.Context, key, url string, ttl time.Duration) error {
	return s.rdb.Set(ctx, urlKeyPrefix+key, url, ttl).Err()
}

func (s *Store) DeleteURL(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, urlKeyPrefix+key).Err()
}
