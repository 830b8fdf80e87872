// Package redis stores per-date engine cache documents in Redis.
//
// Each document is a JSON value under "cache:{collection}:{date}". The dates
// present in a collection are also kept in the sorted set
// "cache:{collection}:dates" so the latest one can be found without a scan.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tickbars/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// CacheConfig configures the Redis cache store.
type CacheConfig struct {
	Addr       string // Redis address, e.g. "localhost:6379"
	Password   string
	DB         int
	Collection string // e.g. "btcusd-volume-1000"

	MaxFailures  int           // consecutive failures before the breaker opens (default 5)
	ResetTimeout time.Duration // breaker cool-down (default 10s)
}

// CacheStore implements model.CacheStore on Redis.
type CacheStore struct {
	client     *goredis.Client
	collection string
	cb         *CircuitBreaker
}

var _ model.CacheStore = (*CacheStore)(nil)

// NewCacheStore connects to Redis and pings the server.
func NewCacheStore(cfg CacheConfig) (*CacheStore, error) {
	if cfg.Collection == "" {
		return nil, errors.New("redis cache: empty collection name")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 10 * time.Second
	}

	log.Printf("[redis] connected to %s (collection=%s)", cfg.Addr, cfg.Collection)
	return &CacheStore{
		client:     client,
		collection: cfg.Collection,
		cb:         NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (s *CacheStore) Client() *goredis.Client { return s.client }

// Breaker returns the circuit breaker guarding every call.
func (s *CacheStore) Breaker() *CircuitBreaker { return s.cb }

func (s *CacheStore) key(id string) string {
	return "cache:" + s.collection + ":" + id
}

func (s *CacheStore) indexKey() string {
	return "cache:" + s.collection + ":dates"
}

// Get decodes document id into dst.
func (s *CacheStore) Get(ctx context.Context, id string, dst any) (bool, error) {
	var data []byte
	err := s.cb.Do(func() error {
		var err error
		data, err = s.client.Get(ctx, s.key(id)).Bytes()
		if err == goredis.Nil {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis GET %s: %w", s.key(id), err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", id, err)
	}
	return true, nil
}

// Put encodes v and stores it as document id, indexing the date.
func (s *CacheStore) Put(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", id, err)
	}
	score, err := dateScore(id)
	if err != nil {
		return err
	}
	err = s.cb.Do(func() error {
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, s.key(id), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), &goredis.Z{Score: score, Member: id})
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("redis SET %s: %w", s.key(id), err)
	}
	return nil
}

// Exists reports whether document id is present.
func (s *CacheStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := s.cb.Do(func() error {
		var err error
		n, err = s.client.Exists(ctx, s.key(id)).Result()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %s: %w", s.key(id), err)
	}
	return n > 0, nil
}

// Latest returns the most recent document id in the collection.
func (s *CacheStore) Latest(ctx context.Context) (string, bool, error) {
	var ids []string
	err := s.cb.Do(func() error {
		var err error
		ids, err = s.client.ZRevRange(ctx, s.indexKey(), 0, 0).Result()
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("redis ZREVRANGE %s: %w", s.indexKey(), err)
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

// Close closes the Redis client.
func (s *CacheStore) Close() error {
	return s.client.Close()
}

func dateScore(id string) (float64, error) {
	d, err := time.Parse(model.DateLayout, id)
	if err != nil {
		return 0, fmt.Errorf("cache document id %q is not a date: %w", id, err)
	}
	return float64(d.Unix()), nil
}
