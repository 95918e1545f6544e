package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/arin/morph/internal/chat"
)

const keyPrefix = "morph:search:"

// Store is the key/value backend of the search cache.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
}

// RedisStore keeps JSON values in Redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedis builds a client from a redis:// URL or a bare host:port.
func DialRedis(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// GetJSON loads key into dst and reports whether it was present. Corrupt
// entries are deleted and reported as a miss.
func (s *RedisStore) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		_ = s.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON stores val under key for ttl.
func (s *RedisStore) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Cached puts a Store in front of a Searcher. Store failures fall through to
// a live search; they never fail the call.
type Cached struct {
	next  chat.Searcher
	store Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCached wraps next with the given store and entry lifetime.
func NewCached(next chat.Searcher, store Store, ttl time.Duration, log zerolog.Logger) *Cached {
	return &Cached{next: next, store: store, ttl: ttl, log: log}
}

// Search returns a cached response when one exists, otherwise searches and
// caches non-empty results.
func (c *Cached) Search(ctx context.Context, query string, maxResults int, depth chat.SearchDepth) (*chat.SearchResponse, error) {
	key := cacheKey(query, maxResults, depth)

	var hit chat.SearchResponse
	found, err := c.store.GetJSON(ctx, key, &hit)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Msg("search cache read failed")
	case found:
		c.log.Debug().Str("key", key).Msg("search cache hit")
		return &hit, nil
	}

	resp, err := c.next.Search(ctx, query, maxResults, depth)
	if err != nil {
		return nil, err
	}
	if resp != nil && len(resp.Results) > 0 {
		if err := c.store.SetJSON(ctx, key, resp, c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("search cache write failed")
		}
	}
	return resp, nil
}

// cacheKey normalizes case and whitespace so trivially different phrasings
// share an entry.
func cacheKey(query string, maxResults int, depth chat.SearchDepth) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", norm, depth, maxResults)))
	return keyPrefix + hex.EncodeToString(sum[:16])
}
