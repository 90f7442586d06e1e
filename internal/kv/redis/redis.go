// Package redis implements kv.Store on top of a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskplane/internal/kv"

	goredis "github.com/go-redis/redis/v8"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// Store is a Redis-backed kv.Store. Records are hashes, queues are lists.
// LPOP is atomic on the server, so DequeueFront needs no client-side locking.
type Store struct {
	rdb *goredis.Client
}

// New parses a redis:// URL, connects and pings the server.
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

// Put implements kv.Store.Put with HSET.
func (s *Store) Put(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}

	if err := s.rdb.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// GetAll implements kv.Store.GetAll with HGETALL.
func (s *Store) GetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if fields == nil {
		fields = map[string]string{}
	}
	return fields, nil
}

// DequeueFront implements kv.Store.DequeueFront with LPOP.
func (s *Store) DequeueFront(ctx context.Context, queueKey string) (string, error) {
	v, err := s.rdb.LPop(ctx, queueKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", kv.ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("lpop %s: %w", queueKey, err)
	}
	return v, nil
}

// EnqueueBack implements kv.Store.EnqueueBack with RPUSH.
func (s *Store) EnqueueBack(ctx context.Context, queueKey string, value string) error {
	if err := s.rdb.RPush(ctx, queueKey, value).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", queueKey, err)
	}
	return nil
}

// ScanKeys implements kv.Store.ScanKeys. It uses SCAN rather than KEYS so a
// large keyspace does not block the server. SCAN may return a key more than
// once when the keyspace is rehashed mid-iteration, so keys are deduplicated.
func (s *Store) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	iter := s.rdb.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", prefix, err)
	}
	return keys, nil
}

// Len implements kv.Store.Len with LLEN.
func (s *Store) Len(ctx context.Context, queueKey string) (int64, error) {
	n, err := s.rdb.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", queueKey, err)
	}
	return n, nil
}

// Ping implements kv.Store.Ping.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close implements kv.Store.Close.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
