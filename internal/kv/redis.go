package kv

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the sets in a shared Redis
const DefaultKeyPrefix = "yt-relay:"

// Redis stores membership sets as Redis sets
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis wraps an existing client
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: DefaultKeyPrefix}
}

// Dial connects to addr and verifies the connection
func Dial(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedis(rdb), nil
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// Add puts member into key
func (r *Redis) Add(ctx context.Context, key string, member int64) error {
	return r.rdb.SAdd(ctx, r.key(key), member).Err()
}

// Remove drops member from key
func (r *Redis) Remove(ctx context.Context, key string, member int64) error {
	return r.rdb.SRem(ctx, r.key(key), member).Err()
}

// Contains reports whether member is in key
func (r *Redis) Contains(ctx context.Context, key string, member int64) (bool, error) {
	return r.rdb.SIsMember(ctx, r.key(key), member).Result()
}

// Members returns the members of key in ascending order. Entries that are
// not integers are skipped.
func (r *Redis) Members(ctx context.Context, key string) ([]int64, error) {
	raw, err := r.rdb.SMembers(ctx, r.key(key)).Result()
	if err != nil {
		return nil, err
	}
	return parseMembers(raw), nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func parseMembers(raw []string) []int64 {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
