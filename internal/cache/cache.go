// Package cache keeps the last computed schedule of each account in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"governance-unlocks/internal/governance"

	"github.com/redis/go-redis/v9"
)

const namespace = "govunlocks:schedule"

// ErrMiss is returned when no entry is cached for an account.
var ErrMiss = errors.New("cache miss")

// Entry is a schedule computed for an account at a given head.
type Entry struct {
	Account    string                 `json:"account"`
	Head       governance.BlockNumber `json:"head"`
	Schedule   governance.Schedule    `json:"schedule"`
	ComputedAt time.Time              `json:"computed_at"`
}

// Cache stores entries with a TTL. A nil Cache never hits and drops writes.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New returns nil when addr is empty.
func New(addr, password string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	}), ttl)
}

func NewWithClient(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key returns the redis key holding account's entry.
func Key(account string) string {
	return namespace + ":" + account
}

func (c *Cache) Get(ctx context.Context, account string) (*Entry, error) {
	if c == nil {
		return nil, ErrMiss
	}
	raw, err := c.client.Get(ctx, Key(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", account, err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// unreadable entries are treated as absent and overwritten on the next Set
		return nil, ErrMiss
	}
	return &e, nil
}

func (c *Cache) Set(ctx context.Context, e Entry) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", e.Account, err)
	}
	if err := c.client.Set(ctx, Key(e.Account), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", e.Account, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, account string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, Key(account)).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
