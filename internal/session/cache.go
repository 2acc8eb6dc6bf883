package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/alecgard/dktadmin/internal/auth"
)

// ProfileCache holds restored user profiles keyed by token. Implementations
// never store the raw token. A cache failure is treated as a miss.
type ProfileCache interface {
	Get(ctx context.Context, token string) (*auth.User, bool)
	Set(ctx context.Context, token string, u *auth.User)
	Delete(ctx context.Context, token string)
}

// HashToken returns the hex BLAKE2b-256 digest used as the cache key.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryCache is a process-local ProfileCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type memoryEntry struct {
	user     auth.User
	cachedAt time.Time
}

// NewMemoryCache creates a cache keeping at most maxSize profiles for ttl.
func NewMemoryCache(ttl time.Duration, maxSize int) *MemoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, token string) (*auth.User, bool) {
	key := HashToken(token)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.cachedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	u := e.user
	return &u, true
}

func (c *MemoryCache) Set(_ context.Context, token string, u *auth.User) {
	if u == nil {
		return
	}
	key := HashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		// Map iteration order is random; drop one arbitrary entry.
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = memoryEntry{user: *u, cachedAt: c.now()}
}

func (c *MemoryCache) Delete(_ context.Context, token string) {
	c.mu.Lock()
	delete(c.entries, HashToken(token))
	c.mu.Unlock()
}

// Len returns the number of cached profiles.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

const redisKeyPrefix = "dktadmin:profile:"

// RedisCache shares profiles between console replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, token string) (*auth.User, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+HashToken(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("profile cache get failed", "error", err)
		}
		return nil, false
	}
	var u auth.User
	if err := json.Unmarshal(data, &u); err != nil {
		c.logger.Warn("profile cache entry unreadable", "error", err)
		return nil, false
	}
	return &u, true
}

func (c *RedisCache) Set(ctx context.Context, token string, u *auth.User) {
	if u == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		c.logger.Warn("profile cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+HashToken(token), data, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache set failed", "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, token string) {
	if err := c.client.Del(ctx, redisKeyPrefix+HashToken(token)).Err(); err != nil {
		c.logger.Warn("profile cache delete failed", "error", err)
	}
}
