// Package lock provides a Redis-backed lock per fabric site so that two
// runs never reconcile the same site at the same time.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/newtcc/pkg/util"
)

// DefaultTTL bounds how long a crashed run can hold a site.
const DefaultTTL = 30 * time.Minute

// acquireLockScript is a Lua script for atomic lock acquisition.
// Returns 1 on success, 0 if already locked by another holder.
var acquireLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	if redis.call("HGET", key, "holder") == ARGV[1] then
		redis.call("EXPIRE", key, tonumber(ARGV[3]))
		return 1
	end
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseLockScript is a Lua script for atomic lock release with holder verification.
// Returns 1 on success, 0 if holder mismatch, -1 if key doesn't exist.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisLocker stores locks as NEWTCC_LOCK|<site> hashes with holder,
// acquired time and TTL.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker connects to the Redis at addr. A zero ttl selects
// DefaultTTL.
func NewRedisLocker(addr string, db int, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

// Key returns the Redis key guarding site.
func Key(site string) string {
	return "NEWTCC_LOCK|" + site
}

// Ping tests the connection
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Lock acquires site for holder. Re-acquiring by the same holder refreshes
// the TTL. Returns util.ErrLocked if another holder has it.
func (l *RedisLocker) Lock(ctx context.Context, site, holder string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	ttl := int(l.ttl.Seconds())

	result, err := acquireLockScript.Run(ctx, l.client, []string{Key(site)},
		holder, now, fmt.Sprintf("%d", ttl)).Int()
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", site, err)
	}
	if result == 0 {
		owner, _ := l.Holder(ctx, site)
		return fmt.Errorf("%s held by %s: %w", site, owner, util.ErrLocked)
	}
	util.WithSite(site).WithField("holder", holder).Debug("site lock acquired")
	return nil
}

// Unlock releases site. Returns an error if holder does not own the lock.
func (l *RedisLocker) Unlock(ctx context.Context, site, holder string) error {
	result, err := releaseLockScript.Run(ctx, l.client, []string{Key(site)}, holder).Int()
	if err != nil {
		return fmt.Errorf("releasing lock for %s: %w", site, err)
	}
	switch result {
	case 0:
		return fmt.Errorf("lock holder mismatch for %s", site)
	case -1:
		return nil // expired, treat as success
	}
	util.WithSite(site).WithField("holder", holder).Debug("site lock released")
	return nil
}

// Holder returns the current holder of site, or "" if it is free.
func (l *RedisLocker) Holder(ctx context.Context, site string) (string, error) {
	h, err := l.client.HGet(ctx, Key(site), "holder").Result()
	if err == redis.Nil {
		return "", nil
	}
	return h, err
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
