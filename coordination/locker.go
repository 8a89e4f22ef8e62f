package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is a general SETNX+Lua-renew distributed lock, adapted from
// control_plane/store/coordinator.go's Coordinator interface and
// control_plane/store/redis.go's AcquireLock/RenewLock/ReleaseLock Lua
// scripts. This module has no leader-election concept of its own; Locker
// exists to back the swarm layer's admission gate (swarm.AdmissionGate),
// which genuinely needs a cross-process mutual-exclusion primitive over
// shared Redis (see DESIGN.md).
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
	Owner(ctx context.Context, key string) (string, error)
}

const renewScript = `
local val = redis.call("get", KEYS[1])
if not val then
	return -1
end
if val == ARGV[1] then
	return redis.call("pexpire", KEYS[1], tonumber(ARGV[2]))
else
	return -2
end
`

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLocker is the Redis-backed Locker implementation.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, wrapf(KindConnection, err, "acquire lock %s", key)
	}
	return ok, nil
}

func (l *RedisLocker) Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	res, err := l.client.Eval(ctx, renewScript, []string{key}, owner, int64(ttl/time.Millisecond)).Result()
	if err != nil {
		return false, wrapf(KindConnection, err, "renew lock %s", key)
	}
	val, ok := res.(int64)
	if !ok {
		return false, errors.New("unexpected renew script return type")
	}
	return val == 1, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, owner string) error {
	_, err := l.client.Eval(ctx, releaseScript, []string{key}, owner).Result()
	if err != nil {
		return wrapf(KindConnection, err, "release lock %s", key)
	}
	return nil
}

func (l *RedisLocker) Owner(ctx context.Context, key string) (string, error) {
	val, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", wrapf(KindConnection, err, "get lock owner %s", key)
	}
	return val, nil
}

// ScanKeys lists keys matching a pattern, used by swarm.SlotJanitor to
// find stale admission-gate locks. Grounded on
// control_plane/store/redis.go's ScanLocks.
func (l *RedisLocker) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := l.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, wrapf(KindConnection, err, "scan keys %s", pattern)
	}
	return keys, nil
}

// TTL reports the remaining time-to-live on a lock key. A lock acquired
// via Acquire always carries a TTL; a negative-but-present result here
// indicates a key that was somehow created without one, the defect
// swarm.SlotJanitor watches for.
func (l *RedisLocker) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrapf(KindConnection, err, "ttl lock %s", key)
	}
	return d, nil
}

// ForceDelete unconditionally removes a lock key, bypassing the
// owner-match check Release performs. Used only by the janitor's
// safety-net reclaim path.
func (l *RedisLocker) ForceDelete(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return wrapf(KindConnection, err, "force delete lock %s", key)
	}
	return nil
}
