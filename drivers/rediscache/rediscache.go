// Package rediscache keeps document fingerprints in Redis, so a pool of
// indexing processes shares one view of what was already submitted. The
// cache is best-effort: a Redis error degrades to a miss, which only costs
// a redundant engine update.
package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artsince/neo4j/cache"
	"github.com/artsince/neo4j/x"
)

var log = x.Log("rediscache")

const timeout = 2 * time.Second

// Redis implements cache.Cache on a Redis instance. Fingerprints expire
// after ttl, zero means they are kept until removed.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis at addr and verifies the connection with a PING.
// Keys are stored under prefix to keep the namespace clean.
func New(addr, password string, db int, prefix string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	val, err := r.rdb.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		x.LogErr(log, err).WithField("key", key).Error("While reading fingerprint")
		return "", false
	}
	return val, true
}

func (r *Redis) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := r.rdb.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		x.LogErr(log, err).WithField("key", key).Error("While storing fingerprint")
	}
}

func (r *Redis) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		x.LogErr(log, err).WithField("key", key).Error("While removing fingerprint")
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

var _ cache.Cache = (*Redis)(nil)
