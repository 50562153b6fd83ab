package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradexpert/whatsnew-admin/internal/drafts"
)

// submitLockTTL bounds how long a crashed submit can keep a draft locked.
const submitLockTTL = 2 * time.Minute

// RedisRepo stores drafts as JSON under "<prefix><id>" with TTL = expiresAt - now.
// The in-flight flag is a separate "<prefix><id>:inflight" key taken with SETNX.
type RedisRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisRepo creates a Redis-based draft repository. Prefix may be empty.
func NewRedisRepo(client *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "draft:"
	}
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) key(id string) string     { return r.prefix + id }
func (r *RedisRepo) lockKey(id string) string { return r.prefix + id + ":inflight" }

func ttlUntil(t time.Time) time.Duration {
	exp := time.Until(t)
	if exp <= 0 {
		// ensure a minimal TTL so Redis won't keep expired drafts
		exp = time.Second
	}
	return exp
}

func (r *RedisRepo) Create(ctx context.Context, d *drafts.Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return r.client.Set(ctx, r.key(d.ID), b, ttlUntil(d.ExpiresAt)).Err()
}

func (r *RedisRepo) Get(ctx context.Context, id string) (*drafts.Draft, error) {
	d, err := r.load(ctx, r.client, id)
	if err != nil {
		return nil, err
	}
	n, err := r.client.Exists(ctx, r.lockKey(id)).Result()
	if err != nil {
		return nil, err
	}
	d.InFlight = n > 0
	return d, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisRepo) load(ctx context.Context, c getter, id string) (*drafts.Draft, error) {
	b, err := c.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, drafts.ErrNotFound
		}
		return nil, err
	}
	var d drafts.Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	if d.Expired(time.Now()) {
		_ = r.client.Del(ctx, r.key(id)).Err()
		return nil, drafts.ErrNotFound
	}
	return &d, nil
}

// Update uses WATCH on the draft and lock keys so that a concurrent edit or
// submit claim aborts the transaction.
func (r *RedisRepo) Update(ctx context.Context, d *drafts.Draft, prev int64) error {
	stored := *d
	stored.InFlight = false
	b, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	key, lock := r.key(d.ID), r.lockKey(d.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		if n, err := tx.Exists(ctx, lock).Result(); err != nil {
			return err
		} else if n > 0 {
			return drafts.ErrInFlight
		}
		if cur.Version != prev {
			return drafts.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttlUntil(d.ExpiresAt))
			return nil
		})
		return err
	}, key, lock)
	if errors.Is(err, redis.TxFailedErr) {
		return drafts.ErrConflict
	}
	return err
}

func (r *RedisRepo) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id), r.lockKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return drafts.ErrNotFound
	}
	return nil
}

func (r *RedisRepo) ClaimSubmit(ctx context.Context, id string) (*drafts.Draft, error) {
	d, err := r.load(ctx, r.client, id)
	if err != nil {
		return nil, err
	}
	ok, err := r.client.SetNX(ctx, r.lockKey(id), time.Now().UTC().Format(time.RFC3339Nano), submitLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, drafts.ErrInFlight
	}
	// re-read under the lock so the claimed snapshot is the last committed one
	d, err = r.load(ctx, r.client, id)
	if err != nil {
		_ = r.client.Del(ctx, r.lockKey(id)).Err()
		return nil, err
	}
	d.InFlight = true
	return d, nil
}

func (r *RedisRepo) ReleaseSubmit(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.lockKey(id)).Err()
}
