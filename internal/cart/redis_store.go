package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Server cart: cart:{id} -> JSON cart
const keyCart = "cart:%s"

// Update gives up after this many writes lost to concurrent changes.
const maxUpdateRetries = 10

var (
	ErrNotFound = errors.New("cart not found")
	ErrConflict = errors.New("cart changed concurrently")
)

// RedisStore keeps carts as JSON documents with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Create stores a new empty cart and returns it.
func (s *RedisStore) Create(ctx context.Context) (*Cart, error) {
	c := &Cart{ID: uuid.NewString(), Lines: []Line{}, UpdatedAt: time.Now().UTC()}
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a cart. Missing or expired carts return ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*Cart, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(keyCart, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeCart(id, raw)
}

// Update applies fn to the stored cart and writes the result back with a
// fresh TTL. The key is watched, so a write that raced with another change
// is retried from a fresh read and fn may run more than once. An error from
// fn aborts the update and is returned as is.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Cart) error) (*Cart, error) {
	key := fmt.Sprintf(keyCart, id)

	var updated *Cart
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		c, err := decodeCart(id, raw)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}

		out, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConflict
}

func decodeCart(id string, raw []byte) (*Cart, error) {
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", id, err)
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return &c, nil
}

// Save writes the cart and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, c *Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, fmt.Sprintf(keyCart, c.ID), raw, s.ttl).Err()
}

// Delete removes the cart.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(keyCart, id)).Err()
}
