package verification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Verification code hash: verify:code:{email} -> {code, expires_at, attempts}
const keyCode = "verify:code:%s"

var incrAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// RedisStore keeps codes in Redis hashes that expire on their own.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, email, code string, expiresAt time.Time) error {
	key := fmt.Sprintf(keyCode, email)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"code":       code,
			"expires_at": expiresAt.Unix(),
			"attempts":   0,
		})
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, email string) (*Entry, error) {
	fields, err := s.rdb.HGetAll(ctx, fmt.Sprintf(keyCode, email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["code"] == "" {
		return nil, ErrCodeNotFound
	}

	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	attempts, _ := strconv.Atoi(fields["attempts"])

	return &Entry{
		Code:      fields["code"],
		ExpiresAt: time.Unix(expires, 0),
		Attempts:  attempts,
	}, nil
}

// IncrementAttempts bumps the counter only while the hash still exists, so
// an expired code is never recreated without a TTL.
func (s *RedisStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrAttempts.Run(ctx, s.rdb, []string{fmt.Sprintf(keyCode, email)}).Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrCodeNotFound
	}
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(keyCode, email)).Err()
}
