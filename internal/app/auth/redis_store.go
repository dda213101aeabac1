package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	codeKeyPrefix     = "otp:code:"
	attemptsKeyPrefix = "otp:attempts:"
)

// RedisCodeStore 以 Redis 保存驗證碼，多個 API 程序可共用
// 兩個 key 的 TTL 相同，過期時一起消失
type RedisCodeStore struct {
	rdb *redis.Client
}

func NewRedisCodeStore(rdb *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{rdb: rdb}
}

func codeKey(mobile string) string     { return codeKeyPrefix + mobile }
func attemptsKey(mobile string) string { return attemptsKeyPrefix + mobile }

func (s *RedisCodeStore) Save(ctx context.Context, mobile, hash string, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, codeKey(mobile), hash, ttl)
		pipe.Set(ctx, attemptsKey(mobile), 0, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Get(ctx context.Context, mobile string) (string, error) {
	hash, err := s.rdb.Get(ctx, codeKey(mobile)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeExpired
	}
	if err != nil {
		return "", fmt.Errorf("get otp challenge: %w", err)
	}
	return hash, nil
}

// IncrAttempts INCR 不會延長 TTL；key 已過期時視為沒有進行中的驗證
func (s *RedisCodeStore) IncrAttempts(ctx context.Context, mobile string) (int, error) {
	exists, err := s.rdb.Exists(ctx, attemptsKey(mobile)).Result()
	if err != nil {
		return 0, fmt.Errorf("check otp attempts: %w", err)
	}
	if exists == 0 {
		return 0, ErrCodeExpired
	}
	n, err := s.rdb.Incr(ctx, attemptsKey(mobile)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr otp attempts: %w", err)
	}
	return int(n), nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, mobile string) error {
	if err := s.rdb.Del(ctx, codeKey(mobile), attemptsKey(mobile)).Err(); err != nil {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}

var _ CodeStore = (*RedisCodeStore)(nil)
