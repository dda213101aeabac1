package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config Redis 連線設定
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NewClient 建立 Redis client 並 Ping 確認可用
//
// 參數:
//
//	ctx: 上下文 (Ping 使用)
//	cfg: Config - 連線設定
//
// 回傳值:
//
//	*redis.Client: 連線成功的 client
//	error: Ping 失敗
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	log.Printf("[redis] connected to %s db=%d", cfg.Addr, cfg.DB)
	return rdb, nil
}
