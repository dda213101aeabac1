package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool 建立 pgx 連線池並確認可以連線
//
// 參數:
//
//	ctx: 上下文 (控制整個重試流程)
//	cfg: Config - 連線配置
//
// 回傳值:
//
//	*pgxpool.Pool: 連線池
//	error: DSN 格式錯誤或重試後仍無法連線
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	cfg = cfg.WithDefaults()
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	retryInterval := 2 * time.Second
	for i := 0; i < cfg.ConnectRetries; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		if i < cfg.ConnectRetries-1 {
			log.Printf("[postgres] ping failed (attempt %d/%d): %v, retrying in %v", i+1, cfg.ConnectRetries, err, retryInterval)
			select {
			case <-ctx.Done():
				pool.Close()
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", cfg.ConnectRetries, err)
	}

	log.Printf("[postgres] connected to %s/%s", poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Database)
	return pool, nil
}
