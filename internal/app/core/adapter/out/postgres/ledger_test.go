package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/ledgertest"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-khata-ledger/pkg/postgres"
)

// 設定 KHATA_TEST_POSTGRES_DSN 才會對真實 PostgreSQL 執行
func TestPostgresLedger_Contract(t *testing.T) {
	dsn := os.Getenv("KHATA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KHATA_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.Config{DSN: dsn, ConnectRetries: 1})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	ledger := NewPostgresLedger(pool)
	if err := ledger.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ledgertest.Run(t, func(t *testing.T) usecase.Ledger {
		return ledgertest.Isolated(ledger)
	})
}
