package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	grpc_adapter "github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/reminder"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-khata-ledger/internal/config"
	"github.com/JoeShih716/go-khata-ledger/pkg/mysql"
	"github.com/JoeShih716/go-khata-ledger/pkg/postgres"
	"github.com/JoeShih716/go-khata-ledger/pkg/redis"
	"github.com/JoeShih716/go-khata-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "", "設定檔路徑 (預設 $KHATA_CONFIG 或 config/config.yaml)")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	// 2. 初始化帳本儲存
	ledger, closeLedger := openLedger(ctx, cfg)
	defer closeLedger()

	// 3. 提醒文字產生器：有 API key 才呼叫外部服務
	var generator usecase.ReminderGenerator = reminder.NewTemplateGenerator()
	if cfg.Reminder.Gemini.APIKey != "" {
		gemini, err := reminder.NewGeminiGenerator(ctx, cfg.Reminder.Gemini)
		if err != nil {
			log.Fatalf("Failed to init reminder generator: %v", err)
		}
		generator = gemini
		log.Printf("Reminder generator: gemini (%s)", cfg.Reminder.Gemini.Model)
	} else {
		log.Println("Reminder generator: offline template")
	}

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(ledger, generator, usecase.Options{
		BusinessName:    cfg.Reminder.BusinessName,
		MaxAttempts:     cfg.Ledger.MaxAttempts,
		RetryBackoff:    cfg.Ledger.RetryBackoff,
		ReminderTimeout: cfg.Reminder.Timeout,
	})

	// 5. 身分驗證
	tokens, err := auth.NewTokens(cfg.Auth.Tokens)
	if err != nil {
		log.Fatalf("Failed to init tokens: %v", err)
	}
	var codeStore auth.CodeStore = auth.NewMemoryCodeStore()
	if cfg.Auth.CodeStore == config.CodeStoreRedis {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		codeStore = auth.NewRedisCodeStore(rdb)
	}
	phoneAuth := auth.NewPhoneAuth(codeStore, auth.LogSender{}, tokens, cfg.Auth.OTP)

	// 6. 啟動 gRPC Server
	grpcServer := grpc_adapter.NewServer(
		grpc_adapter.NewGrpcServer(coreUseCase),
		grpc_adapter.NewAuthServer(phoneAuth),
		tokens,
		grpc_adapter.ServerConfig{RequestTimeout: cfg.Server.RequestTimeout, Verbose: cfg.Server.Verbose},
	)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	go func() {
		log.Printf("Starting gRPC server on %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("failed to serve gRPC: %v", err)
		}
	}()

	// 7. 啟動 HTTP Server
	handler := http_adapter.NewHandler(coreUseCase, phoneAuth, tokens)
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: handler.Router(http_adapter.RouterConfig{RequestTimeout: cfg.Server.RequestTimeout, Verbose: cfg.Server.Verbose}),
	}
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to serve HTTP: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	log.Println("Server exited")
}

// openLedger 依設定建立帳本儲存，回傳對應的關閉函式
func openLedger(ctx context.Context, cfg config.Config) (usecase.Ledger, func()) {
	switch cfg.Ledger.Driver {
	case config.DriverMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		log.Println("Connected to MySQL successfully")
		ledger := mysql_adapter.NewMySQLLedger(dbClient)
		if cfg.Ledger.Migrate {
			if err := ledger.Migrate(ctx); err != nil {
				log.Fatalf("Failed to migrate MySQL: %v", err)
			}
		}
		return ledger, func() { dbClient.Close() }

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		log.Println("Connected to PostgreSQL successfully")
		ledger := postgres_adapter.NewPostgresLedger(pool)
		if cfg.Ledger.Migrate {
			if err := ledger.Migrate(ctx); err != nil {
				log.Fatalf("Failed to migrate PostgreSQL: %v", err)
			}
		}
		return ledger, pool.Close

	default:
		if cfg.Ledger.WALPath == "" {
			log.Println("Memory ledger without WAL: data is lost on restart")
			ledger, err := memory_adapter.NewMutexLedger(nil)
			if err != nil {
				log.Fatalf("Failed to init MutexLedger: %v", err)
			}
			return ledger, func() {}
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.WALPath), 0o755); err != nil {
			log.Fatalf("Failed to create WAL directory: %v", err)
		}
		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			log.Fatalf("Failed to init WAL: %v", err)
		}
		ledger, err := memory_adapter.NewMutexLedger(walFile)
		if err != nil {
			log.Fatalf("Failed to init MutexLedger: %v", err)
		}
		return ledger, func() { walFile.Close() }
	}
}
