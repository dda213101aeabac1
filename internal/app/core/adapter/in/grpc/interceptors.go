package grpc

import (
	"context"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// TokenVerifier 驗證 Bearer token 並回傳 ownerID
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ServerConfig gRPC server 設定
type ServerConfig struct {
	// RequestTimeout: 每個請求的處理上限，0 表示不限制
	RequestTimeout time.Duration
	// Verbose: 成功的請求也寫 log
	Verbose bool
}

// NewServer 建立掛好 interceptor 並註冊兩個服務的 gRPC server
//
// 參數:
//
//	ledger: LedgerService 實作 (需要 token)
//	authSrv: AuthService 實作 (不需要 token)
//	tokens: token 驗證器
//	cfg: server 設定
//
// 回傳:
//
//	*grpc.Server: 尚未 Serve 的 server
func NewServer(ledger LedgerServiceServer, authSrv AuthServiceServer, tokens TokenVerifier, cfg ServerConfig, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		loggingInterceptor(cfg.Verbose),
		errorInterceptor(),
		timeoutInterceptor(cfg.RequestTimeout),
		authInterceptor(tokens),
	))
	s := grpc.NewServer(opts...)
	s.RegisterService(&LedgerServiceDesc, ledger)
	s.RegisterService(&AuthServiceDesc, authSrv)

	hs := health.NewServer()
	hs.SetServingStatus(LedgerServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AuthServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// authInterceptor LedgerService 的方法必須帶有效的 Bearer token
// 驗證成功後把 ownerID 放進 context，下游一律從 context 取 owner
func authInterceptor(tokens TokenVerifier) grpc.UnaryServerInterceptor {
	prefix := "/" + LedgerServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, domain.ErrUnauthenticated
		}
		token, ok := auth.BearerToken(values[0])
		if !ok {
			return nil, domain.ErrUnauthenticated
		}
		ownerID, err := tokens.Verify(token)
		if err != nil {
			return nil, err
		}
		return handler(auth.WithOwner(ctx, ownerID), req)
	}
}

func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// errorInterceptor 將 handler 回傳的錯誤統一轉為 status
func errorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, toStatus(info.FullMethod, err)
		}
		return resp, nil
	}
}

func loggingInterceptor(verbose bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Printf("[grpc] %s failed in %v: %v", info.FullMethod, time.Since(start), err)
		} else if verbose {
			log.Printf("[grpc] %s ok in %v", info.FullMethod, time.Since(start))
		}
		return resp, err
	}
}
