package http

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

// IdempotencyHeader 新增交易時可帶入交易 UUID，重送時不會重複入帳
const IdempotencyHeader = "Idempotency-Key"

// maxBodyBytes 請求 body 上限
const maxBodyBytes = 1 << 20

// TokenVerifier 驗證 Bearer token 並回傳 ownerID
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RouterConfig HTTP 路由設定
type RouterConfig struct {
	RequestTimeout time.Duration
	Verbose        bool
}

// Handler HTTP/JSON 入口，與 gRPC 共用同一個 CoreUseCase
type Handler struct {
	core   *usecase.CoreUseCase
	phone  *auth.PhoneAuth
	tokens TokenVerifier
}

func NewHandler(core *usecase.CoreUseCase, phone *auth.PhoneAuth, tokens TokenVerifier) *Handler {
	return &Handler{core: core, phone: phone, tokens: tokens}
}

// Router 建立 chi 路由
//
// 參數:
//
//	cfg: 逾時與 log 設定
//
// 回傳:
//
//	http.Handler: 可直接交給 http.Server
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Verbose))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/otp", h.startSignIn)
		r.Post("/auth/verify", h.verifySignIn)

		r.Group(func(r chi.Router) {
			r.Use(h.requireOwner)

			r.Get("/summary", h.summary)
			r.Get("/reconcile", h.reconcileAll)

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.listCustomers)
				r.Post("/", h.createCustomer)
				r.Route("/{customerID}", func(r chi.Router) {
					r.Get("/", h.getCustomer)
					r.Patch("/", h.updateCustomer)
					r.Delete("/", h.deleteCustomer)
					r.Post("/transactions", h.addTransaction)
					r.Get("/reconcile", h.reconcile)
					r.Post("/reminder", h.generateReminder)
					r.Get("/report", h.exportReport)
				})
			})
		})
	})
	return r
}

// requireOwner 驗證 Authorization: Bearer <token>，並把 ownerID 放進 context
func (h *Handler) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		ownerID, err := h.tokens.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), ownerID)))
	})
}

// requestLogger 失敗的請求 (>= 500) 一律記錄；verbose 時全部記錄
func requestLogger(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if verbose || ww.Status() >= http.StatusInternalServerError {
				log.Printf("[http] %s %s -> %d (%d bytes) in %v req=%s",
					r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), middleware.GetReqID(r.Context()))
			}
		})
	}
}
