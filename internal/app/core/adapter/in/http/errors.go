package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// errorBody 所有錯誤回應的格式
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// classify 決定 HTTP status 與顯示給使用者的標題
func classify(err error) (int, errorDetail) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorDetail{
			Title:       "Invalid input",
			Description: ve.Error(),
			Fields:      map[string]string{ve.Field: ve.Reason},
		}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorDetail{Title: "Invalid input", Description: err.Error()}
	case errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound, errorDetail{Title: "Not found", Description: "customer not found"}
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCode),
		errors.Is(err, auth.ErrCodeExpired):
		return http.StatusUnauthorized, errorDetail{Title: "Sign in required", Description: err.Error()}
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorDetail{Title: "Too many attempts", Description: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, errorDetail{Title: "Conflict", Description: err.Error()}
	case errors.Is(err, domain.ErrTransientStore):
		return http.StatusServiceUnavailable, errorDetail{Title: "Try again", Description: "the ledger is busy, please retry"}
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway, errorDetail{Title: "Generation failed", Description: "could not generate the reminder, please retry"}
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented, errorDetail{Title: "Feature coming soon!", Description: "this feature is not available yet"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorDetail{Title: "Try again", Description: "the request timed out"}
	}
	return http.StatusInternalServerError, errorDetail{Title: "Something went wrong", Description: "unexpected error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, detail := classify(err)
	if code == http.StatusInternalServerError {
		log.Printf("[http] %s %s (req %s) internal error: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
	}
	writeJSON(w, code, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}
