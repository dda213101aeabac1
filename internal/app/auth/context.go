package auth

import (
	"context"
	"strings"
)

type ctxKey struct{}

// WithOwner 將已驗證的 ownerID 放入 context
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerFromContext 取得 ownerID；未驗證時為空字串
func OwnerFromContext(ctx context.Context) string {
	ownerID, _ := ctx.Value(ctxKey{}).(string)
	return ownerID
}

// BearerToken 從 "Bearer <token>" 取出 token
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
