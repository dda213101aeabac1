package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 輸入格式錯誤 (由 *ValidationError 包裝)
	ErrValidation = errors.New("validation failed")

	// ErrCustomerNotFound 找不到客戶
	// 客戶屬於其他 owner 時也回傳此錯誤，避免洩漏存在與否
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrUnauthenticated 沒有有效的身分
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTransientStore 儲存層暫時性錯誤 (寫入衝突、連線中斷)，可整筆重試
	ErrTransientStore = errors.New("transient store error")

	// ErrExternalService 外部服務 (提醒文字產生) 失敗，可重試
	ErrExternalService = errors.New("external service error")

	// ErrIdempotencyConflict 相同交易 ID 被用在不同內容的交易上
	ErrIdempotencyConflict = errors.New("transaction id already used for a different transaction")

	// ErrNotImplemented 尚未提供的功能 (刪除客戶、匯出報表)
	ErrNotImplemented = errors.New("not implemented")
)

// ValidationError 描述單一欄位的驗證失敗
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap 讓 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
