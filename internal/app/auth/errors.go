package auth

import "errors"

var (
	// ErrInvalidCode 驗證碼錯誤
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrCodeExpired 沒有進行中的驗證 (未發送、已過期或已使用)
	ErrCodeExpired = errors.New("verification code expired")

	// ErrTooManyAttempts 錯誤次數過多，需重新發送驗證碼
	ErrTooManyAttempts = errors.New("too many verification attempts")
)
