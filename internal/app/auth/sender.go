package auth

import (
	"context"
	"log"
)

// CodeSender 將驗證碼送到使用者手機 (SMS 等)
type CodeSender interface {
	SendCode(ctx context.Context, mobile, code string) error
}

// LogSender 開發用：把驗證碼印在 log
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, mobile, code string) error {
	log.Printf("[auth] verification code for %s: %s", maskMobile(mobile), code)
	return nil
}

// maskMobile 只保留後四碼
func maskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return mobile
	}
	masked := make([]byte, len(mobile))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(mobile)-4:], mobile[len(mobile)-4:])
	return string(masked)
}
