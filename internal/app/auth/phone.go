package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

const (
	DefaultCodeLength  = 6
	DefaultCodeTTL     = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// ownerNamespace 由手機號碼推導 ownerID 的 UUIDv5 namespace
var ownerNamespace = uuid.MustParse("6f1c1f8e-4a5b-4d7a-9c3e-1b2a3c4d5e6f")

// OwnerIDForMobile 同一支手機永遠對應同一個 ownerID
func OwnerIDForMobile(mobile string) string {
	return uuid.NewSHA1(ownerNamespace, []byte(mobile)).String()
}

// OTPConfig 手機驗證碼設定
type OTPConfig struct {
	CodeLength  int           `yaml:"code_length"`
	TTL         time.Duration `yaml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Session 登入成功後的結果
type Session struct {
	OwnerID   string
	Token     string
	ExpiresAt time.Time
}

// PhoneAuth 手機號碼 + 一次性驗證碼登入
type PhoneAuth struct {
	store  CodeStore
	sender CodeSender
	tokens *Tokens
	cfg    OTPConfig
}

func NewPhoneAuth(store CodeStore, sender CodeSender, tokens *Tokens, cfg OTPConfig) *PhoneAuth {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCodeTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &PhoneAuth{store: store, sender: sender, tokens: tokens, cfg: cfg}
}

// StartSignIn 產生驗證碼並送出
//
// 參數:
//
//	ctx: 上下文
//	mobile: 10 位數手機號碼
//
// 回傳:
//
//	time.Time: 驗證碼到期時間
//	error: 手機格式錯誤 (ValidationError) 或儲存/發送失敗
func (a *PhoneAuth) StartSignIn(ctx context.Context, mobile string) (time.Time, error) {
	mobile = strings.TrimSpace(mobile)
	if !domain.ValidMobile(mobile) {
		return time.Time{}, &domain.ValidationError{Field: "mobile", Reason: "must be exactly 10 digits"}
	}
	code, err := generateCode(a.cfg.CodeLength)
	if err != nil {
		return time.Time{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return time.Time{}, fmt.Errorf("hash code: %w", err)
	}
	if err := a.store.Save(ctx, mobile, string(hash), a.cfg.TTL); err != nil {
		return time.Time{}, err
	}
	if err := a.sender.SendCode(ctx, mobile, code); err != nil {
		return time.Time{}, fmt.Errorf("send code: %w", err)
	}
	return time.Now().Add(a.cfg.TTL), nil
}

// VerifySignIn 驗證驗證碼，成功後簽發 session token
//
// 回傳:
//
//	Session: ownerID 與 token
//	error: ErrInvalidCode / ErrCodeExpired / ErrTooManyAttempts
func (a *PhoneAuth) VerifySignIn(ctx context.Context, mobile, code string) (Session, error) {
	mobile = strings.TrimSpace(mobile)
	code = strings.TrimSpace(code)
	if !domain.ValidMobile(mobile) {
		return Session{}, &domain.ValidationError{Field: "mobile", Reason: "must be exactly 10 digits"}
	}
	if code == "" {
		return Session{}, &domain.ValidationError{Field: "code", Reason: "is required"}
	}

	hash, err := a.store.Get(ctx, mobile)
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Session{}, fmt.Errorf("compare code: %w", err)
		}
		attempts, err := a.store.IncrAttempts(ctx, mobile)
		if err != nil {
			return Session{}, err
		}
		if attempts >= a.cfg.MaxAttempts {
			log.Printf("[auth] challenge for %s locked after %d attempts", maskMobile(mobile), attempts)
			if err := a.store.Delete(ctx, mobile); err != nil {
				return Session{}, err
			}
			return Session{}, ErrTooManyAttempts
		}
		return Session{}, ErrInvalidCode
	}

	if err := a.store.Delete(ctx, mobile); err != nil {
		return Session{}, err
	}
	ownerID := OwnerIDForMobile(mobile)
	token, exp, err := a.tokens.Issue(ownerID)
	if err != nil {
		return Session{}, err
	}
	return Session{OwnerID: ownerID, Token: token, ExpiresAt: exp}, nil
}

// generateCode 以 crypto/rand 產生固定長度的數字驗證碼
func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
