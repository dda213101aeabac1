package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

const testSecret = "test-secret-0123456789"

// captureSender 記下最後一次送出的驗證碼
type captureSender struct {
	mobile, code string
}

func (s *captureSender) SendCode(ctx context.Context, mobile, code string) error {
	s.mobile, s.code = mobile, code
	return nil
}

func newPhoneAuth(t *testing.T) (*PhoneAuth, *captureSender, *MemoryCodeStore) {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	store := NewMemoryCodeStore()
	sender := &captureSender{}
	return NewPhoneAuth(store, sender, tokens, OTPConfig{}), sender, store
}

func TestPhoneAuth_SignIn(t *testing.T) {
	a, sender, _ := newPhoneAuth(t)
	ctx := context.Background()

	if _, err := a.StartSignIn(ctx, "9876543210"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(sender.code) != DefaultCodeLength || strings.Trim(sender.code, "0123456789") != "" {
		t.Fatalf("code got=%q want %d digits", sender.code, DefaultCodeLength)
	}

	s, err := a.VerifySignIn(ctx, "9876543210", sender.code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if s.OwnerID != OwnerIDForMobile("9876543210") {
		t.Fatalf("owner got=%s", s.OwnerID)
	}
	owner, err := a.tokens.Verify(s.Token)
	if err != nil || owner != s.OwnerID {
		t.Fatalf("token subject got=%s err=%v", owner, err)
	}

	// 驗證碼只能使用一次
	if _, err := a.VerifySignIn(ctx, "9876543210", sender.code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("reused code err got=%v want ErrCodeExpired", err)
	}
}

func TestPhoneAuth_RejectsBadMobile(t *testing.T) {
	a, _, _ := newPhoneAuth(t)
	if _, err := a.StartSignIn(context.Background(), "12345"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err got=%v want ErrValidation", err)
	}
}

func TestPhoneAuth_LocksAfterMaxAttempts(t *testing.T) {
	a, sender, _ := newPhoneAuth(t)
	ctx := context.Background()
	if _, err := a.StartSignIn(ctx, "9876543210"); err != nil {
		t.Fatalf("start: %v", err)
	}
	wrong := "000000"
	if sender.code == wrong {
		wrong = "111111"
	}
	for i := 1; i < DefaultMaxAttempts; i++ {
		if _, err := a.VerifySignIn(ctx, "9876543210", wrong); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d err got=%v want ErrInvalidCode", i, err)
		}
	}
	if _, err := a.VerifySignIn(ctx, "9876543210", wrong); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("last attempt err got=%v want ErrTooManyAttempts", err)
	}
	// 鎖定後即使輸入正確也必須重新發送
	if _, err := a.VerifySignIn(ctx, "9876543210", sender.code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("after lock err got=%v want ErrCodeExpired", err)
	}
}

func TestPhoneAuth_CodeExpires(t *testing.T) {
	a, sender, store := newPhoneAuth(t)
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }
	if _, err := a.StartSignIn(ctx, "9876543210"); err != nil {
		t.Fatalf("start: %v", err)
	}
	store.now = func() time.Time { return now.Add(DefaultCodeTTL) }
	if _, err := a.VerifySignIn(ctx, "9876543210", sender.code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expired err got=%v want ErrCodeExpired", err)
	}
}

func TestOwnerIDForMobile_Stable(t *testing.T) {
	if OwnerIDForMobile("9876543210") != OwnerIDForMobile("9876543210") {
		t.Fatalf("owner id must be stable")
	}
	if OwnerIDForMobile("9876543210") == OwnerIDForMobile("9123456780") {
		t.Fatalf("different mobiles must map to different owners")
	}
}

func TestTokens_Verify(t *testing.T) {
	tokens, err := NewTokens(TokenConfig{Secret: testSecret, TTL: time.Hour})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	token, _, err := tokens.Issue("owner-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, _ := NewTokens(TokenConfig{Secret: "another-secret-0123456789"})
	if _, err := other.Verify(token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("foreign secret err got=%v want ErrUnauthenticated", err)
	}

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := tokens.Verify(token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expired err got=%v want ErrUnauthenticated", err)
	}
	tokens.now = time.Now

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "owner-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := tokens.Verify(none); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("alg none err got=%v want ErrUnauthenticated", err)
	}
	if _, err := tokens.Verify("garbage"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("garbage err got=%v want ErrUnauthenticated", err)
	}
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	if _, err := NewTokens(TokenConfig{Secret: "short"}); err == nil {
		t.Fatalf("short secret should be rejected")
	}
}

func TestMaskMobile(t *testing.T) {
	if got := maskMobile("9876543210"); got != "******3210" {
		t.Fatalf("mask got=%s", got)
	}
}
