package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

const (
	DefaultBusinessName    = "Your Business"
	DefaultMaxAttempts     = 3
	DefaultRetryBackoff    = 50 * time.Millisecond
	DefaultReminderTimeout = 20 * time.Second
)

// Options CoreUseCase 的可調參數，零值使用預設
type Options struct {
	BusinessName    string
	MaxAttempts     int
	RetryBackoff    time.Duration
	ReminderTimeout time.Duration
	// Now 可注入時鐘 (測試用)
	Now func() time.Time
}

// CoreUseCase 是核心業務邏輯層
// 負責邊界驗證、分配 ID 與時間、暫時性錯誤重試
type CoreUseCase struct {
	ledger   Ledger
	reminder ReminderGenerator
	opts     Options
}

func NewCoreUseCase(ledger Ledger, reminder ReminderGenerator, opts Options) *CoreUseCase {
	if opts.BusinessName == "" {
		opts.BusinessName = DefaultBusinessName
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.ReminderTimeout <= 0 {
		opts.ReminderTimeout = DefaultReminderTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CoreUseCase{
		ledger:   ledger,
		reminder: reminder,
		opts:     opts,
	}
}

// ListCustomers 列出 owner 的客戶 (依名稱排序)
func (c *CoreUseCase) ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return c.ledger.ListCustomers(ctx, ownerID)
}

// GetCustomer 取得客戶與交易紀錄
func (c *CoreUseCase) GetCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return c.ledger.GetCustomer(ctx, ownerID, customerID)
}

// CreateCustomer 驗證後建立客戶
func (c *CoreUseCase) CreateCustomer(ctx context.Context, ownerID string, in domain.CustomerInput) (*domain.Customer, error) {
	customer, err := domain.NewCustomer(ownerID, in, c.opts.Now())
	if err != nil {
		return nil, err
	}
	if err := c.ledger.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// UpdateCustomer 更新客戶基本資料，餘額與交易不受影響
func (c *CoreUseCase) UpdateCustomer(ctx context.Context, ownerID string, customerID uuid.UUID, patch domain.CustomerPatch) (*domain.Customer, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	normalized, err := patch.Normalize()
	if err != nil {
		return nil, err
	}
	if normalized.Empty() {
		return c.ledger.GetCustomer(ctx, ownerID, customerID)
	}
	return c.ledger.UpdateCustomer(ctx, ownerID, customerID, normalized, c.opts.Now())
}

// DeleteCustomer 尚未提供
func (c *CoreUseCase) DeleteCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}
	return domain.ErrNotImplemented
}

// AddTransaction 新增交易並更新餘額
//
// 參數:
//
//	ctx: 上下文
//	ownerID: 已驗證的 owner
//	customerID: 客戶 ID
//	in: 交易內容 (ID 為空時由伺服器產生)
//
// 回傳:
//
//	*domain.Receipt: 寫入的交易與最新餘額
//	error: 驗證錯誤、找不到客戶、或重試後仍失敗的暫時性錯誤
//
// 暫時性錯誤時以同一個交易 ID 重跑整個讀-改-寫單元，
// 若前一次其實已提交，儲存層會以 Replayed 回應而不會重複入帳
func (c *CoreUseCase) AddTransaction(ctx context.Context, ownerID string, customerID uuid.UUID, in domain.TransactionInput) (*domain.Receipt, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	tran, err := domain.NewTransaction(in, c.opts.Now())
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		receipt, err := c.ledger.AddTransaction(ctx, ownerID, customerID, tran)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, domain.ErrTransientStore) {
			return nil, err
		}
		lastErr = err
		log.Printf("[usecase] add transaction %s attempt %d/%d failed: %v", tran.ID, attempt, c.opts.MaxAttempts, err)
		if attempt == c.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, ctx.Err())
		case <-time.After(time.Duration(attempt) * c.opts.RetryBackoff):
		}
	}
	return nil, lastErr
}

// Summary 儀表板統計
func (c *CoreUseCase) Summary(ctx context.Context, ownerID string) (domain.Summary, error) {
	customers, err := c.ListCustomers(ctx, ownerID)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summarize(customers), nil
}

// Reconcile 以交易歷史重算單一客戶的餘額並比對快取值
func (c *CoreUseCase) Reconcile(ctx context.Context, ownerID string, customerID uuid.UUID) (domain.Reconciliation, error) {
	customer, err := c.GetCustomer(ctx, ownerID, customerID)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	rec := customer.Reconcile()
	if !rec.Consistent {
		log.Printf("[usecase] balance drift customer=%s stored=%s computed=%s", customerID, rec.StoredBalance, rec.ComputedBalance)
	}
	return rec, nil
}

// ReconcileAll 對 owner 的所有客戶執行 Reconcile
func (c *CoreUseCase) ReconcileAll(ctx context.Context, ownerID string) ([]domain.Reconciliation, error) {
	customers, err := c.ListCustomers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reconciliation, 0, len(customers))
	for _, cust := range customers {
		rec, err := c.Reconcile(ctx, ownerID, cust.ID)
		if err != nil {
			return nil, fmt.Errorf("reconcile customer %s: %w", cust.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GenerateReminder 為有欠款的客戶產生提醒文字
//
// 參數:
//
//	businessName: 空字串時使用設定的預設名稱
//
// 回傳:
//
//	string: 提醒文字
//	error: 找不到客戶、沒有欠款 (ValidationError)、或外部服務錯誤
func (c *CoreUseCase) GenerateReminder(ctx context.Context, ownerID string, customerID uuid.UUID, businessName string) (string, error) {
	customer, err := c.GetCustomer(ctx, ownerID, customerID)
	if err != nil {
		return "", err
	}
	if !customer.Balance.IsPositive() {
		return "", &domain.ValidationError{Field: "balance", Reason: "customer has no outstanding amount"}
	}
	if c.reminder == nil {
		return "", fmt.Errorf("%w: reminder generator not configured", domain.ErrExternalService)
	}
	businessName = strings.TrimSpace(businessName)
	if businessName == "" {
		businessName = c.opts.BusinessName
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ReminderTimeout)
	defer cancel()

	text, err := c.reminder.GenerateReminder(ctx, ReminderRequest{
		CustomerName:      customer.Name,
		OutstandingAmount: customer.Balance.StringFixed(domain.AmountScale),
		BusinessName:      businessName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrExternalService) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	return text, nil
}

// ExportReport 匯出報表尚未提供；只驗證日期區間
func (c *CoreUseCase) ExportReport(ctx context.Context, ownerID string, customerID uuid.UUID, from, to time.Time) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return &domain.ValidationError{Field: "to", Reason: "must be on or after from"}
	}
	if _, err := c.ledger.GetCustomer(ctx, ownerID, customerID); err != nil {
		return err
	}
	return domain.ErrNotImplemented
}
