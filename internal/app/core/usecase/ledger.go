package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// Ledger 是帳本儲存層的介面
// 每個方法都帶 ownerID，實作必須以 ownerID 限定範圍，
// 其他 owner 的客戶一律視為不存在 (domain.ErrCustomerNotFound)
type Ledger interface {
	// ListCustomers 依名稱排序列出客戶 (不含交易明細)
	ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error)
	// GetCustomer 取得客戶與完整交易紀錄 (由新到舊)
	GetCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) (*domain.Customer, error)
	// CreateCustomer 寫入新客戶 (餘額 0)
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	// UpdateCustomer 只更新 name/mobile/address，updated_at 由呼叫端決定
	UpdateCustomer(ctx context.Context, ownerID string, customerID uuid.UUID, patch domain.CustomerPatch, updatedAt time.Time) (*domain.Customer, error)
	// AddTransaction 在同一個原子單元內寫入交易並更新快取餘額
	// 相同交易 ID 重送時不重複入帳，回傳 Replayed=true
	AddTransaction(ctx context.Context, ownerID string, customerID uuid.UUID, tran *domain.Transaction) (*domain.Receipt, error)
}

// ReminderRequest 產生提醒文字所需資料
type ReminderRequest struct {
	CustomerName      string
	OutstandingAmount string
	BusinessName      string
}

// ReminderGenerator 外部的提醒文字產生服務
type ReminderGenerator interface {
	GenerateReminder(ctx context.Context, req ReminderRequest) (string, error)
}
