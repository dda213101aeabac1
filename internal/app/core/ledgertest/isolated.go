package ledgertest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

// isolated 在 ownerID 前加上隨機前綴，讓共用資料庫的測試彼此看不到對方的資料
type isolated struct {
	inner  usecase.Ledger
	prefix string
}

// Isolated 包裝一個共用的 Ledger (如整合測試用的 MySQL / PostgreSQL)
func Isolated(l usecase.Ledger) usecase.Ledger {
	return &isolated{inner: l, prefix: uuid.NewString()[:8] + ":"}
}

func (s *isolated) owner(ownerID string) string {
	return s.prefix + ownerID
}

func (s *isolated) ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	return s.inner.ListCustomers(ctx, s.owner(ownerID))
}

func (s *isolated) GetCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	return s.inner.GetCustomer(ctx, s.owner(ownerID), customerID)
}

func (s *isolated) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	cp := *c
	cp.OwnerID = s.owner(c.OwnerID)
	return s.inner.CreateCustomer(ctx, &cp)
}

func (s *isolated) UpdateCustomer(ctx context.Context, ownerID string, customerID uuid.UUID, patch domain.CustomerPatch, updatedAt time.Time) (*domain.Customer, error) {
	return s.inner.UpdateCustomer(ctx, s.owner(ownerID), customerID, patch, updatedAt)
}

func (s *isolated) AddTransaction(ctx context.Context, ownerID string, customerID uuid.UUID, tran *domain.Transaction) (*domain.Receipt, error) {
	return s.inner.AddTransaction(ctx, s.owner(ownerID), customerID, tran)
}
