package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

const (
	opCreateCustomer = "create_customer"
	opUpdateCustomer = "update_customer"
	opAddTransaction = "add_transaction"
)

// walRecord 寫入 WAL 的單筆事件
// update_customer 存的是更新後的完整資料，重播時直接覆蓋
type walRecord struct {
	Op         string    `json:"op"`
	OwnerID    string    `json:"owner_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	At         time.Time `json:"at"`

	Name    string `json:"name,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	Address string `json:"address,omitempty"`

	TranID uuid.UUID              `json:"tran_id,omitempty"`
	Kind   domain.TransactionKind `json:"kind,omitempty"`
	Amount decimal.Decimal        `json:"amount,omitempty"`
	Notes  string                 `json:"notes,omitempty"`
}
