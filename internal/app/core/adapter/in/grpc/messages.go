package grpc

import (
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// 以 JSON codec 傳輸的訊息；金額一律以十進位字串表示，避免浮點誤差

type Empty struct{}

type Customer struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Mobile           string                 `json:"mobile"`
	Address          string                 `json:"address,omitempty"`
	Balance          string                 `json:"balance"`
	Status           string                 `json:"status"`
	TransactionCount uint64                 `json:"transactionCount"`
	CreatedAt        *timestamppb.Timestamp `json:"createdAt,omitempty"`
	UpdatedAt        *timestamppb.Timestamp `json:"updatedAt,omitempty"`
	Transactions     []*Transaction         `json:"transactions,omitempty"`
}

type Transaction struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Amount    string                 `json:"amount"`
	Notes     string                 `json:"notes,omitempty"`
	Sequence  uint64                 `json:"sequence"`
	Timestamp *timestamppb.Timestamp `json:"timestamp,omitempty"`
}

type ListCustomersRequest struct{}

type ListCustomersResponse struct {
	Customers []*Customer `json:"customers"`
}

type GetCustomerRequest struct {
	CustomerID string `json:"customerId"`
}

type CustomerResponse struct {
	Customer *Customer `json:"customer"`
}

type CreateCustomerRequest struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address,omitempty"`
}

// UpdateCustomerRequest nil 欄位表示不變
type UpdateCustomerRequest struct {
	CustomerID string  `json:"customerId"`
	Name       *string `json:"name,omitempty"`
	Mobile     *string `json:"mobile,omitempty"`
	Address    *string `json:"address,omitempty"`
}

type DeleteCustomerRequest struct {
	CustomerID string `json:"customerId"`
}

// AddTransactionRequest TransactionID 可省略；提供時作為冪等鍵
type AddTransactionRequest struct {
	CustomerID    string `json:"customerId"`
	TransactionID string `json:"transactionId,omitempty"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Notes         string `json:"notes,omitempty"`
}

type AddTransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
	Balance     string       `json:"balance"`
	Status      string       `json:"status"`
	Replayed    bool         `json:"replayed"`
}

type GetSummaryRequest struct{}

type SummaryResponse struct {
	TotalToCollect string `json:"totalToCollect"`
	TotalToGive    string `json:"totalToGive"`
	TotalCustomers int32  `json:"totalCustomers"`
}

// ReconcileRequest CustomerID 為空時檢查所有客戶
type ReconcileRequest struct {
	CustomerID string `json:"customerId,omitempty"`
}

type Reconciliation struct {
	CustomerID       string `json:"customerId"`
	StoredBalance    string `json:"storedBalance"`
	ComputedBalance  string `json:"computedBalance"`
	TransactionCount int32  `json:"transactionCount"`
	Consistent       bool   `json:"consistent"`
}

type ReconcileResponse struct {
	Results []*Reconciliation `json:"results"`
}

type GenerateReminderRequest struct {
	CustomerID   string `json:"customerId"`
	BusinessName string `json:"businessName,omitempty"`
}

type GenerateReminderResponse struct {
	Text string `json:"text"`
}

type ExportReportRequest struct {
	CustomerID string                 `json:"customerId"`
	From       *timestamppb.Timestamp `json:"from,omitempty"`
	To         *timestamppb.Timestamp `json:"to,omitempty"`
}

type StartSignInRequest struct {
	Mobile string `json:"mobile"`
}

type StartSignInResponse struct {
	ExpiresAt *timestamppb.Timestamp `json:"expiresAt"`
}

type VerifySignInRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

type VerifySignInResponse struct {
	OwnerID   string                 `json:"ownerId"`
	Token     string                 `json:"token"`
	ExpiresAt *timestamppb.Timestamp `json:"expiresAt"`
}

func amountString(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

func toCustomer(c *domain.Customer) *Customer {
	out := &Customer{
		ID:               c.ID.String(),
		Name:             c.Name,
		Mobile:           c.Mobile,
		Address:          c.Address,
		Balance:          amountString(c.Balance),
		Status:           string(c.Status()),
		TransactionCount: c.TxCount,
		CreatedAt:        timestamppb.New(c.CreatedAt),
		UpdatedAt:        timestamppb.New(c.UpdatedAt),
	}
	if len(c.Transactions) > 0 {
		out.Transactions = make([]*Transaction, 0, len(c.Transactions))
		for i := range c.Transactions {
			out.Transactions = append(out.Transactions, toTransaction(&c.Transactions[i]))
		}
	}
	return out
}

func toTransaction(t *domain.Transaction) *Transaction {
	return &Transaction{
		ID:        t.ID.String(),
		Kind:      t.Kind.String(),
		Amount:    amountString(t.Amount),
		Notes:     t.Notes,
		Sequence:  t.Sequence,
		Timestamp: timestamppb.New(t.Timestamp),
	}
}

func toReconciliation(r domain.Reconciliation) *Reconciliation {
	return &Reconciliation{
		CustomerID:       r.CustomerID.String(),
		StoredBalance:    amountString(r.StoredBalance),
		ComputedBalance:  amountString(r.ComputedBalance),
		TransactionCount: int32(r.TransactionCount),
		Consistent:       r.Consistent,
	}
}
