package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

type customerJSON struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Mobile           string            `json:"mobile"`
	Address          string            `json:"address,omitempty"`
	Balance          string            `json:"balance"`
	Status           string            `json:"status"`
	TransactionCount uint64            `json:"transactionCount"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	Transactions     []transactionJSON `json:"transactions,omitempty"`
}

type transactionJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	Notes     string    `json:"notes,omitempty"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

type createCustomerRequest struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
}

type updateCustomerRequest struct {
	Name    *string `json:"name"`
	Mobile  *string `json:"mobile"`
	Address *string `json:"address"`
}

// addTransactionRequest amount 可以是 JSON 數字或字串
type addTransactionRequest struct {
	Kind   string      `json:"kind"`
	Amount json.Number `json:"amount"`
	Notes  string      `json:"notes"`
}

type receiptJSON struct {
	Transaction transactionJSON `json:"transaction"`
	Balance     string          `json:"balance"`
	Status      string          `json:"status"`
	Replayed    bool            `json:"replayed"`
}

type summaryJSON struct {
	TotalToCollect string `json:"totalToCollect"`
	TotalToGive    string `json:"totalToGive"`
	TotalCustomers int    `json:"totalCustomers"`
}

type reconciliationJSON struct {
	CustomerID       string `json:"customerId"`
	StoredBalance    string `json:"storedBalance"`
	ComputedBalance  string `json:"computedBalance"`
	TransactionCount int    `json:"transactionCount"`
	Consistent       bool   `json:"consistent"`
}

type reminderRequest struct {
	BusinessName string `json:"businessName"`
}

type signInRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

func newCustomerJSON(c *domain.Customer) customerJSON {
	out := customerJSON{
		ID:               c.ID.String(),
		Name:             c.Name,
		Mobile:           c.Mobile,
		Address:          c.Address,
		Balance:          amount(c.Balance),
		Status:           string(c.Status()),
		TransactionCount: c.TxCount,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	for i := range c.Transactions {
		out.Transactions = append(out.Transactions, newTransactionJSON(&c.Transactions[i]))
	}
	return out
}

func newTransactionJSON(t *domain.Transaction) transactionJSON {
	return transactionJSON{
		ID:        t.ID.String(),
		Kind:      t.Kind.String(),
		Amount:    amount(t.Amount),
		Notes:     t.Notes,
		Sequence:  t.Sequence,
		Timestamp: t.Timestamp,
	}
}

func newReconciliationJSON(r domain.Reconciliation) reconciliationJSON {
	return reconciliationJSON{
		CustomerID:       r.CustomerID.String(),
		StoredBalance:    amount(r.StoredBalance),
		ComputedBalance:  amount(r.ComputedBalance),
		TransactionCount: r.TransactionCount,
		Consistent:       r.Consistent,
	}
}
