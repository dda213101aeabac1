package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculateBalance 由交易列表計算淨餘額
// Credit 加、Debit 減，結果與順序無關；空列表為 0
func CalculateBalance(txs []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for i := range txs {
		balance = balance.Add(txs[i].Delta())
	}
	return balance
}

// SortNewestFirst 依 Timestamp 由新到舊排序，時間相同時 Sequence 大者在前
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return newerThan(txs[i], txs[j]) })
}

// IsNewestFirst 是否已符合 SortNewestFirst 的順序
func IsNewestFirst(txs []Transaction) bool {
	for i := 1; i < len(txs); i++ {
		if newerThan(txs[i], txs[i-1]) {
			return false
		}
	}
	return true
}

func newerThan(a, b Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Sequence > b.Sequence
}

// BalanceStatus 餘額狀態 (畫面上的徽章)
type BalanceStatus string

const (
	StatusYoullGet  BalanceStatus = "You'll Get"
	StatusYoullGive BalanceStatus = "You'll Give"
	StatusSettled   BalanceStatus = "Settled"
)

// StatusOf 正數代表客戶欠 owner，負數代表 owner 欠客戶
func StatusOf(balance decimal.Decimal) BalanceStatus {
	switch balance.Sign() {
	case 1:
		return StatusYoullGet
	case -1:
		return StatusYoullGive
	default:
		return StatusSettled
	}
}

// Summary 儀表板統計
type Summary struct {
	TotalToCollect decimal.Decimal
	TotalToGive    decimal.Decimal
	TotalCustomers int
}

// Summarize 依各客戶的快取餘額計算統計
func Summarize(customers []Customer) Summary {
	s := Summary{TotalToCollect: decimal.Zero, TotalToGive: decimal.Zero}
	for i := range customers {
		b := customers[i].Balance
		switch b.Sign() {
		case 1:
			s.TotalToCollect = s.TotalToCollect.Add(b)
		case -1:
			s.TotalToGive = s.TotalToGive.Add(b.Abs())
		}
	}
	s.TotalCustomers = len(customers)
	return s
}

// Reconciliation 快取餘額與交易重算結果的比對
type Reconciliation struct {
	CustomerID       uuid.UUID
	StoredBalance    decimal.Decimal
	ComputedBalance  decimal.Decimal
	TransactionCount int
	Consistent       bool
}
