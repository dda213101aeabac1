package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MobileLength     = 10
	MaxNameLength    = 100
	MaxAddressLength = 250
)

// Customer 客戶聚合：基本資料 + 交易紀錄 + 快取餘額
type Customer struct {
	ID      uuid.UUID
	OwnerID string
	Name    string
	Mobile  string
	Address string
	// Balance: 快取的淨餘額，由 AddTransaction 在同一原子單元內維護
	Balance decimal.Decimal
	// TxCount: 已寫入的交易筆數，也是下一筆交易 Sequence 的基準
	TxCount uint64
	// Transactions: 儲存層回傳時由新到舊；列表查詢時為 nil
	// Append 累積的是由舊到新，由呼叫端負責轉換
	Transactions []Transaction
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomerInput 建立客戶的請求
type CustomerInput struct {
	Name    string
	Mobile  string
	Address string
}

// CustomerPatch 部分更新；nil 表示不變
// 餘額與交易不可經由此路徑修改
type CustomerPatch struct {
	Name    *string
	Mobile  *string
	Address *string
}

// Empty 沒有任何欄位要更新
func (p CustomerPatch) Empty() bool {
	return p.Name == nil && p.Mobile == nil && p.Address == nil
}

// Normalize 去除空白並驗證有給的欄位
func (p CustomerPatch) Normalize() (CustomerPatch, error) {
	var out CustomerPatch
	if p.Name != nil {
		name, err := normalizeName(*p.Name)
		if err != nil {
			return out, err
		}
		out.Name = &name
	}
	if p.Mobile != nil {
		mobile, err := normalizeMobile(*p.Mobile)
		if err != nil {
			return out, err
		}
		out.Mobile = &mobile
	}
	if p.Address != nil {
		address, err := normalizeAddress(*p.Address)
		if err != nil {
			return out, err
		}
		out.Address = &address
	}
	return out, nil
}

// NewCustomer 建立餘額為 0、沒有交易的客戶
//
// 參數:
//
//	ownerID: 已驗證的 owner
//	in: 客戶資料 (name、mobile 必填)
//	now: 伺服器時間
//
// 回傳:
//
//	*Customer: 新客戶
//	error: 驗證錯誤
func NewCustomer(ownerID string, in CustomerInput, now time.Time) (*Customer, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	mobile, err := normalizeMobile(in.Mobile)
	if err != nil {
		return nil, err
	}
	address, err := normalizeAddress(in.Address)
	if err != nil {
		return nil, err
	}
	now = now.UTC().Truncate(time.Microsecond)
	return &Customer{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Mobile:    mobile,
		Address:   address,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Apply 套用部分更新 (patch 需先 Normalize)
func (c *Customer) Apply(p CustomerPatch, now time.Time) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Mobile != nil {
		c.Mobile = *p.Mobile
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	c.UpdatedAt = now.UTC().Truncate(time.Microsecond)
}

// Append 將交易加入歷史並同步更新餘額
// 只給持有鎖的 in-memory 實作使用
func (c *Customer) Append(tx Transaction) Transaction {
	c.TxCount++
	tx.Sequence = c.TxCount
	c.Balance = c.Balance.Add(tx.Delta())
	// 依寫入順序追加，對外回傳前再反轉
	c.Transactions = append(c.Transactions, tx)
	return tx
}

// Status 餘額狀態
func (c *Customer) Status() BalanceStatus {
	return StatusOf(c.Balance)
}

// Reconcile 由交易歷史重算餘額並與快取比對
func (c *Customer) Reconcile() Reconciliation {
	computed := CalculateBalance(c.Transactions)
	return Reconciliation{
		CustomerID:       c.ID,
		StoredBalance:    c.Balance,
		ComputedBalance:  computed,
		TransactionCount: len(c.Transactions),
		Consistent:       computed.Equal(c.Balance),
	}
}

func normalizeName(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		return "", invalid("name", "is too long")
	}
	return s, nil
}

func normalizeMobile(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !ValidMobile(s) {
		return "", invalid("mobile", "must be exactly 10 digits")
	}
	return s, nil
}

func normalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxAddressLength {
		return "", invalid("address", "is too long")
	}
	return s, nil
}

// ValidMobile 剛好 10 個 ASCII 數字
func ValidMobile(s string) bool {
	if len(s) != MobileLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
