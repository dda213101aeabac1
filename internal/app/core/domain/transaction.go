package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// AmountScale 金額精度：小數點後 2 位
	AmountScale = 2

	// MaxNotesLength 備註最大長度 (字元)
	MaxNotesLength = 500
)

// MaxAmount 單筆交易上限，對應 DECIMAL(18,2)
var MaxAmount = decimal.RequireFromString("999999999999.99")

// TransactionKind 交易類型
type TransactionKind uint8

const (
	// KindCredit 賒出 ("You Gave")，客戶欠款增加
	KindCredit TransactionKind = 1
	// KindDebit 收回 ("You Got")，客戶欠款減少
	KindDebit TransactionKind = 2
)

func (k TransactionKind) String() string {
	switch k {
	case KindCredit:
		return "credit"
	case KindDebit:
		return "debit"
	default:
		return "unknown"
	}
}

// Valid 是否為兩種合法類型之一
func (k TransactionKind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

// ParseTransactionKind 將 "credit" / "debit" 轉為 TransactionKind (不分大小寫)
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "gave":
		return KindCredit, nil
	case "debit", "got":
		return KindDebit, nil
	default:
		return 0, invalid("kind", "must be credit or debit")
	}
}

// Transaction 交易紀錄，建立後不可修改或刪除
type Transaction struct {
	// ID: 交易 ID，可由呼叫端提供作為冪等鍵
	ID uuid.UUID
	// Amount: 金額，必為正數
	Amount decimal.Decimal
	// Timestamp: 記錄時間 (UTC)，只用於排序
	Timestamp time.Time
	// Notes: 備註 (可空)
	Notes string
	// Sequence: 同一客戶內從 1 開始的遞增序號，在原子單元內分配
	// Timestamp 相同時用來決定先後
	Sequence uint64
	// Kind: 放到最後面，利用 Padding 空間
	Kind TransactionKind
}

// TransactionInput 新增交易的請求內容
type TransactionInput struct {
	// ID 為 uuid.Nil 時由伺服器產生
	ID     uuid.UUID
	Kind   TransactionKind
	Amount decimal.Decimal
	Notes  string
}

// Validate 檢查交易請求
func (in TransactionInput) Validate() error {
	if !in.Kind.Valid() {
		return invalid("kind", "must be credit or debit")
	}
	return ValidateAmount(in.Amount)
}

// ValidateAmount 金額必須 > 0、最多兩位小數、不超過 MaxAmount
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return invalid("amount", "must have at most two decimal places")
	}
	if amount.GreaterThan(MaxAmount) {
		return invalid("amount", "is too large")
	}
	return nil
}

// NewTransaction 由請求建立交易紀錄
//
// 參數:
//
//	in: 交易請求
//	now: 伺服器時間
//
// 回傳:
//
//	*Transaction: 尚未分配 Sequence 的交易
//	error: 驗證錯誤
func NewTransaction(in TransactionInput, now time.Time) (*Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, invalid("notes", "is too long")
	}
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Transaction{
		ID:        id,
		Kind:      in.Kind,
		Amount:    in.Amount,
		Timestamp: now.UTC().Truncate(time.Microsecond),
		Notes:     notes,
	}, nil
}

// Delta 此交易對餘額的影響：Credit 為 +amount，Debit 為 -amount
func (t *Transaction) Delta() decimal.Decimal {
	if t.Kind == KindDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// SameRequest 判斷重送的請求是否與已記錄的交易內容一致
func (t *Transaction) SameRequest(other *Transaction) bool {
	return t.ID == other.ID && t.Kind == other.Kind && t.Amount.Equal(other.Amount)
}

// Receipt 新增交易後的結果
type Receipt struct {
	Transaction Transaction
	// Balance: 交易寫入後的客戶餘額
	Balance decimal.Decimal
	// Replayed: 該交易 ID 已經提交過，本次為重送 (沒有任何變更)
	Replayed bool
}

// ParseAmount 解析十進位字串金額並驗證
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid("amount", "is required")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid("amount", "must be a decimal number")
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ParseID 解析 UUID；格式錯誤時回傳指定欄位的 ValidationError
func ParseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, invalid(field, "must be a valid id")
	}
	return id, nil
}
