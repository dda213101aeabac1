package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-khata-ledger/pkg/wal"
)

// processedTran 已處理過的交易，用於冪等判斷
type processedTran struct {
	ownerID    string
	customerID uuid.UUID
	tran       domain.Transaction
}

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	customers: 客戶資料 Map
//	mu: RWMutex 保護所有欄位，寫入路徑持有寫鎖即為原子單元
//	processedTransactions: 已處理過的交易 Map
//	wal: Write-Ahead Log 實例 (可為 nil，表示純記憶體)
type MutexLedger struct {
	customers map[uuid.UUID]*domain.Customer
	mu        sync.RWMutex
	// 已處理過的交易
	processedTransactions map[uuid.UUID]processedTran
	// Write-Ahead Logging
	wal *wal.WAL
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 時不做持久化
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		customers:             make(map[uuid.UUID]*domain.Customer),
		processedTransactions: make(map[uuid.UUID]processedTran),
		wal:                   w,
	}
	if w == nil {
		return ledger, nil
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	count := 0
	err := m.wal.ReadAll(func(raw json.RawMessage) error {
		var rec walRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		count++
		return m.apply(&rec)
	})
	if err != nil {
		return fmt.Errorf("recover ledger from wal: %w", err)
	}
	log.Printf("[memory] recovered %d wal records, %d customers", count, len(m.customers))
	return nil
}

// ListCustomers 列出 owner 的所有客戶 (依名稱排序，不含交易明細)
func (m *MutexLedger) ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Customer, 0)
	for _, c := range m.customers {
		if c.OwnerID != ownerID {
			continue
		}
		cp := *c
		cp.Transactions = nil
		out = append(out, cp)
	}
	sortByName(out)
	return out, nil
}

// GetCustomer 取得客戶與完整交易紀錄
//
// 參數:
//
//	ctx: 上下文
//	ownerID: owner
//	customerID: 客戶 ID
//
// 回傳:
//
//	*domain.Customer: 客戶副本 (交易由新到舊)
//	error: 查詢錯誤 (如客戶不存在或屬於其他 owner)
func (m *MutexLedger) GetCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.lookup(ownerID, customerID)
	if err != nil {
		return nil, err
	}
	return snapshot(c), nil
}

// CreateCustomer 新增客戶
func (m *MutexLedger) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[customer.ID]; ok {
		return fmt.Errorf("customer %s already exists", customer.ID)
	}
	rec := &walRecord{
		Op:         opCreateCustomer,
		OwnerID:    customer.OwnerID,
		CustomerID: customer.ID,
		Name:       customer.Name,
		Mobile:     customer.Mobile,
		Address:    customer.Address,
		At:         customer.CreatedAt,
	}
	return m.commit(rec)
}

// UpdateCustomer 更新客戶基本資料
func (m *MutexLedger) UpdateCustomer(ctx context.Context, ownerID string, customerID uuid.UUID, patch domain.CustomerPatch, updatedAt time.Time) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookup(ownerID, customerID)
	if err != nil {
		return nil, err
	}
	next := *c
	next.Apply(patch, updatedAt)
	rec := &walRecord{
		Op:         opUpdateCustomer,
		OwnerID:    ownerID,
		CustomerID: customerID,
		Name:       next.Name,
		Mobile:     next.Mobile,
		Address:    next.Address,
		At:         next.UpdatedAt,
	}
	if err := m.commit(rec); err != nil {
		return nil, err
	}
	return snapshot(m.customers[customerID]), nil
}

// AddTransaction 處理交易請求 (Mutex Lock)
//
// 參數:
//
//	ctx: 上下文
//	ownerID: owner
//	customerID: 客戶 ID
//	tran: 交易物件
//
// 回傳:
//
//	*domain.Receipt: 交易與最新餘額
//	error: 處理錯誤
func (m *MutexLedger) AddTransaction(ctx context.Context, ownerID string, customerID uuid.UUID, tran *domain.Transaction) (*domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookup(ownerID, customerID)
	if err != nil {
		return nil, err
	}
	if done, ok := m.processedTransactions[tran.ID]; ok {
		if done.customerID != customerID || done.ownerID != ownerID || !done.tran.SameRequest(tran) {
			return nil, domain.ErrIdempotencyConflict
		}
		return &domain.Receipt{Transaction: done.tran, Balance: c.Balance, Replayed: true}, nil
	}

	rec := &walRecord{
		Op:         opAddTransaction,
		OwnerID:    ownerID,
		CustomerID: customerID,
		TranID:     tran.ID,
		Kind:       tran.Kind,
		Amount:     tran.Amount,
		Notes:      tran.Notes,
		At:         tran.Timestamp,
	}
	if err := m.commit(rec); err != nil {
		return nil, err
	}
	recorded := m.processedTransactions[tran.ID].tran
	return &domain.Receipt{Transaction: recorded, Balance: m.customers[customerID].Balance}, nil
}

// commit 先寫 WAL 再套用到記憶體；呼叫端需持有寫鎖
func (m *MutexLedger) commit(rec *walRecord) error {
	// 1. 寫入 WAL (Critical Path)
	if m.wal != nil {
		if err := m.wal.Write(rec); err != nil {
			if errors.Is(err, wal.ErrBroken) {
				return fmt.Errorf("wal write: %w", err)
			}
			// 檔案已截斷回寫入前，重試是安全的
			return fmt.Errorf("%w: wal write: %v", domain.ErrTransientStore, err)
		}
	}
	// 2. 套用到記憶體
	return m.apply(rec)
}

// apply 將一筆紀錄套用到記憶體 (不寫入 WAL)
func (m *MutexLedger) apply(rec *walRecord) error {
	switch rec.Op {
	case opCreateCustomer:
		m.customers[rec.CustomerID] = &domain.Customer{
			ID:        rec.CustomerID,
			OwnerID:   rec.OwnerID,
			Name:      rec.Name,
			Mobile:    rec.Mobile,
			Address:   rec.Address,
			Balance:   decimal.Zero,
			CreatedAt: rec.At,
			UpdatedAt: rec.At,
		}
	case opUpdateCustomer:
		c, ok := m.customers[rec.CustomerID]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		c.Name, c.Mobile, c.Address = rec.Name, rec.Mobile, rec.Address
		c.UpdatedAt = rec.At
	case opAddTransaction:
		c, ok := m.customers[rec.CustomerID]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		// 同一交易 ID 只入帳一次 (寫入失敗後重試可能留下重複紀錄)
		if _, done := m.processedTransactions[rec.TranID]; done {
			log.Printf("[memory] skipping duplicate wal record for transaction %s", rec.TranID)
			return nil
		}
		recorded := c.Append(domain.Transaction{
			ID:        rec.TranID,
			Kind:      rec.Kind,
			Amount:    rec.Amount,
			Notes:     rec.Notes,
			Timestamp: rec.At,
		})
		c.UpdatedAt = rec.At
		m.processedTransactions[rec.TranID] = processedTran{
			ownerID:    rec.OwnerID,
			customerID: rec.CustomerID,
			tran:       recorded,
		}
	default:
		return fmt.Errorf("unknown wal op %q", rec.Op)
	}
	return nil
}

// lookup 取得 owner 名下的客戶；呼叫端需持有鎖
func (m *MutexLedger) lookup(ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	c, ok := m.customers[customerID]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrCustomerNotFound
	}
	return c, nil
}

// snapshot 深拷貝客戶，呼叫端拿到的資料不會再被修改
// 記憶體內交易依 Sequence 由舊到新，反向複製即為由新到舊；
// 只有時鐘倒退造成 Timestamp 亂序時才需要重新排序
func snapshot(c *domain.Customer) *domain.Customer {
	cp := *c
	n := len(c.Transactions)
	cp.Transactions = make([]domain.Transaction, n)
	for i, tx := range c.Transactions {
		cp.Transactions[n-1-i] = tx
	}
	if !domain.IsNewestFirst(cp.Transactions) {
		domain.SortNewestFirst(cp.Transactions)
	}
	return &cp
}

// sortByName 名稱不分大小寫排序，同名時以 ID 決定順序
func sortByName(customers []domain.Customer) {
	sort.Slice(customers, func(i, j int) bool {
		a, b := strings.ToLower(customers[i].Name), strings.ToLower(customers[j].Name)
		if a != b {
			return a < b
		}
		return customers[i].ID.String() < customers[j].ID.String()
	})
}

var _ usecase.Ledger = (*MutexLedger)(nil)
