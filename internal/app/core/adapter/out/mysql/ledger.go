package mysql

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-khata-ledger/pkg/mysql"
)

// sqlCustomer 對應資料庫的 customers 表
type sqlCustomer struct {
	ID      string          `gorm:"primaryKey;type:char(36)"`
	OwnerID string          `gorm:"type:varchar(64);not null;index:idx_customers_owner_name,priority:1"`
	Name    string          `gorm:"type:varchar(100);not null;index:idx_customers_owner_name,priority:2"`
	Mobile  string          `gorm:"type:char(10);not null"`
	Address string          `gorm:"type:varchar(250);not null;default:''"`
	Balance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	// TxCount 已寫入的交易數，也是下一筆 seq 的來源
	TxCount   uint64    `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(6);not null"`
}

func (*sqlCustomer) TableName() string {
	return "customers"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID         string          `gorm:"primaryKey;type:char(36)"` // 對應 domain.Transaction.ID (冪等鍵)
	OwnerID    string          `gorm:"type:varchar(64);not null"`
	CustomerID string          `gorm:"type:char(36);not null;uniqueIndex:uk_transactions_customer_seq,priority:1"`
	Seq        uint64          `gorm:"not null;uniqueIndex:uk_transactions_customer_seq,priority:2"`
	Kind       uint8           `gorm:"not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Notes      string          `gorm:"type:varchar(500);not null;default:''"`
	CreatedAt  time.Time       `gorm:"type:datetime(6);not null;index"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLLedger 以 MySQL (GORM) 實作 usecase.Ledger
// 寫入路徑以 SELECT ... FOR UPDATE 鎖住客戶列，餘額與交易在同一個 DB Transaction 內提交
type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
	}
}

// Migrate 建立或更新資料表
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	if err := ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlCustomer{}, &sqlTransaction{}); err != nil {
		return fmt.Errorf("auto migrate ledger tables: %w", err)
	}
	return nil
}

// ListCustomers 列出 owner 的客戶
// utf8mb4 預設 collation 不分大小寫，ORDER BY name 即為不分大小寫排序
func (ledger *MySQLLedger) ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	var rows []sqlCustomer
	err := ledger.client.DB().WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]domain.Customer, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// GetCustomer 取得客戶與交易紀錄
func (ledger *MySQLLedger) GetCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	var customer *domain.Customer
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		customer, err = loadCustomer(tx, ownerID, customerID)
		return err
	}, readOnly())
	if err != nil {
		return nil, mapError(err)
	}
	return customer, nil
}

// CreateCustomer 新增客戶
func (ledger *MySQLLedger) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	row := sqlCustomer{
		ID:        customer.ID.String(),
		OwnerID:   customer.OwnerID,
		Name:      customer.Name,
		Mobile:    customer.Mobile,
		Address:   customer.Address,
		Balance:   decimal.Zero,
		CreatedAt: customer.CreatedAt,
		UpdatedAt: customer.UpdatedAt,
	}
	if err := ledger.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// UpdateCustomer 更新客戶基本資料 (不觸碰 balance / tx_count)
func (ledger *MySQLLedger) UpdateCustomer(ctx context.Context, ownerID string, customerID uuid.UUID, patch domain.CustomerPatch, updatedAt time.Time) (*domain.Customer, error) {
	var customer *domain.Customer
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlCustomer
		if err := lockCustomer(tx, ownerID, customerID, &row); err != nil {
			return err
		}
		updates := map[string]any{"updated_at": updatedAt.UTC().Truncate(time.Microsecond)}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Mobile != nil {
			updates["mobile"] = *patch.Mobile
		}
		if patch.Address != nil {
			updates["address"] = *patch.Address
		}
		if err := tx.Model(&sqlCustomer{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}
		var err error
		customer, err = loadCustomer(tx, ownerID, customerID)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return customer, nil
}

// AddTransaction 在同一個 DB Transaction 內寫入交易並更新快取餘額
//
// 參數:
//
//	ctx: 上下文
//	ownerID: owner
//	customerID: 客戶 ID
//	tran: 交易物件 (ID 為冪等鍵)
//
// 回傳:
//
//	*domain.Receipt: 交易與最新餘額
//	error: ErrCustomerNotFound / ErrIdempotencyConflict / ErrTransientStore
func (ledger *MySQLLedger) AddTransaction(ctx context.Context, ownerID string, customerID uuid.UUID, tran *domain.Transaction) (*domain.Receipt, error) {
	var receipt *domain.Receipt
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 悲觀鎖鎖住客戶列，同一客戶的寫入在此排隊
		var row sqlCustomer
		if err := lockCustomer(tx, ownerID, customerID, &row); err != nil {
			return err
		}

		// 2. 先檢查是否有這筆交易記錄 (持鎖後檢查，相同 ID 的重送不會同時通過)
		var existing []sqlTransaction
		if err := tx.Where("id = ?", tran.ID.String()).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			done, err := existing[0].toDomain()
			if err != nil {
				return err
			}
			if existing[0].CustomerID != row.ID || existing[0].OwnerID != ownerID || !done.SameRequest(tran) {
				return domain.ErrIdempotencyConflict
			}
			receipt = &domain.Receipt{Transaction: *done, Balance: row.Balance, Replayed: true}
			return nil
		}

		// 3. 更新快取餘額與序號
		recorded := *tran
		recorded.Sequence = row.TxCount + 1
		balance := row.Balance.Add(recorded.Delta())
		res := tx.Model(&sqlCustomer{}).Where("id = ?", row.ID).Updates(map[string]any{
			"balance":    balance,
			"tx_count":   recorded.Sequence,
			"updated_at": recorded.Timestamp,
		})
		if res.Error != nil {
			return res.Error
		}

		// 4. 建立交易紀錄
		if err := tx.Create(&sqlTransaction{
			ID:         recorded.ID.String(),
			OwnerID:    ownerID,
			CustomerID: row.ID,
			Seq:        recorded.Sequence,
			Kind:       uint8(recorded.Kind),
			Amount:     recorded.Amount,
			Notes:      recorded.Notes,
			CreatedAt:  recorded.Timestamp,
		}).Error; err != nil {
			return err
		}
		receipt = &domain.Receipt{Transaction: recorded, Balance: balance}
		return nil
	})
	if err != nil {
		err = mapError(err)
		if errors.Is(err, domain.ErrTransientStore) {
			log.Printf("[mysql] add transaction %s for customer %s: %v", tran.ID, customerID, err)
		}
		return nil, err
	}
	return receipt, nil
}

// lockCustomer SELECT ... FOR UPDATE 取得 owner 名下的客戶
func lockCustomer(tx *gorm.DB, ownerID string, customerID uuid.UUID, row *sqlCustomer) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND owner_id = ?", customerID.String(), ownerID).
		Take(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrCustomerNotFound
	}
	return err
}

// loadCustomer 讀取客戶與交易 (由新到舊)
func loadCustomer(tx *gorm.DB, ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	var row sqlCustomer
	err := tx.Where("id = ? AND owner_id = ?", customerID.String(), ownerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	customer, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	var trans []sqlTransaction
	if err := tx.Where("customer_id = ?", row.ID).
		Order("created_at DESC, seq DESC").
		Find(&trans).Error; err != nil {
		return nil, err
	}
	customer.Transactions = make([]domain.Transaction, 0, len(trans))
	for i := range trans {
		t, err := trans[i].toDomain()
		if err != nil {
			return nil, err
		}
		customer.Transactions = append(customer.Transactions, *t)
	}
	return customer, nil
}

func (row *sqlCustomer) toDomain() (*domain.Customer, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("customer id %q: %w", row.ID, err)
	}
	return &domain.Customer{
		ID:        id,
		OwnerID:   row.OwnerID,
		Name:      row.Name,
		Mobile:    row.Mobile,
		Address:   row.Address,
		Balance:   row.Balance,
		TxCount:   row.TxCount,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func (row *sqlTransaction) toDomain() (*domain.Transaction, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("transaction id %q: %w", row.ID, err)
	}
	return &domain.Transaction{
		ID:        id,
		Kind:      domain.TransactionKind(row.Kind),
		Amount:    row.Amount,
		Notes:     row.Notes,
		Sequence:  row.Seq,
		Timestamp: row.CreatedAt.UTC(),
	}, nil
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
