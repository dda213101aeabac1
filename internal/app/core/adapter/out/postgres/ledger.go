package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

// schema 與 MySQL 版本相同的兩張表
const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id         uuid PRIMARY KEY,
	owner_id   varchar(64)   NOT NULL,
	name       varchar(100)  NOT NULL,
	mobile     char(10)      NOT NULL,
	address    varchar(250)  NOT NULL DEFAULT '',
	balance    numeric(18,2) NOT NULL DEFAULT 0,
	tx_count   bigint        NOT NULL DEFAULT 0,
	created_at timestamptz   NOT NULL,
	updated_at timestamptz   NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_customers_owner_name ON customers (owner_id, lower(name));

CREATE TABLE IF NOT EXISTS transactions (
	id          uuid PRIMARY KEY,
	owner_id    varchar(64)   NOT NULL,
	customer_id uuid          NOT NULL REFERENCES customers (id),
	seq         bigint        NOT NULL,
	kind        smallint      NOT NULL CHECK (kind IN (1, 2)),
	amount      numeric(18,2) NOT NULL CHECK (amount > 0),
	notes       varchar(500)  NOT NULL DEFAULT '',
	created_at  timestamptz   NOT NULL,
	UNIQUE (customer_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_transactions_history ON transactions (customer_id, created_at DESC, seq DESC);
`

// PostgresLedger 以 PostgreSQL (pgx) 實作 usecase.Ledger
// 寫入路徑以 SELECT ... FOR UPDATE 鎖住客戶列，餘額與交易在同一個 DB Transaction 內提交
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Migrate 建立資料表 (可重複執行)
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

const customerColumns = `id::text, owner_id, name, mobile, address, balance::text, tx_count, created_at, updated_at`

// ListCustomers 列出 owner 的客戶 (不分大小寫依名稱排序)
func (l *PostgresLedger) ListCustomers(ctx context.Context, ownerID string) ([]domain.Customer, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE owner_id = $1
		 ORDER BY lower(name), id`,
		ownerID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, mapError(rows.Err())
}

// GetCustomer 取得客戶與交易紀錄
func (l *PostgresLedger) GetCustomer(ctx context.Context, ownerID string, customerID uuid.UUID) (*domain.Customer, error) {
	var customer *domain.Customer
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var err error
		customer, err = loadCustomer(ctx, tx, ownerID, customerID, false)
		if err != nil {
			return err
		}
		customer.Transactions, err = loadTransactions(ctx, tx, customerID)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return customer, nil
}

// CreateCustomer 新增客戶
func (l *PostgresLedger) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO customers (id, owner_id, name, mobile, address, balance, tx_count, created_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, 0, 0, $6, $7)`,
		c.ID.String(), c.OwnerID, c.Name, c.Mobile, c.Address, c.CreatedAt, c.UpdatedAt,
	)
	return mapError(err)
}

// UpdateCustomer 更新客戶基本資料 (不觸碰 balance / tx_count)
func (l *PostgresLedger) UpdateCustomer(ctx context.Context, ownerID string, customerID uuid.UUID, patch domain.CustomerPatch, updatedAt time.Time) (*domain.Customer, error) {
	var customer *domain.Customer
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		customer, err = loadCustomer(ctx, tx, ownerID, customerID, true)
		if err != nil {
			return err
		}
		customer.Apply(patch, updatedAt)
		if _, err := tx.Exec(ctx,
			`UPDATE customers SET name = $2, mobile = $3, address = $4, updated_at = $5 WHERE id = $1::uuid`,
			customerID.String(), customer.Name, customer.Mobile, customer.Address, customer.UpdatedAt,
		); err != nil {
			return err
		}
		customer.Transactions, err = loadTransactions(ctx, tx, customerID)
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
func (l *PostgresLedger) AddTransaction(ctx context.Context, ownerID string, customerID uuid.UUID, tran *domain.Transaction) (*domain.Receipt, error) {
	var receipt *domain.Receipt
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// 1. 鎖住客戶列
		customer, err := loadCustomer(ctx, tx, ownerID, customerID, true)
		if err != nil {
			return err
		}

		// 2. 檢查交易 ID 是否已處理過
		var (
			doneCustomer, doneOwner, doneAmount string
			doneKind                            int16
			doneSeq                             int64
			doneAt                              time.Time
			doneNotes                           string
		)
		err = tx.QueryRow(ctx,
			`SELECT customer_id::text, owner_id, kind, amount::text, seq, notes, created_at
			 FROM transactions WHERE id = $1::uuid`,
			tran.ID.String(),
		).Scan(&doneCustomer, &doneOwner, &doneKind, &doneAmount, &doneSeq, &doneNotes, &doneAt)
		switch {
		case err == nil:
			amount, err := decimal.NewFromString(doneAmount)
			if err != nil {
				return err
			}
			done := domain.Transaction{
				ID:        tran.ID,
				Kind:      domain.TransactionKind(doneKind),
				Amount:    amount,
				Notes:     doneNotes,
				Sequence:  uint64(doneSeq),
				Timestamp: doneAt.UTC(),
			}
			if doneCustomer != customerID.String() || doneOwner != ownerID || !done.SameRequest(tran) {
				return domain.ErrIdempotencyConflict
			}
			receipt = &domain.Receipt{Transaction: done, Balance: customer.Balance, Replayed: true}
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		// 3. 更新快取餘額與序號
		recorded := *tran
		recorded.Sequence = customer.TxCount + 1
		balance := customer.Balance.Add(recorded.Delta())
		if _, err := tx.Exec(ctx,
			`UPDATE customers SET balance = $2::numeric, tx_count = $3, updated_at = $4 WHERE id = $1::uuid`,
			customerID.String(), balance.String(), int64(recorded.Sequence), recorded.Timestamp,
		); err != nil {
			return err
		}

		// 4. 建立交易紀錄
		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, owner_id, customer_id, seq, kind, amount, notes, created_at)
			 VALUES ($1::uuid, $2, $3::uuid, $4, $5, $6::numeric, $7, $8)`,
			recorded.ID.String(), ownerID, customerID.String(), int64(recorded.Sequence),
			int16(recorded.Kind), recorded.Amount.String(), recorded.Notes, recorded.Timestamp,
		); err != nil {
			return err
		}
		receipt = &domain.Receipt{Transaction: recorded, Balance: balance}
		return nil
	})
	if err != nil {
		err = mapError(err)
		if errors.Is(err, domain.ErrTransientStore) {
			log.Printf("[postgres] add transaction %s for customer %s: %v", tran.ID, customerID, err)
		}
		return nil, err
	}
	return receipt, nil
}

// loadCustomer 讀取 owner 名下的客戶；lock 為 true 時加上 FOR UPDATE
func loadCustomer(ctx context.Context, tx pgx.Tx, ownerID string, customerID uuid.UUID, lock bool) (*domain.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1::uuid AND owner_id = $2`
	if lock {
		q += ` FOR UPDATE`
	}
	c, err := scanCustomer(tx.QueryRow(ctx, q, customerID.String(), ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	return c, err
}

// loadTransactions 讀取交易 (由新到舊)
func loadTransactions(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := tx.Query(ctx,
		`SELECT id::text, kind, amount::text, seq, notes, created_at
		 FROM transactions
		 WHERE customer_id = $1::uuid
		 ORDER BY created_at DESC, seq DESC`,
		customerID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		var (
			id, amount string
			kind       int16
			seq        int64
			t          domain.Transaction
		)
		if err := rows.Scan(&id, &kind, &amount, &seq, &t.Notes, &t.Timestamp); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("transaction id %q: %w", id, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction amount %q: %w", amount, err)
		}
		t.Kind = domain.TransactionKind(kind)
		t.Sequence = uint64(seq)
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		c           domain.Customer
		id, balance string
		txCount     int64
	)
	if err := row.Scan(&id, &c.OwnerID, &c.Name, &c.Mobile, &c.Address, &balance, &txCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("customer id %q: %w", id, err)
	}
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("customer balance %q: %w", balance, err)
	}
	c.TxCount = uint64(txCount)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

var _ usecase.Ledger = (*PostgresLedger)(nil)
