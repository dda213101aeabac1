package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/ledgertest"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-khata-ledger/pkg/wal"
)

func TestMutexLedger_Contract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) usecase.Ledger {
		l, err := NewMutexLedger(nil)
		if err != nil {
			t.Fatalf("new ledger: %v", err)
		}
		return l
	})
}

func TestMutexLedger_ContractWithWAL(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) usecase.Ledger {
		w, err := wal.NewWAL(filepath.Join(t.TempDir(), "ledger.wal"))
		if err != nil {
			t.Fatalf("open wal: %v", err)
		}
		t.Cleanup(func() { w.Close() })
		l, err := NewMutexLedger(w)
		if err != nil {
			t.Fatalf("new ledger: %v", err)
		}
		return l
	})
}

func TestMutexLedger_RecoverFromWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := wal.NewWAL(path)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	l, err := NewMutexLedger(w)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	c := ledgertest.NewCustomer(t, l, "owner-a", "Priya Sharma")
	ledgertest.Add(t, l, "owner-a", c.ID, domain.KindCredit, "5000")
	ledgertest.Add(t, l, "owner-a", c.ID, domain.KindDebit, "2000")
	replayID := uuid.New()
	if _, err := l.AddTransaction(context.Background(), "owner-a", c.ID, ledgertest.MustTransaction(t, replayID, domain.KindDebit, "500")); err != nil {
		t.Fatalf("add: %v", err)
	}
	mobile := "9123456780"
	if _, err := l.UpdateCustomer(context.Background(), "owner-a", c.ID, domain.CustomerPatch{Mobile: &mobile}, time.Now()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	w, err = wal.NewWAL(path)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	defer w.Close()
	recovered, err := NewMutexLedger(w)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	got, err := recovered.GetCustomer(context.Background(), "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("2500")) {
		t.Fatalf("recovered balance got=%s want=2500", got.Balance)
	}
	if got.Mobile != mobile || got.TxCount != 3 || len(got.Transactions) != 3 {
		t.Fatalf("recovered customer got=%+v", got)
	}

	// 恢復後仍記得已處理過的交易
	r, err := recovered.AddTransaction(context.Background(), "owner-a", c.ID, ledgertest.MustTransaction(t, replayID, domain.KindDebit, "500"))
	if err != nil {
		t.Fatalf("replay after recovery: %v", err)
	}
	if !r.Replayed || !r.Balance.Equal(decimal.RequireFromString("2500")) {
		t.Fatalf("replay after recovery got=%+v", r)
	}
}

func TestMutexLedger_RecoverSkipsDuplicateTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := wal.NewWAL(path)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()

	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	customerID, tranID := uuid.New(), uuid.New()
	records := []*walRecord{
		{Op: opCreateCustomer, OwnerID: "owner-a", CustomerID: customerID, Name: "Priya Sharma", Mobile: "9876543210", At: at},
		{Op: opAddTransaction, OwnerID: "owner-a", CustomerID: customerID, TranID: tranID, Kind: domain.KindCredit, Amount: decimal.NewFromInt(5000), At: at},
		// 第一次寫入回報失敗後以相同交易 ID 重試
		{Op: opAddTransaction, OwnerID: "owner-a", CustomerID: customerID, TranID: tranID, Kind: domain.KindCredit, Amount: decimal.NewFromInt(5000), At: at},
	}
	for i, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatalf("write record %d: %v", i, err)
		}
	}

	l, err := NewMutexLedger(w)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	got, err := l.GetCustomer(context.Background(), "owner-a", customerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(5000)) || got.TxCount != 1 || len(got.Transactions) != 1 {
		t.Fatalf("duplicate record counted twice: balance=%s txs=%d", got.Balance, len(got.Transactions))
	}
}

func TestMutexLedger_SnapshotIsNewestFirst(t *testing.T) {
	l, err := NewMutexLedger(nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	c := ledgertest.NewCustomer(t, l, "owner-a", "Priya Sharma")
	for i := 0; i < 5; i++ {
		ledgertest.Add(t, l, "owner-a", c.ID, domain.KindCredit, "10")
	}
	got, err := l.GetCustomer(context.Background(), "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i, tx := range got.Transactions {
		if want := uint64(5 - i); tx.Sequence != want {
			t.Fatalf("position %d sequence got=%d want=%d", i, tx.Sequence, want)
		}
	}
}
