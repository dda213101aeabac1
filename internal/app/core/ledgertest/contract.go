// Package ledgertest 提供所有 usecase.Ledger 實作共用的行為測試
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

// Factory 每個子測試都會取得一個全新的 Ledger
type Factory func(t *testing.T) usecase.Ledger

// Run 執行完整的行為測試
func Run(t *testing.T, newLedger Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newLedger(t)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newLedger(t)) })
	t.Run("ListSortedByName", func(t *testing.T) { testListSortedByName(t, newLedger(t)) })
	t.Run("BalanceLifecycle", func(t *testing.T) { testBalanceLifecycle(t, newLedger(t)) })
	t.Run("IdempotentReplay", func(t *testing.T) { testIdempotentReplay(t, newLedger(t)) })
	t.Run("UnknownCustomer", func(t *testing.T) { testUnknownCustomer(t, newLedger(t)) })
	t.Run("UpdateKeepsBalance", func(t *testing.T) { testUpdateKeepsBalance(t, newLedger(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newLedger(t)) })
}

// NewCustomer 建立並寫入一個客戶
func NewCustomer(t *testing.T, l usecase.Ledger, ownerID, name string) *domain.Customer {
	t.Helper()
	c, err := domain.NewCustomer(ownerID, domain.CustomerInput{Name: name, Mobile: "9876543210"}, time.Now())
	if err != nil {
		t.Fatalf("new customer: %v", err)
	}
	if err := l.CreateCustomer(context.Background(), c); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

// Add 新增一筆交易並回傳收據
func Add(t *testing.T, l usecase.Ledger, ownerID string, customerID uuid.UUID, kind domain.TransactionKind, amount string) *domain.Receipt {
	t.Helper()
	tran := MustTransaction(t, uuid.Nil, kind, amount)
	r, err := l.AddTransaction(context.Background(), ownerID, customerID, tran)
	if err != nil {
		t.Fatalf("add %s %s: %v", kind, amount, err)
	}
	return r
}

// MustTransaction 建立合法的交易
func MustTransaction(t *testing.T, id uuid.UUID, kind domain.TransactionKind, amount string) *domain.Transaction {
	t.Helper()
	tran, err := domain.NewTransaction(domain.TransactionInput{
		ID:     id,
		Kind:   kind,
		Amount: decimal.RequireFromString(amount),
	}, time.Now())
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	return tran
}

func testCreateAndGet(t *testing.T, l usecase.Ledger) {
	c := NewCustomer(t, l, "owner-a", "Priya Sharma")

	got, err := l.GetCustomer(context.Background(), "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Priya Sharma" || got.Mobile != "9876543210" {
		t.Fatalf("customer got=%+v", got)
	}
	if !got.Balance.IsZero() || len(got.Transactions) != 0 {
		t.Fatalf("new customer should be settled with no history, got balance=%s txs=%d", got.Balance, len(got.Transactions))
	}
}

func testOwnerScoping(t *testing.T, l usecase.Ledger) {
	ctx := context.Background()
	c := NewCustomer(t, l, "owner-a", "Priya Sharma")

	if _, err := l.GetCustomer(ctx, "owner-b", c.ID); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("foreign get err got=%v want ErrCustomerNotFound", err)
	}
	name := "Mallory"
	if _, err := l.UpdateCustomer(ctx, "owner-b", c.ID, domain.CustomerPatch{Name: &name}, time.Now()); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("foreign update err got=%v want ErrCustomerNotFound", err)
	}
	tran := MustTransaction(t, uuid.Nil, domain.KindCredit, "100")
	if _, err := l.AddTransaction(ctx, "owner-b", c.ID, tran); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("foreign add err got=%v want ErrCustomerNotFound", err)
	}
	list, err := l.ListCustomers(ctx, "owner-b")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("foreign list got=%d want=0", len(list))
	}

	got, err := l.GetCustomer(ctx, "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Priya Sharma" || !got.Balance.IsZero() {
		t.Fatalf("foreign calls must not change the customer: %+v", got)
	}
}

func testListSortedByName(t *testing.T, l usecase.Ledger) {
	for _, name := range []string{"ravi", "Anil", "meena"} {
		NewCustomer(t, l, "owner-a", name)
	}
	NewCustomer(t, l, "owner-b", "Bob")

	list, err := l.ListCustomers(context.Background(), "owner-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Anil", "meena", "ravi"}
	if len(list) != len(want) {
		t.Fatalf("list length got=%d want=%d", len(list), len(want))
	}
	for i, w := range want {
		if list[i].Name != w {
			t.Fatalf("position %d got=%s want=%s", i, list[i].Name, w)
		}
	}
}

func testBalanceLifecycle(t *testing.T, l usecase.Ledger) {
	c := NewCustomer(t, l, "owner-a", "Priya Sharma")

	steps := []struct {
		kind    domain.TransactionKind
		amount  string
		balance string
	}{
		{domain.KindCredit, "5000", "5000"},
		{domain.KindDebit, "2000", "3000"},
		{domain.KindDebit, "3000", "0"},
		{domain.KindDebit, "10.50", "-10.50"},
	}
	for i, s := range steps {
		r := Add(t, l, "owner-a", c.ID, s.kind, s.amount)
		if !r.Balance.Equal(decimal.RequireFromString(s.balance)) {
			t.Fatalf("step %d receipt balance got=%s want=%s", i, r.Balance, s.balance)
		}
		if r.Replayed {
			t.Fatalf("step %d should not be a replay", i)
		}
		if r.Transaction.Sequence != uint64(i+1) {
			t.Fatalf("step %d sequence got=%d want=%d", i, r.Transaction.Sequence, i+1)
		}
	}

	got, err := l.GetCustomer(context.Background(), "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Transactions) != len(steps) {
		t.Fatalf("history length got=%d want=%d", len(got.Transactions), len(steps))
	}
	if !got.Balance.Equal(domain.CalculateBalance(got.Transactions)) {
		t.Fatalf("stored balance %s != computed %s", got.Balance, domain.CalculateBalance(got.Transactions))
	}
	for i := 1; i < len(got.Transactions); i++ {
		prev, cur := got.Transactions[i-1], got.Transactions[i]
		if cur.Timestamp.After(prev.Timestamp) || (cur.Timestamp.Equal(prev.Timestamp) && cur.Sequence > prev.Sequence) {
			t.Fatalf("history not newest first at %d: %v/%d before %v/%d", i, prev.Timestamp, prev.Sequence, cur.Timestamp, cur.Sequence)
		}
	}
	if got.Status() != domain.StatusYoullGive {
		t.Fatalf("status got=%q want=%q", got.Status(), domain.StatusYoullGive)
	}
}

func testIdempotentReplay(t *testing.T, l usecase.Ledger) {
	ctx := context.Background()
	c := NewCustomer(t, l, "owner-a", "Priya Sharma")
	id := uuid.New()

	first, err := l.AddTransaction(ctx, "owner-a", c.ID, MustTransaction(t, id, domain.KindCredit, "250.75"))
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	again, err := l.AddTransaction(ctx, "owner-a", c.ID, MustTransaction(t, id, domain.KindCredit, "250.75"))
	if err != nil {
		t.Fatalf("replay add: %v", err)
	}
	if !again.Replayed {
		t.Fatalf("second add with same id should be a replay")
	}
	if !again.Balance.Equal(first.Balance) || again.Transaction.Sequence != first.Transaction.Sequence {
		t.Fatalf("replay changed state: first=%+v again=%+v", first, again)
	}

	if _, err := l.AddTransaction(ctx, "owner-a", c.ID, MustTransaction(t, id, domain.KindDebit, "250.75")); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("conflicting reuse err got=%v want ErrIdempotencyConflict", err)
	}

	got, err := l.GetCustomer(ctx, "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Transactions) != 1 || !got.Balance.Equal(decimal.RequireFromString("250.75")) {
		t.Fatalf("replays must not double count: txs=%d balance=%s", len(got.Transactions), got.Balance)
	}
}

func testUnknownCustomer(t *testing.T, l usecase.Ledger) {
	ctx := context.Background()
	if _, err := l.GetCustomer(ctx, "owner-a", uuid.New()); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("get err got=%v want ErrCustomerNotFound", err)
	}
	tran := MustTransaction(t, uuid.Nil, domain.KindCredit, "1")
	if _, err := l.AddTransaction(ctx, "owner-a", uuid.New(), tran); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("add err got=%v want ErrCustomerNotFound", err)
	}
}

func testUpdateKeepsBalance(t *testing.T, l usecase.Ledger) {
	ctx := context.Background()
	c := NewCustomer(t, l, "owner-a", "Priya Sharma")
	Add(t, l, "owner-a", c.ID, domain.KindCredit, "5000")

	name, address := "Priya S.", "12 Park Street"
	stamp := c.CreatedAt.Add(90 * time.Minute)
	updated, err := l.UpdateCustomer(ctx, "owner-a", c.ID, domain.CustomerPatch{Name: &name, Address: &address}, stamp)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.Equal(stamp.UTC().Truncate(time.Microsecond)) {
		t.Fatalf("updated_at got=%v want=%v", updated.UpdatedAt, stamp)
	}
	if updated.Name != name || updated.Address != address || updated.Mobile != "9876543210" {
		t.Fatalf("updated customer got=%+v", updated)
	}
	if !updated.Balance.Equal(decimal.RequireFromString("5000")) || len(updated.Transactions) != 1 {
		t.Fatalf("update must not touch balance or history: balance=%s txs=%d", updated.Balance, len(updated.Transactions))
	}
}

func testConcurrentAppends(t *testing.T, l usecase.Ledger) {
	const writers = 20
	const perWriter = 5
	c := NewCustomer(t, l, "owner-a", "Priya Sharma")

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				kind := domain.KindCredit
				if (w+i)%4 == 0 {
					kind = domain.KindDebit
				}
				tran, err := domain.NewTransaction(domain.TransactionInput{Kind: kind, Amount: decimal.RequireFromString("1.25")}, time.Now())
				if err != nil {
					errs <- err
					return
				}
				if _, err := l.AddTransaction(context.Background(), "owner-a", c.ID, tran); err != nil {
					errs <- fmt.Errorf("writer %d op %d: %w", w, i, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent add: %v", err)
	}

	got, err := l.GetCustomer(context.Background(), "owner-a", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Transactions) != writers*perWriter {
		t.Fatalf("history length got=%d want=%d (lost update)", len(got.Transactions), writers*perWriter)
	}
	if !got.Balance.Equal(domain.CalculateBalance(got.Transactions)) {
		t.Fatalf("stored balance %s != computed %s", got.Balance, domain.CalculateBalance(got.Transactions))
	}
	seen := make(map[uint64]bool, len(got.Transactions))
	for _, tx := range got.Transactions {
		if seen[tx.Sequence] {
			t.Fatalf("duplicate sequence %d", tx.Sequence)
		}
		seen[tx.Sequence] = true
	}
}
