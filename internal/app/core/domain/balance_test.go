package domain_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

func TestCalculateBalance_Empty(t *testing.T) {
	if got := domain.CalculateBalance(nil); !got.IsZero() {
		t.Fatalf("balance got=%s want=0", got)
	}
}

func TestCalculateBalance_CreditMinusDebit(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.KindCredit, "5000"),
		tx(domain.KindDebit, "2000"),
		tx(domain.KindCredit, "0.10"),
		tx(domain.KindCredit, "0.20"),
		tx(domain.KindDebit, "0.30"),
	}
	want := decimal.RequireFromString("3000")
	if got := domain.CalculateBalance(txs); !got.Equal(want) {
		t.Fatalf("balance got=%s want=%s", got, want)
	}
}

func TestCalculateBalance_OrderIndependent(t *testing.T) {
	txs := make([]domain.Transaction, 0, 200)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		kind := domain.KindCredit
		if r.Intn(2) == 0 {
			kind = domain.KindDebit
		}
		amount := decimal.New(int64(r.Intn(1_000_000)+1), -2)
		txs = append(txs, domain.Transaction{ID: uuid.New(), Kind: kind, Amount: amount})
	}
	want := domain.CalculateBalance(txs)

	credits, debits := decimal.Zero, decimal.Zero
	for _, x := range txs {
		if x.Kind == domain.KindCredit {
			credits = credits.Add(x.Amount)
		} else {
			debits = debits.Add(x.Amount)
		}
	}
	if !want.Equal(credits.Sub(debits)) {
		t.Fatalf("balance got=%s want=%s", want, credits.Sub(debits))
	}

	for round := 0; round < 10; round++ {
		r.Shuffle(len(txs), func(i, j int) { txs[i], txs[j] = txs[j], txs[i] })
		if got := domain.CalculateBalance(txs); !got.Equal(want) {
			t.Fatalf("round %d balance got=%s want=%s", round, got, want)
		}
	}
}

func TestSortNewestFirst_TiesBySequence(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{Sequence: 1, Timestamp: base},
		{Sequence: 3, Timestamp: base.Add(time.Second)},
		{Sequence: 2, Timestamp: base},
		{Sequence: 4, Timestamp: base.Add(time.Second)},
	}
	domain.SortNewestFirst(txs)

	want := []uint64{4, 3, 2, 1}
	for i, w := range want {
		if txs[i].Sequence != w {
			t.Fatalf("position %d sequence got=%d want=%d", i, txs[i].Sequence, w)
		}
	}
}

func TestIsNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ordered := []domain.Transaction{
		{Sequence: 3, Timestamp: base.Add(time.Second)},
		{Sequence: 2, Timestamp: base},
		{Sequence: 1, Timestamp: base},
	}
	if !domain.IsNewestFirst(ordered) {
		t.Fatalf("ordered history reported as unordered")
	}
	// 時鐘倒退：sequence 較大但時間較早
	skewed := []domain.Transaction{
		{Sequence: 2, Timestamp: base},
		{Sequence: 1, Timestamp: base.Add(time.Second)},
	}
	if domain.IsNewestFirst(skewed) {
		t.Fatalf("skewed history reported as ordered")
	}
	if !domain.IsNewestFirst(nil) {
		t.Fatalf("empty history should be ordered")
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		balance string
		want    domain.BalanceStatus
	}{
		{"5000", domain.StatusYoullGet},
		{"-0.01", domain.StatusYoullGive},
		{"0", domain.StatusSettled},
		{"0.00", domain.StatusSettled},
	}
	for _, c := range cases {
		if got := domain.StatusOf(decimal.RequireFromString(c.balance)); got != c.want {
			t.Fatalf("StatusOf(%s) got=%q want=%q", c.balance, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	customers := []domain.Customer{
		{Balance: decimal.RequireFromString("100.50")},
		{Balance: decimal.RequireFromString("-40")},
		{Balance: decimal.Zero},
		{Balance: decimal.RequireFromString("9.50")},
		{Balance: decimal.RequireFromString("-0.25")},
	}
	s := domain.Summarize(customers)
	if !s.TotalToCollect.Equal(decimal.RequireFromString("110")) {
		t.Fatalf("TotalToCollect got=%s want=110", s.TotalToCollect)
	}
	if !s.TotalToGive.Equal(decimal.RequireFromString("40.25")) {
		t.Fatalf("TotalToGive got=%s want=40.25", s.TotalToGive)
	}
	if s.TotalCustomers != 5 {
		t.Fatalf("TotalCustomers got=%d want=5", s.TotalCustomers)
	}
}

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		amount string
		ok     bool
	}{
		{"0.01", true},
		{"5000", true},
		{"999999999999.99", true},
		{"0", false},
		{"-1", false},
		{"0.001", false},
		{"1000000000000", false},
	}
	for _, c := range cases {
		err := domain.ValidateAmount(decimal.RequireFromString(c.amount))
		if c.ok && err != nil {
			t.Fatalf("ValidateAmount(%s) unexpected err: %v", c.amount, err)
		}
		if !c.ok && !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("ValidateAmount(%s) err got=%v want ErrValidation", c.amount, err)
		}
	}
}

func tx(kind domain.TransactionKind, amount string) domain.Transaction {
	return domain.Transaction{ID: uuid.New(), Kind: kind, Amount: decimal.RequireFromString(amount)}
}

func TestParseAmount(t *testing.T) {
	got, err := domain.ParseAmount(" 2000.50 ")
	if err != nil || !got.Equal(decimal.RequireFromString("2000.5")) {
		t.Fatalf("ParseAmount got=%s err=%v", got, err)
	}
	for _, bad := range []string{"", "abc", "1e", "-3", "0.125"} {
		var ve *domain.ValidationError
		if _, err := domain.ParseAmount(bad); !errors.As(err, &ve) || ve.Field != "amount" {
			t.Fatalf("ParseAmount(%q) err=%v want amount ValidationError", bad, err)
		}
	}
}

func TestParseID(t *testing.T) {
	id := uuid.New()
	if got, err := domain.ParseID("customerId", id.String()); err != nil || got != id {
		t.Fatalf("ParseID got=%s err=%v", got, err)
	}
	var ve *domain.ValidationError
	if _, err := domain.ParseID("customerId", "42"); !errors.As(err, &ve) || ve.Field != "customerId" {
		t.Fatalf("ParseID err=%v", err)
	}
}
