package mysql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"deadlock", &gomysql.MySQLError{Number: 1213, Message: "Deadlock found"}, domain.ErrTransientStore},
		{"lock wait", fmt.Errorf("wrapped: %w", &gomysql.MySQLError{Number: 1205}), domain.ErrTransientStore},
		{"bad conn", driver.ErrBadConn, domain.ErrTransientStore},
		{"duplicate tx id", &gomysql.MySQLError{Number: 1062}, domain.ErrIdempotencyConflict},
		{"not found passthrough", domain.ErrCustomerNotFound, domain.ErrCustomerNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := mapError(c.in); !errors.Is(got, c.want) {
				t.Fatalf("mapError(%v) got=%v want %v", c.in, got, c.want)
			}
		})
	}

	other := errors.New("syntax error")
	if got := mapError(other); got != other || errors.Is(got, domain.ErrTransientStore) {
		t.Fatalf("unrelated error should pass through, got=%v", got)
	}
	if mapError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestSQLRows_ToDomain(t *testing.T) {
	row := sqlTransaction{ID: "not-a-uuid"}
	if _, err := row.toDomain(); err == nil {
		t.Fatalf("invalid id should fail")
	}
	cust := sqlCustomer{ID: "6f1c1f8e-4a5b-4d7a-9c3e-1b2a3c4d5e6f", OwnerID: "o", Name: "Priya"}
	got, err := cust.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if got.ID.String() != cust.ID || got.Name != "Priya" {
		t.Fatalf("customer got=%+v", got)
	}
}
