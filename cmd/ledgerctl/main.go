// ledgerctl 透過 gRPC 操作帳本服務，也可用來壓測同一客戶的並發入帳
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	grpc_adapter "github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/in/grpc"
	grpcpkg "github.com/JoeShih716/go-khata-ledger/pkg/grpc"
)

const usage = `usage: ledgerctl [-addr host:port] [-token jwt] <command> [flags]

commands:
  otp      -mobile 9876543210
  verify   -mobile 9876543210 -code 123456
  list
  create   -name Priya -mobile 9123456780 [-address ...]
  get      -id <customer>
  add      -id <customer> -kind credit|debit -amount 5000 [-notes ...] [-tx <uuid>]
  summary
  stress   -id <customer> [-n 1000] [-c 100] [-amount 1]
`

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC 位址")
	token := flag.String("token", os.Getenv("KHATA_TOKEN"), "session token (預設 $KHATA_TOKEN)")
	timeout := flag.Duration("timeout", 2*time.Minute, "整體逾時")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	pool := grpcpkg.NewPool(grpcpkg.WithBearerToken(*token))
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	ledger := grpc_adapter.NewLedgerClient(conn)
	authClient := grpc_adapter.NewAuthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	mobile := fs.String("mobile", "", "手機號碼")
	code := fs.String("code", "", "驗證碼")
	name := fs.String("name", "", "客戶名稱")
	address := fs.String("address", "", "地址")
	id := fs.String("id", "", "客戶 ID")
	kind := fs.String("kind", "credit", "credit | debit")
	amount := fs.String("amount", "1", "金額")
	notes := fs.String("notes", "", "備註")
	txID := fs.String("tx", "", "交易 ID (冪等鍵)")
	total := fs.Int("n", 1000, "stress: 總筆數")
	concurrency := fs.Int("c", 100, "stress: 並發數")
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}

	var out any
	switch cmd {
	case "otp":
		out, err = authClient.StartSignIn(ctx, &grpc_adapter.StartSignInRequest{Mobile: *mobile})
	case "verify":
		out, err = authClient.VerifySignIn(ctx, &grpc_adapter.VerifySignInRequest{Mobile: *mobile, Code: *code})
	case "list":
		out, err = ledger.ListCustomers(ctx, &grpc_adapter.ListCustomersRequest{})
	case "create":
		out, err = ledger.CreateCustomer(ctx, &grpc_adapter.CreateCustomerRequest{Name: *name, Mobile: *mobile, Address: *address})
	case "get":
		out, err = ledger.GetCustomer(ctx, &grpc_adapter.GetCustomerRequest{CustomerID: *id})
	case "add":
		out, err = ledger.AddTransaction(ctx, &grpc_adapter.AddTransactionRequest{
			CustomerID: *id, TransactionID: *txID, Kind: *kind, Amount: *amount, Notes: *notes,
		})
	case "summary":
		out, err = ledger.GetSummary(ctx, &grpc_adapter.GetSummaryRequest{})
	case "stress":
		err = stress(ctx, ledger, *id, *amount, *total, *concurrency)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatal(err)
		}
	}
}

// stress 對同一客戶並發送出 total 筆 credit，最後比對餘額增量確認沒有遺失更新
func stress(ctx context.Context, ledger *grpc_adapter.LedgerClient, customerID, amount string, total, concurrency int) error {
	unit, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	before, err := ledger.GetCustomer(ctx, &grpc_adapter.GetCustomerRequest{CustomerID: customerID})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var failed atomic.Int64
	sem := make(chan struct{}, concurrency)
	startTime := time.Now()

	for i := 0; i < total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			_, err := ledger.AddTransaction(ctx, &grpc_adapter.AddTransactionRequest{
				CustomerID:    customerID,
				TransactionID: uuid.NewString(),
				Kind:          "credit",
				Amount:        amount,
			})
			if err != nil {
				failed.Add(1)
				if idx%100 == 0 {
					log.Printf("AddTransaction %d failed: %v", idx, err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	after, err := ledger.GetCustomer(ctx, &grpc_adapter.GetCustomerRequest{CustomerID: customerID})
	if err != nil {
		return err
	}
	start, _ := decimal.NewFromString(before.Customer.Balance)
	end, _ := decimal.NewFromString(after.Customer.Balance)
	ok := int64(total) - failed.Load()
	want := start.Add(unit.Mul(decimal.NewFromInt(ok)))

	fmt.Printf("Completed %d requests (%d failed) in %v\n", total, failed.Load(), elapsed)
	fmt.Printf("TPS: %.2f\n", float64(total)/elapsed.Seconds())
	fmt.Printf("Balance %s -> %s (expected %s)\n", before.Customer.Balance, after.Customer.Balance, want.StringFixed(2))
	if !end.Equal(want) {
		return fmt.Errorf("lost updates: balance %s, expected %s", end.StringFixed(2), want.StringFixed(2))
	}
	return nil
}
