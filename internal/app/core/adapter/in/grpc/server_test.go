package grpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/adapter/out/reminder"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
	grpcpkg "github.com/JoeShih716/go-khata-ledger/pkg/grpc"
)

type captureSender struct {
	codes map[string]string
}

func (s *captureSender) SendCode(ctx context.Context, mobile, code string) error {
	s.codes[mobile] = code
	return nil
}

type harness struct {
	ledger *LedgerClient
	auth   *AuthClient
	conn   *grpc.ClientConn
	sender *captureSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	core := usecase.NewCoreUseCase(store, reminder.NewTemplateGenerator(), usecase.Options{})
	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: "grpc-test-secret-0123"})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	sender := &captureSender{codes: map[string]string{}}
	phone := auth.NewPhoneAuth(auth.NewMemoryCodeStore(), sender, tokens, auth.OTPConfig{})

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewGrpcServer(core), NewAuthServer(phone), tokens, ServerConfig{RequestTimeout: 5 * time.Second})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpcpkg.JSONCodecName)),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &harness{ledger: NewLedgerClient(conn), auth: NewAuthClient(conn), conn: conn, sender: sender}
}

// signIn 走完手機驗證流程並回傳帶 token 的 context
func (h *harness) signIn(t *testing.T, mobile string) context.Context {
	t.Helper()
	ctx := context.Background()
	if _, err := h.auth.StartSignIn(ctx, &StartSignInRequest{Mobile: mobile}); err != nil {
		t.Fatalf("start sign in: %v", err)
	}
	resp, err := h.auth.VerifySignIn(ctx, &VerifySignInRequest{Mobile: mobile, Code: h.sender.codes[mobile]})
	if err != nil {
		t.Fatalf("verify sign in: %v", err)
	}
	if resp.OwnerID != auth.OwnerIDForMobile(mobile) || resp.Token == "" {
		t.Fatalf("session got=%+v", resp)
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+resp.Token)
}

func wantCode(t *testing.T, err error, want codes.Code) *status.Status {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok || st.Code() != want {
		t.Fatalf("err got=%v want code %s", err, want)
	}
	return st
}

func TestGrpc_BalanceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := h.signIn(t, "9876543210")

	created, err := h.ledger.CreateCustomer(ctx, &CreateCustomerRequest{Name: "Priya", Mobile: "9123456780"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.Customer.ID

	steps := []struct {
		kind, amount, balance, status string
	}{
		{"credit", "5000", "5000.00", "You'll Get"},
		{"debit", "2000", "3000.00", "You'll Get"},
		{"debit", "3000", "0.00", "Settled"},
	}
	for i, s := range steps {
		resp, err := h.ledger.AddTransaction(ctx, &AddTransactionRequest{CustomerID: id, Kind: s.kind, Amount: s.amount})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if resp.Balance != s.balance || resp.Status != s.status || resp.Transaction.Sequence != uint64(i+1) {
			t.Fatalf("step %d got=%+v", i, resp)
		}
	}

	got, err := h.ledger.GetCustomer(ctx, &GetCustomerRequest{CustomerID: id})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Customer.Transactions) != 3 || got.Customer.Transactions[0].Sequence != 3 {
		t.Fatalf("history should be newest first, got=%+v", got.Customer.Transactions)
	}
	if got.Customer.CreatedAt == nil || got.Customer.CreatedAt.AsTime().IsZero() {
		t.Fatalf("createdAt should survive the json codec")
	}

	rec, err := h.ledger.Reconcile(ctx, &ReconcileRequest{})
	if err != nil || len(rec.Results) != 1 || !rec.Results[0].Consistent {
		t.Fatalf("reconcile got=%+v err=%v", rec, err)
	}
}

func TestGrpc_RequiresToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.ListCustomers(context.Background(), &ListCustomersRequest{})
	wantCode(t, err, codes.Unauthenticated)

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")
	_, err = h.ledger.ListCustomers(bad, &ListCustomersRequest{})
	wantCode(t, err, codes.Unauthenticated)
}

func TestGrpc_ValidationDetails(t *testing.T) {
	h := newHarness(t)
	ctx := h.signIn(t, "9876543210")

	_, err := h.ledger.CreateCustomer(ctx, &CreateCustomerRequest{Name: "Priya", Mobile: "12345"})
	st := wantCode(t, err, codes.InvalidArgument)
	var field string
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok && len(br.FieldViolations) > 0 {
			field = br.FieldViolations[0].Field
		}
	}
	if field != "mobile" {
		t.Fatalf("field violation got=%q want mobile", field)
	}

	_, err = h.ledger.GetCustomer(ctx, &GetCustomerRequest{CustomerID: "not-an-id"})
	wantCode(t, err, codes.InvalidArgument)

	list, err := h.ledger.ListCustomers(ctx, &ListCustomersRequest{})
	if err != nil || len(list.Customers) != 0 {
		t.Fatalf("rejected create must not persist, got=%+v err=%v", list, err)
	}
}

func TestGrpc_OtherOwnerSeesNotFound(t *testing.T) {
	h := newHarness(t)
	alice := h.signIn(t, "9000000001")
	bob := h.signIn(t, "9000000002")

	created, err := h.ledger.CreateCustomer(alice, &CreateCustomerRequest{Name: "Ravi", Mobile: "9123456780"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = h.ledger.GetCustomer(bob, &GetCustomerRequest{CustomerID: created.Customer.ID})
	wantCode(t, err, codes.NotFound)
	_, err = h.ledger.AddTransaction(bob, &AddTransactionRequest{CustomerID: created.Customer.ID, Kind: "credit", Amount: "10"})
	wantCode(t, err, codes.NotFound)
	_, err = h.ledger.GetCustomer(alice, &GetCustomerRequest{CustomerID: uuid.NewString()})
	wantCode(t, err, codes.NotFound)
}

func TestGrpc_IdempotentAddTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := h.signIn(t, "9876543210")
	created, err := h.ledger.CreateCustomer(ctx, &CreateCustomerRequest{Name: "Priya", Mobile: "9123456780"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	req := &AddTransactionRequest{
		CustomerID:    created.Customer.ID,
		TransactionID: uuid.NewString(),
		Kind:          "credit",
		Amount:        "250.50",
	}
	first, err := h.ledger.AddTransaction(ctx, req)
	if err != nil || first.Replayed {
		t.Fatalf("first got=%+v err=%v", first, err)
	}
	second, err := h.ledger.AddTransaction(ctx, req)
	if err != nil || !second.Replayed || second.Balance != "250.50" {
		t.Fatalf("replay got=%+v err=%v", second, err)
	}

	req.Amount = "999"
	_, err = h.ledger.AddTransaction(ctx, req)
	wantCode(t, err, codes.AlreadyExists)
}

func TestGrpc_ReminderAndStubs(t *testing.T) {
	h := newHarness(t)
	ctx := h.signIn(t, "9876543210")
	created, err := h.ledger.CreateCustomer(ctx, &CreateCustomerRequest{Name: "Priya", Mobile: "9123456780"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.Customer.ID

	_, err = h.ledger.GenerateReminder(ctx, &GenerateReminderRequest{CustomerID: id})
	wantCode(t, err, codes.InvalidArgument)

	if _, err := h.ledger.AddTransaction(ctx, &AddTransactionRequest{CustomerID: id, Kind: "credit", Amount: "1200"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	text, err := h.ledger.GenerateReminder(ctx, &GenerateReminderRequest{CustomerID: id, BusinessName: "Sharma Stores"})
	if err != nil {
		t.Fatalf("reminder: %v", err)
	}
	if !strings.Contains(text.Text, "1200.00") || !strings.Contains(text.Text, "Sharma Stores") {
		t.Fatalf("reminder text got=%q", text.Text)
	}

	_, err = h.ledger.DeleteCustomer(ctx, &DeleteCustomerRequest{CustomerID: id})
	wantCode(t, err, codes.Unimplemented)
	_, err = h.ledger.ExportReport(ctx, &ExportReportRequest{CustomerID: id})
	wantCode(t, err, codes.Unimplemented)

	summary, err := h.ledger.GetSummary(ctx, &GetSummaryRequest{})
	if err != nil || summary.TotalToCollect != "1200.00" || summary.TotalCustomers != 1 {
		t.Fatalf("summary got=%+v err=%v", summary, err)
	}
}

func TestGrpc_WrongCodeIsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.auth.StartSignIn(ctx, &StartSignInRequest{Mobile: "9876543210"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	wrong := "000000"
	if h.sender.codes["9876543210"] == wrong {
		wrong = "111111"
	}
	_, err := h.auth.VerifySignIn(ctx, &VerifySignInRequest{Mobile: "9876543210", Code: wrong})
	wantCode(t, err, codes.Unauthenticated)
}

func TestGrpc_Health(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: LedgerServiceName})
	if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health got=%v err=%v", resp, err)
	}
}
