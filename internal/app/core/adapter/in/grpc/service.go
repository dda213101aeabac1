package grpc

import (
	"context"

	"google.golang.org/grpc"

	grpcpkg "github.com/JoeShih716/go-khata-ledger/pkg/grpc"
)

const (
	LedgerServiceName = "khata.ledger.v1.LedgerService"
	AuthServiceName   = "khata.auth.v1.AuthService"
)

// LedgerServiceServer 帳本服務 (需要 Bearer token)
type LedgerServiceServer interface {
	ListCustomers(context.Context, *ListCustomersRequest) (*ListCustomersResponse, error)
	GetCustomer(context.Context, *GetCustomerRequest) (*CustomerResponse, error)
	CreateCustomer(context.Context, *CreateCustomerRequest) (*CustomerResponse, error)
	UpdateCustomer(context.Context, *UpdateCustomerRequest) (*CustomerResponse, error)
	DeleteCustomer(context.Context, *DeleteCustomerRequest) (*Empty, error)
	AddTransaction(context.Context, *AddTransactionRequest) (*AddTransactionResponse, error)
	GetSummary(context.Context, *GetSummaryRequest) (*SummaryResponse, error)
	Reconcile(context.Context, *ReconcileRequest) (*ReconcileResponse, error)
	GenerateReminder(context.Context, *GenerateReminderRequest) (*GenerateReminderResponse, error)
	ExportReport(context.Context, *ExportReportRequest) (*Empty, error)
}

// AuthServiceServer 手機登入 (不需要 token)
type AuthServiceServer interface {
	StartSignIn(context.Context, *StartSignInRequest) (*StartSignInResponse, error)
	VerifySignIn(context.Context, *VerifySignInRequest) (*VerifySignInResponse, error)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unaryHandler 將型別化的方法包成 grpc.MethodHandler，行為與 protoc 產生的 handler 相同
func unaryHandler[S, Req, Resp any](call func(S, context.Context, *Req) (*Resp, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func ledgerMethod[Req, Resp any](name string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler(call, fullMethod(LedgerServiceName, name))}
}

func authMethod[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler(call, fullMethod(AuthServiceName, name))}
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		ledgerMethod("ListCustomers", LedgerServiceServer.ListCustomers),
		ledgerMethod("GetCustomer", LedgerServiceServer.GetCustomer),
		ledgerMethod("CreateCustomer", LedgerServiceServer.CreateCustomer),
		ledgerMethod("UpdateCustomer", LedgerServiceServer.UpdateCustomer),
		ledgerMethod("DeleteCustomer", LedgerServiceServer.DeleteCustomer),
		ledgerMethod("AddTransaction", LedgerServiceServer.AddTransaction),
		ledgerMethod("GetSummary", LedgerServiceServer.GetSummary),
		ledgerMethod("Reconcile", LedgerServiceServer.Reconcile),
		ledgerMethod("GenerateReminder", LedgerServiceServer.GenerateReminder),
		ledgerMethod("ExportReport", LedgerServiceServer.ExportReport),
	},
	Streams: []grpc.StreamDesc{},
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		authMethod("StartSignIn", AuthServiceServer.StartSignIn),
		authMethod("VerifySignIn", AuthServiceServer.VerifySignIn),
	},
	Streams: []grpc.StreamDesc{},
}

// invoke 以 JSON codec 呼叫 unary 方法
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(grpcpkg.JSONCodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerClient LedgerService 的型別化 client
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) ListCustomers(ctx context.Context, in *ListCustomersRequest, opts ...grpc.CallOption) (*ListCustomersResponse, error) {
	return invoke[ListCustomersResponse](ctx, c.cc, fullMethod(LedgerServiceName, "ListCustomers"), in, opts)
}

func (c *LedgerClient) GetCustomer(ctx context.Context, in *GetCustomerRequest, opts ...grpc.CallOption) (*CustomerResponse, error) {
	return invoke[CustomerResponse](ctx, c.cc, fullMethod(LedgerServiceName, "GetCustomer"), in, opts)
}

func (c *LedgerClient) CreateCustomer(ctx context.Context, in *CreateCustomerRequest, opts ...grpc.CallOption) (*CustomerResponse, error) {
	return invoke[CustomerResponse](ctx, c.cc, fullMethod(LedgerServiceName, "CreateCustomer"), in, opts)
}

func (c *LedgerClient) UpdateCustomer(ctx context.Context, in *UpdateCustomerRequest, opts ...grpc.CallOption) (*CustomerResponse, error) {
	return invoke[CustomerResponse](ctx, c.cc, fullMethod(LedgerServiceName, "UpdateCustomer"), in, opts)
}

func (c *LedgerClient) DeleteCustomer(ctx context.Context, in *DeleteCustomerRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, fullMethod(LedgerServiceName, "DeleteCustomer"), in, opts)
}

func (c *LedgerClient) AddTransaction(ctx context.Context, in *AddTransactionRequest, opts ...grpc.CallOption) (*AddTransactionResponse, error) {
	return invoke[AddTransactionResponse](ctx, c.cc, fullMethod(LedgerServiceName, "AddTransaction"), in, opts)
}

func (c *LedgerClient) GetSummary(ctx context.Context, in *GetSummaryRequest, opts ...grpc.CallOption) (*SummaryResponse, error) {
	return invoke[SummaryResponse](ctx, c.cc, fullMethod(LedgerServiceName, "GetSummary"), in, opts)
}

func (c *LedgerClient) Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*ReconcileResponse, error) {
	return invoke[ReconcileResponse](ctx, c.cc, fullMethod(LedgerServiceName, "Reconcile"), in, opts)
}

func (c *LedgerClient) GenerateReminder(ctx context.Context, in *GenerateReminderRequest, opts ...grpc.CallOption) (*GenerateReminderResponse, error) {
	return invoke[GenerateReminderResponse](ctx, c.cc, fullMethod(LedgerServiceName, "GenerateReminder"), in, opts)
}

func (c *LedgerClient) ExportReport(ctx context.Context, in *ExportReportRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, fullMethod(LedgerServiceName, "ExportReport"), in, opts)
}

// AuthClient AuthService 的型別化 client
type AuthClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{cc: cc}
}

func (c *AuthClient) StartSignIn(ctx context.Context, in *StartSignInRequest, opts ...grpc.CallOption) (*StartSignInResponse, error) {
	return invoke[StartSignInResponse](ctx, c.cc, fullMethod(AuthServiceName, "StartSignIn"), in, opts)
}

func (c *AuthClient) VerifySignIn(ctx context.Context, in *VerifySignInRequest, opts ...grpc.CallOption) (*VerifySignInResponse, error) {
	return invoke[VerifySignInResponse](ctx, c.cc, fullMethod(AuthServiceName, "VerifySignIn"), in, opts)
}
