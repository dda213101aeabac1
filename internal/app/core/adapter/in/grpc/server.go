package grpc

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/usecase"
)

// GrpcServer 將 LedgerService 的呼叫轉給 CoreUseCase
// ownerID 一律取自 auth interceptor 放入 context 的值
type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) ListCustomers(ctx context.Context, req *ListCustomersRequest) (*ListCustomersResponse, error) {
	customers, err := s.core.ListCustomers(ctx, auth.OwnerFromContext(ctx))
	if err != nil {
		return nil, err
	}
	resp := &ListCustomersResponse{Customers: make([]*Customer, 0, len(customers))}
	for i := range customers {
		resp.Customers = append(resp.Customers, toCustomer(&customers[i]))
	}
	return resp, nil
}

func (s *GrpcServer) GetCustomer(ctx context.Context, req *GetCustomerRequest) (*CustomerResponse, error) {
	id, err := domain.ParseID("customerId", req.CustomerID)
	if err != nil {
		return nil, err
	}
	customer, err := s.core.GetCustomer(ctx, auth.OwnerFromContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return &CustomerResponse{Customer: toCustomer(customer)}, nil
}

func (s *GrpcServer) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*CustomerResponse, error) {
	customer, err := s.core.CreateCustomer(ctx, auth.OwnerFromContext(ctx), domain.CustomerInput{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		return nil, err
	}
	return &CustomerResponse{Customer: toCustomer(customer)}, nil
}

func (s *GrpcServer) UpdateCustomer(ctx context.Context, req *UpdateCustomerRequest) (*CustomerResponse, error) {
	id, err := domain.ParseID("customerId", req.CustomerID)
	if err != nil {
		return nil, err
	}
	customer, err := s.core.UpdateCustomer(ctx, auth.OwnerFromContext(ctx), id, domain.CustomerPatch{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		return nil, err
	}
	return &CustomerResponse{Customer: toCustomer(customer)}, nil
}

func (s *GrpcServer) DeleteCustomer(ctx context.Context, req *DeleteCustomerRequest) (*Empty, error) {
	id, err := domain.ParseID("customerId", req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.core.DeleteCustomer(ctx, auth.OwnerFromContext(ctx), id); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// AddTransaction 新增交易
// TransactionID 有給時作為冪等鍵，重送相同內容會得到 Replayed=true
func (s *GrpcServer) AddTransaction(ctx context.Context, req *AddTransactionRequest) (*AddTransactionResponse, error) {
	// 1. 解析 ID
	customerID, err := domain.ParseID("customerId", req.CustomerID)
	if err != nil {
		return nil, err
	}
	var in domain.TransactionInput
	if req.TransactionID != "" {
		if in.ID, err = domain.ParseID("transactionId", req.TransactionID); err != nil {
			return nil, err
		}
	}

	// 2. 轉換交易類型與金額
	if in.Kind, err = domain.ParseTransactionKind(req.Kind); err != nil {
		return nil, err
	}
	if in.Amount, err = domain.ParseAmount(req.Amount); err != nil {
		return nil, err
	}
	in.Notes = req.Notes

	// 3. 執行交易
	receipt, err := s.core.AddTransaction(ctx, auth.OwnerFromContext(ctx), customerID, in)
	if err != nil {
		return nil, err
	}
	return &AddTransactionResponse{
		Transaction: toTransaction(&receipt.Transaction),
		Balance:     amountString(receipt.Balance),
		Status:      string(domain.StatusOf(receipt.Balance)),
		Replayed:    receipt.Replayed,
	}, nil
}

func (s *GrpcServer) GetSummary(ctx context.Context, req *GetSummaryRequest) (*SummaryResponse, error) {
	summary, err := s.core.Summary(ctx, auth.OwnerFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{
		TotalToCollect: amountString(summary.TotalToCollect),
		TotalToGive:    amountString(summary.TotalToGive),
		TotalCustomers: int32(summary.TotalCustomers),
	}, nil
}

func (s *GrpcServer) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	ownerID := auth.OwnerFromContext(ctx)
	var results []domain.Reconciliation
	if req.CustomerID == "" {
		all, err := s.core.ReconcileAll(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		results = all
	} else {
		id, err := domain.ParseID("customerId", req.CustomerID)
		if err != nil {
			return nil, err
		}
		rec, err := s.core.Reconcile(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		results = []domain.Reconciliation{rec}
	}
	resp := &ReconcileResponse{Results: make([]*Reconciliation, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, toReconciliation(r))
	}
	return resp, nil
}

func (s *GrpcServer) GenerateReminder(ctx context.Context, req *GenerateReminderRequest) (*GenerateReminderResponse, error) {
	id, err := domain.ParseID("customerId", req.CustomerID)
	if err != nil {
		return nil, err
	}
	text, err := s.core.GenerateReminder(ctx, auth.OwnerFromContext(ctx), id, req.BusinessName)
	if err != nil {
		return nil, err
	}
	return &GenerateReminderResponse{Text: text}, nil
}

func (s *GrpcServer) ExportReport(ctx context.Context, req *ExportReportRequest) (*Empty, error) {
	id, err := domain.ParseID("customerId", req.CustomerID)
	if err != nil {
		return nil, err
	}
	from, err := optionalTime("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := optionalTime("to", req.To)
	if err != nil {
		return nil, err
	}
	if err := s.core.ExportReport(ctx, auth.OwnerFromContext(ctx), id, from, to); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// AuthServer 手機登入
type AuthServer struct {
	phone *auth.PhoneAuth
}

func NewAuthServer(phone *auth.PhoneAuth) *AuthServer {
	return &AuthServer{phone: phone}
}

func (s *AuthServer) StartSignIn(ctx context.Context, req *StartSignInRequest) (*StartSignInResponse, error) {
	exp, err := s.phone.StartSignIn(ctx, req.Mobile)
	if err != nil {
		return nil, err
	}
	return &StartSignInResponse{ExpiresAt: timestamppb.New(exp)}, nil
}

func (s *AuthServer) VerifySignIn(ctx context.Context, req *VerifySignInRequest) (*VerifySignInResponse, error) {
	session, err := s.phone.VerifySignIn(ctx, req.Mobile, req.Code)
	if err != nil {
		return nil, err
	}
	return &VerifySignInResponse{
		OwnerID:   session.OwnerID,
		Token:     session.Token,
		ExpiresAt: timestamppb.New(session.ExpiresAt),
	}, nil
}

func optionalTime(field string, ts *timestamppb.Timestamp) (t time.Time, err error) {
	if ts == nil {
		return t, nil
	}
	if err := ts.CheckValid(); err != nil {
		return t, &domain.ValidationError{Field: field, Reason: "must be a valid timestamp"}
	}
	return ts.AsTime(), nil
}

var (
	_ LedgerServiceServer = (*GrpcServer)(nil)
	_ AuthServiceServer   = (*AuthServer)(nil)
)
