package grpc

import (
	"context"
	"errors"
	"log"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// toStatus 將 domain / auth 錯誤轉為 gRPC status
// 未知錯誤只記錄在 log，client 看到的是通用訊息
func toStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		st := status.New(codes.InvalidArgument, ve.Error())
		detailed, derr := st.WithDetails(&errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{
				{Field: ve.Field, Description: ve.Reason},
			},
		})
		if derr != nil {
			return st.Err()
		}
		return detailed.Err()
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrCustomerNotFound):
		return status.Error(codes.NotFound, "customer not found")
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCode),
		errors.Is(err, auth.ErrCodeExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, auth.ErrTooManyAttempts):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrTransientStore):
		return status.Error(codes.Unavailable, "ledger is busy, try again")
	case errors.Is(err, domain.ErrExternalService):
		return status.Error(codes.Unavailable, "reminder generation failed, try again")
	case errors.Is(err, domain.ErrNotImplemented):
		return status.Error(codes.Unimplemented, "feature coming soon")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	log.Printf("[grpc] %s internal error: %v", method, err)
	return status.Error(codes.Internal, "something went wrong")
}
