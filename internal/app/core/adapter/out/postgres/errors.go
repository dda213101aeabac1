package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// SQLSTATE
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// mapError 將 pgx 錯誤轉為 domain 錯誤
// domain 錯誤原樣回傳；序列化失敗、死結、取鎖失敗、連線中斷視為可重試
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrCustomerNotFound) ||
		errors.Is(err, domain.ErrIdempotencyConflict) ||
		errors.Is(err, domain.ErrTransientStore) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
		case codeUniqueViolation:
			if pgErr.TableName == "transactions" && pgErr.ConstraintName == "transactions_pkey" {
				return domain.ErrIdempotencyConflict
			}
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return err
}
