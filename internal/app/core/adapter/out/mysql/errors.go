package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

// MySQL 錯誤碼
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// mapError 將 driver 錯誤轉為 domain 錯誤
// domain 錯誤原樣回傳；死結、鎖等待逾時、連線中斷視為可重試
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errLockDeadlock, errLockWaitTimeout:
			return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
		case errDupEntry:
			// 交易 ID 已被其他客戶使用 (另一個客戶列的鎖保護不到)
			return domain.ErrIdempotencyConflict
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrCustomerNotFound) ||
		errors.Is(err, domain.ErrIdempotencyConflict) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrTransientStore)
}

func readOnly() *sql.TxOptions {
	return &sql.TxOptions{ReadOnly: true}
}
