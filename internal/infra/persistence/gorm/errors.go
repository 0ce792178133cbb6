package gormpersistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// wrapError 把驱动层错误映射为仓库层错误，其余错误带上操作描述后包装返回
func wrapError(err error, op string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	if isDuplicateEntryError(err) {
		return repository.ErrDuplicateEntry
	}
	return fmt.Errorf("gorm: %s: %w", fmt.Sprintf(op, args...), err)
}

// isDuplicateEntryError MySQL 用错误码 1062 判断，sqlite (测试) 只能看错误信息
func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
