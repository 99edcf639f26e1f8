package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"wisefido-schedule/internal/domain"

	"github.com/lib/pq"
)

// PostgreSQL exclusion_violation（events_no_overlap 约束）
const pqExclusionViolation = "23P01"

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// nullableString 空字符串写入 NULL
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mapWriteError 将数据库约束错误转换为领域错误
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqExclusionViolation {
		return fmt.Errorf("%w (constraint %s)", domain.ErrConflictUnresolved, pqErr.Constraint)
	}
	return err
}

// mapNoRows sql.ErrNoRows 转换为 domain.ErrNotFound
func mapNoRows(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// requireAffected 检查 UPDATE/DELETE 是否命中记录
func requireAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %w", what, domain.ErrNotFound)
	}
	return nil
}
