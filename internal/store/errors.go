package store

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
	ErrUndefinedColumn     = errors.New("undefined column")
)

// MapError folds driver errors into the store's sentinel errors so handlers
// can branch with errors.Is instead of inspecting SQLSTATE codes. The
// original error stays wrapped for logging.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return errors.Join(ErrUniqueViolation, err)
		case "23503":
			return errors.Join(ErrForeignKeyViolation, err)
		case "42703":
			return errors.Join(ErrUndefinedColumn, err)
		}
	}
	return err
}

// ConstraintDetail extracts the human-readable detail from a constraint
// violation, when the driver supplied one.
func ConstraintDetail(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Detail
	}
	return ""
}
