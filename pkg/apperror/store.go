package apperror

import (
	"context"
	"database/sql/driver"
	stdErrors "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// FromStore classifies an error returned by the persistence layer. Typed
// errors pass through untouched; nil stays nil.
func FromStore(err error, message string) error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	switch {
	case stdErrors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(CodeNotFound, err, message)
	case IsUniqueViolation(err):
		return Wrap(CodeConflict, err, message)
	case IsUnavailable(err):
		return Wrap(CodeStoreUnavailable, err, message)
	}
	return Wrap(CodeInternal, err, message)
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// postgres (pgx), sqlite, or gorm's translated duplicate key error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsUnavailable reports connectivity and deadline failures that are safe to retry.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, context.Canceled) {
		return true
	}
	if stdErrors.Is(err, driver.ErrBadConn) {
		return true
	}
	var connErr *pgconn.ConnectError
	if stdErrors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if stdErrors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "database is locked")
}
