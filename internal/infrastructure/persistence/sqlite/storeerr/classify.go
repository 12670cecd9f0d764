package storeerr

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
)

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgTooManyConnections   = "53300"
	pgAdminShutdown        = "57P01"
)

// retryableMessages are driver messages for transient conditions on the
// storage medium.
var retryableMessages = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"sqlite_locked",
	"checkpoint in progress",
	"cannot start a transaction within a transaction",
	"bad connection",
	"connection reset by peer",
}

// unavailableMessages are driver messages for a medium that cannot complete
// the operation. Retrying them within one call does not help.
var unavailableMessages = []string{
	"disk i/o error",
	"unable to open database file",
	"attempt to write a readonly database",
	"database or disk is full",
	"database disk image is malformed",
	"sql: database is closed",
}

// Classify maps a raw storage error onto the fleet error taxonomy while
// keeping the original error in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if constraint, ok := UniqueViolation(err); ok {
		switch {
		case strings.Contains(constraint, "raptor_id"):
			return errs.Mark(err, fleet.ErrDuplicateIdentity)
		case strings.Contains(constraint, "api_key"):
			return errs.Mark(err, fleet.ErrDuplicateCredential)
		}
		return err
	}

	if constraint, ok := CheckViolation(err); ok && strings.Contains(constraint, "raptor_id") {
		return errs.Mark(err, fleet.ErrInvalidIdentityLength)
	}

	if IsRetryable(err) || IsUnavailable(err) {
		return errs.Mark(err, fleet.ErrStoreUnavailable)
	}
	return err
}

// IsUnavailable reports whether the storage medium itself failed: a closed
// pool, a lost connection, an unreadable or read-only file.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, candidate := range unavailableMessages {
		if strings.Contains(msg, candidate) {
			return true
		}
	}
	return false
}

// UniqueViolation reports the violated constraint, as "table.column" for
// SQLite or the index name for PostgreSQL.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return pgErr.ConstraintName, true
	}
	return sqliteConstraint(err, "UNIQUE constraint failed: ")
}

func CheckViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgCheckViolation {
			return "", false
		}
		return pgErr.ConstraintName, true
	}
	return sqliteConstraint(err, "CHECK constraint failed: ")
}

// IsRetryable reports whether err is a transient condition that may succeed
// when the operation is attempted again. It looks at the cause, so an error
// already marked unavailable by Classify is judged by what it wraps.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgTooManyConnections, pgAdminShutdown:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, candidate := range retryableMessages {
		if strings.Contains(msg, candidate) {
			return true
		}
	}
	return false
}

// sqliteConstraint extracts the constraint detail from messages such as
// "constraint failed: UNIQUE constraint failed: commission.raptor_id (2067)".
func sqliteConstraint(err error, marker string) (string, bool) {
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}

	detail := msg[idx+len(marker):]
	if end := strings.Index(detail, " ("); end >= 0 {
		detail = detail[:end]
	}
	return strings.TrimSpace(detail), true
}
