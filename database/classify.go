package database

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// sqlite result codes this package cares about. The full list is defined by
// SQLite itself; only the codes that change this package's control flow are
// named here.
const (
	sqliteBusy  = 5
	sqliteLocked = 6
)

// MariaDB/MySQL error numbers this package treats specially.
const (
	myLockWaitTimeout = 1205
	myDeadlock        = 1213
	myTooManyConns    = 1040
	myAccessDenied    = 1045
	myBadDB           = 1049
	myUnknownTable    = 1146
	myBadFieldName    = 1054
	myTableExists     = 1050
)

// classify maps a raw driver error into this package's *Error taxonomy.
// Errors already classified (typically re-surfaced from a nested call) are
// returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var dberr *Error
	if errors.As(err, &dberr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindInterrupted, err, "operation interrupted")
	}
	if errors.Is(err, driver.ErrBadConn) {
		return newError(KindConnectionLost, err, "connection lost")
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqliteBusy, sqliteLocked:
			return newError(KindBusy, err, "database is locked")
		}
		return newError(KindDatabase, err, "sqlite error")
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case myLockWaitTimeout, myDeadlock:
			return newError(KindBusy, err, "lock wait timeout or deadlock")
		case myTooManyConns:
			return newError(KindConnect, err, "too many connections")
		case myAccessDenied:
			return newError(KindAuthorization, err, "access denied")
		case myBadDB:
			return newError(KindConnect, err, "unknown database")
		case myUnknownTable:
			return newError(KindMissingTable, err, "unknown table")
		case myBadFieldName:
			return newError(KindMissingColumn, err, "unknown column")
		case myTableExists:
			return newError(KindExists, err, "table already exists")
		}
		return newError(KindDatabase, err, "mysql error %d", mysqlErr.Number)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "lock_not_available", "deadlock_detected", "serialization_failure":
			return newError(KindBusy, err, "lock not available")
		case "invalid_password", "invalid_authorization_specification":
			return newError(KindAuthorization, err, "access denied")
		case "undefined_table":
			return newError(KindMissingTable, err, "unknown table")
		case "undefined_column":
			return newError(KindMissingColumn, err, "unknown column")
		case "duplicate_table":
			return newError(KindExists, err, "table already exists")
		}
		return newError(KindDatabase, err, "postgresql error "+string(pqErr.Code))
	}

	return newError(KindDatabase, err, "database error")
}
