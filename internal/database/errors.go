package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"gator-social/internal/utils"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// wrapError maps a driver error onto the storage error codes callers branch on.
// Unique violations become ErrDuplicate, foreign key violations ErrNotFound,
// and failures worth one retry ErrTransient.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return utils.NewAppError(classify(err), message, err)
}

func classify(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return utils.ErrDatabase
	}
	if errors.Is(err, driver.ErrBadConn) {
		return utils.ErrTransient
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return utils.ErrDuplicate
		case pqErr.Code == "23503":
			return utils.ErrNotFound
		case pqErr.Code.Class() == "08",
			pqErr.Code == "40001", // serialization_failure
			pqErr.Code == "40P01", // deadlock_detected
			pqErr.Code == "57P01", // admin_shutdown
			pqErr.Code == "53300", // too_many_connections
			pqErr.Code == "57014": // query_canceled
			return utils.ErrTransient
		}
		return utils.ErrDatabase
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return utils.ErrDuplicate
		case liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return utils.ErrNotFound
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return utils.ErrTransient
		}
		return utils.ErrDatabase
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return utils.ErrTransient
	}
	return utils.ErrDatabase
}
