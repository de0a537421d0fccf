// Package repository holds the MySQL data access layer.  Repositories
// expose plain methods for reads and ...Tx methods that take the
// caller's *sql.Tx so several of them can share one transaction.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the repositories translate.
const (
	errDuplicateEntry    = 1062
	errNoReferencedRow   = 1452
	errCheckConstraint   = 3819
	errOutOfRangeValue   = 1264
	errDataOutOfRangeNeg = 1690
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique-key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == errDuplicateEntry }

// isMissingReference reports a foreign-key violation on insert.
func isMissingReference(err error) bool { return mysqlErrNumber(err) == errNoReferencedRow }

// isOutOfRange reports a CHECK or range violation on a counter.
func isOutOfRange(err error) bool {
	switch mysqlErrNumber(err) {
	case errCheckConstraint, errOutOfRangeValue, errDataOutOfRangeNeg:
		return true
	}
	return false
}
